package evaluation

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/trezcool/vigil/core"
	"github.com/trezcool/vigil/core/rubric"
)

func completeDraft() Draft {
	return Draft{
		Scores:             map[string]float64{"punctuality": 0.5, "attendance": 0, "patrol": 0, "dar": 1, "conduct": 2},
		Remarks:            map[string]string{"dar": "  late report ", "conduct": "   "},
		EvaluatorName:      "Jane",
		EvaluatorSignature: "J. Doe",
	}
}

func TestValidate(t *testing.T) {
	rub := rubric.Default()

	Convey("Given a complete, signed draft", t, func() {
		draft := completeDraft()

		Convey("Then it is accepted with its total & recommendation", func() {
			res, err := Validate(rub, draft, RequireAll)
			So(err, ShouldBeNil)
			So(res.TotalPoints, ShouldEqual, 3.5)
			So(res.Recommendation.Tier, ShouldEqual, rubric.Warning)
			So(res.Scores, ShouldResemble, map[string]float64(draft.Scores))
		})

		Convey("Then remarks are trimmed & blank ones dropped", func() {
			res, err := Validate(rub, draft, RequireAll)
			So(err, ShouldBeNil)
			So(res.Remarks, ShouldResemble, map[string]string{"dar": "late report"})
		})

		Convey("When the signature is blank", func() {
			draft.EvaluatorSignature = " \t"
			_, err := Validate(rub, draft, RequireAll)

			Convey("Then it is rejected", func() {
				So(err, ShouldEqual, ErrMissingSignature)
				So(Reason(err), ShouldEqual, ReasonMissingSignature)
			})
		})

		Convey("When a score is not one of the category options", func() {
			draft.Scores["patrol"] = 0.7
			_, err := Validate(rub, draft, RequireAll)

			Convey("Then it is rejected with the offending category", func() {
				var scoreErr *InvalidScoreError
				So(errors.As(err, &scoreErr), ShouldBeTrue)
				So(scoreErr.CategoryID, ShouldEqual, "patrol")
				So(scoreErr.Points, ShouldEqual, 0.7)
				So(Reason(err), ShouldEqual, ReasonInvalidScore)
			})
		})

		Convey("When an unknown category is scored", func() {
			draft.Scores["hygiene"] = 0
			_, err := Validate(rub, draft, RequireAll)

			Convey("Then it is rejected", func() {
				var scoreErr *InvalidScoreError
				So(errors.As(err, &scoreErr), ShouldBeTrue)
				So(scoreErr.CategoryID, ShouldEqual, "hygiene")
			})
		})
	})

	Convey("Given a draft missing categories", t, func() {
		draft := Draft{
			Scores:             map[string]float64{"conduct": 0, "punctuality": 1, "patrol": 0.7},
			EvaluatorSignature: "",
		}

		Convey("When every category is required", func() {
			_, err := Validate(rub, draft, RequireAll)

			Convey("Then completeness is checked first & lists categories in rubric order", func() {
				var incErr *IncompleteCategoriesError
				So(errors.As(err, &incErr), ShouldBeTrue)
				So(incErr.IDs, ShouldResemble, []string{"attendance", "dar"})
				So(err.Error(), ShouldEqual, "unscored categories: attendance, dar")
				So(Reason(err), ShouldEqual, ReasonIncompleteCategories)
			})
		})

		Convey("When missing categories default to zero", func() {
			draft.Scores["patrol"] = 0.5
			draft.EvaluatorSignature = "signed"
			res, err := Validate(rub, draft, DefaultZero)

			Convey("Then they are scored 0", func() {
				So(err, ShouldBeNil)
				So(res.Scores["attendance"], ShouldEqual, 0)
				So(res.Scores["dar"], ShouldEqual, 0)
				So(res.TotalPoints, ShouldEqual, 1.5)
				So(res.Recommendation.Tier, ShouldEqual, rubric.GoodStanding)
			})
		})

		Convey("When the signature is also missing", func() {
			draft.Scores = map[string]float64{"punctuality": 0, "attendance": 0, "patrol": 0, "dar": 0, "conduct": 0}
			_, err := Validate(rub, draft, RequireAll)

			Convey("Then the signature is reported", func() {
				So(err, ShouldEqual, ErrMissingSignature)
			})
		})
	})

	Convey("Given a signed draft with conduct unset", t, func() {
		draft := completeDraft()
		delete(draft.Scores, "conduct")
		_, err := Validate(rub, draft, RequireAll)

		Convey("Then conduct alone is reported", func() {
			var incErr *IncompleteCategoriesError
			So(errors.As(err, &incErr), ShouldBeTrue)
			So(incErr.IDs, ShouldResemble, []string{"conduct"})
		})
	})

	Convey("Given a draft decoded from JSON with a null score", t, func() {
		var draft Draft
		err := json.Unmarshal([]byte(`{
			"scores": {"punctuality": 0.5, "attendance": 0, "patrol": 0, "dar": 1, "conduct": null},
			"evaluator_signature": "J. Doe"
		}`), &draft)
		So(err, ShouldBeNil)

		Convey("Then the null category is left unset", func() {
			_, set := draft.Scores["conduct"]
			So(set, ShouldBeFalse)
			So(draft.Scores["dar"], ShouldEqual, 1)
		})

		Convey("Then it is reported as unscored rather than scored 0", func() {
			_, err := Validate(rub, draft, RequireAll)
			var incErr *IncompleteCategoriesError
			So(errors.As(err, &incErr), ShouldBeTrue)
			So(incErr.IDs, ShouldResemble, []string{"conduct"})
		})

		Convey("Then a null scores object decodes to no scores", func() {
			var d Draft
			So(json.Unmarshal([]byte(`{"scores": null}`), &d), ShouldBeNil)
			So(d.Scores, ShouldBeNil)
		})
	})

	Convey("Given an explicit all-zero draft", t, func() {
		draft := Draft{
			Scores:             map[string]float64{"punctuality": 0, "attendance": 0, "patrol": 0, "dar": 0, "conduct": 0},
			EvaluatorSignature: "x",
		}
		res, err := Validate(rub, draft, RequireAll)

		Convey("Then 0 counts as scored", func() {
			So(err, ShouldBeNil)
			So(res.TotalPoints, ShouldEqual, 0)
			So(res.Recommendation.Tier, ShouldEqual, rubric.GoodStanding)
		})
	})
}

func TestReason(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "identity", err: ErrIdentityVerificationFailed, want: ReasonIdentityFailed},
		{name: "duplicate", err: ErrDuplicateEvaluation, want: ReasonDuplicate},
		{name: "future", err: ErrFutureDate, want: ReasonFutureDate},
		{name: "wrapped", err: errors.Wrap(ErrDuplicateEvaluation, "saving"), want: ReasonDuplicate},
		{
			name: "unknown guard",
			err:  core.NewValidationError(ErrUnknownGuard, core.FieldError{Field: "guard_id", Error: ErrUnknownGuard.Error()}),
			want: ReasonUnknownGuard,
		},
		{name: "other", err: errors.New("lol"), want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Reason(tt.err); got != tt.want {
				t.Errorf("Reason() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    CompletenessPolicy
		wantErr bool
	}{
		{in: "", want: RequireAll},
		{in: "require_all", want: RequireAll},
		{in: " Default_Zero ", want: DefaultZero},
		{in: "lol", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePolicy(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParsePolicy() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParsePolicy() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsEditable(t *testing.T) {
	created := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

	Convey("Given an evaluation created at 08:00", t, func() {
		Convey("Then it is editable 11 hours later", func() {
			So(IsEditable(created, created.Add(11*time.Hour), DefaultEditWindow), ShouldBeTrue)
		})
		Convey("Then it is no longer editable after exactly 12 hours", func() {
			So(IsEditable(created, created.Add(12*time.Hour), DefaultEditWindow), ShouldBeFalse)
		})
		Convey("Then it is not editable 13 hours later", func() {
			So(IsEditable(created, created.Add(13*time.Hour), DefaultEditWindow), ShouldBeFalse)
		})
		Convey("Then the deadline is 20:00 the same day", func() {
			So(EditDeadline(created, DefaultEditWindow), ShouldEqual, time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC))
		})
	})
}

func TestSubmission_Day(t *testing.T) {
	now := time.Date(2024, 3, 1, 23, 30, 0, 0, time.UTC)

	Convey("Given a submission", t, func() {
		sub := Submission{}

		Convey("When no date is given, then it is today", func() {
			day, err := sub.Day(now)
			So(err, ShouldBeNil)
			So(day, ShouldEqual, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
		})
		Convey("When a past date is given, then it is kept", func() {
			sub.EvaluationDate = "2024-02-29"
			day, err := sub.Day(now)
			So(err, ShouldBeNil)
			So(day, ShouldEqual, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC))
		})
		Convey("When tomorrow is given, then it is rejected", func() {
			sub.EvaluationDate = "2024-03-02"
			_, err := sub.Day(now)
			So(err, ShouldEqual, ErrFutureDate)
		})
		Convey("When the date is malformed, then it is rejected", func() {
			sub.EvaluationDate = "03/01/2024"
			_, err := sub.Day(now)
			So(err, ShouldNotBeNil)
		})
	})
}

func TestSheet_Scan(t *testing.T) {
	Convey("Given a stored sheet", t, func() {
		var s Sheet

		Convey("Then JSON text is decoded", func() {
			So(s.Scan(`{"rubric_version":"2024.1","scores":{"dar":1}}`), ShouldBeNil)
			So(s.RubricVersion, ShouldEqual, "2024.1")
			So(s.Scores["dar"], ShouldEqual, 1)
		})
		Convey("Then NULL resets it", func() {
			s.EvaluatorName = "lol"
			So(s.Scan(nil), ShouldBeNil)
			So(s, ShouldResemble, Sheet{})
		})
		Convey("Then other types are refused", func() {
			So(s.Scan(42), ShouldNotBeNil)
		})
	})
}

func Test_fillMonths(t *testing.T) {
	since := time.Date(2023, 11, 1, 0, 0, 0, 0, time.UTC)
	got := fillMonths(since, 4, []MonthlyCount{{Month: "2023-12", Count: 2}, {Month: "2024-02", Count: 5}})
	want := []MonthlyCount{{"2023-11", 0}, {"2023-12", 2}, {"2024-01", 0}, {"2024-02", 5}}

	Convey("Months without evaluations are filled with 0", t, func() {
		So(got, ShouldResemble, want)
	})
}
