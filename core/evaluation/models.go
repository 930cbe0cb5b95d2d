package evaluation

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/vigil/core"
	"github.com/trezcool/vigil/core/rubric"
)

const dateLayout = "2006-01-02"

// Scores maps category IDs to the points picked for them.
type Scores map[string]float64

// UnmarshalJSON drops null entries: a category sent as null is unscored, not scored 0.
func (s *Scores) UnmarshalJSON(data []byte) error {
	var raw map[string]*float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*s = nil
		return nil
	}
	scores := make(Scores, len(raw))
	for id, pts := range raw {
		if pts != nil {
			scores[id] = *pts
		}
	}
	*s = scores
	return nil
}

// Draft is an evaluation being filled in. It only lives until it is submitted.
type Draft struct {
	Scores             Scores            `json:"scores"`
	Remarks            map[string]string `json:"remarks"`
	EvaluatorName      string            `json:"evaluator_name"`
	EvaluatorSignature string            `json:"evaluator_signature"`
}

// Result is a validated Draft, ready to be persisted.
type Result struct {
	Scores         map[string]float64    `json:"scores"`
	Remarks        map[string]string     `json:"remarks,omitempty"`
	TotalPoints    float64               `json:"total_points"`
	Recommendation rubric.Recommendation `json:"recommendation"`
}

// Sheet is the serialized part of a Record: per-category scores, remarks & evaluator metadata.
// It is stored as an opaque JSON document.
type Sheet struct {
	RubricVersion      string             `json:"rubric_version"`
	Scores             map[string]float64 `json:"scores"`
	Remarks            map[string]string  `json:"remarks,omitempty"`
	EvaluatorName      string             `json:"evaluator_name"`
	EvaluatorSignature string             `json:"evaluator_signature"`
	ClientName         string             `json:"client_name"`
	RepresentativeName string             `json:"representative_name,omitempty"`
}

func (s Sheet) Value() (driver.Value, error) {
	return json.Marshal(s)
}

func (s *Sheet) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	case nil:
		*s = Sheet{}
		return nil
	default:
		return errors.Errorf("evaluation.Sheet: cannot scan %T", src)
	}
	return json.Unmarshal(data, s)
}

// Record is a submitted evaluation. Records are never updated.
type Record struct {
	ID             string    `json:"id"`
	ClientID       string    `json:"client_id"`
	GuardID        string    `json:"guard_id"`
	EvaluationDate time.Time `json:"evaluation_date"` // UTC midnight
	Sheet          Sheet     `json:"kpi_scores"`
	TotalPoints    float64   `json:"total_score"`
	CreatedAt      time.Time `json:"created_at"`     // UTC
	EditableUntil  time.Time `json:"editable_until"` // UTC
}

// View is a Record with its derived, never stored, properties.
type View struct {
	Record
	GuardName      string                `json:"guard_name,omitempty"`
	Recommendation rubric.Recommendation `json:"recommendation"`
	Editable       bool                  `json:"editable"`
}

// Submission is a Draft along with the identities of its evaluator & target.
type Submission struct {
	ClientID       string `json:"client_id" validate:"required"`
	Password       string `json:"password" validate:"required"`
	GuardID        string `json:"guard_id" validate:"required"`
	EvaluationDate string `json:"evaluation_date" validate:"omitempty,datetime=2006-01-02"` // defaults to today
	Draft
}

// Day returns the evaluated calendar day, today (UTC) when no date was given.
func (s *Submission) Day(now time.Time) (time.Time, error) {
	if s.EvaluationDate == "" {
		return core.Day(now), nil
	}
	day, err := time.Parse(dateLayout, s.EvaluationDate)
	if err != nil {
		return time.Time{}, errors.Wrap(err, "parsing evaluation date")
	}
	if day.After(core.Day(now)) {
		return time.Time{}, ErrFutureDate
	}
	return day, nil
}

func (s *Submission) Validate(validate *validator.Validate) error {
	s.ClientID = core.CleanString(s.ClientID)
	s.GuardID = core.CleanString(s.GuardID)
	s.EvaluationDate = core.CleanString(s.EvaluationDate)
	s.EvaluatorName = core.CleanString(s.EvaluatorName)
	return validate.Struct(s)
}

type QueryFilter struct {
	ClientID    string `query:"client_id"`
	GuardID     string `query:"guard_id"`
	CreatedFrom time.Time
	CreatedTo   time.Time
	Limit       int `query:"limit"`
}

func (qf *QueryFilter) Clean() {
	qf.ClientID = core.CleanString(qf.ClientID)
	qf.GuardID = core.CleanString(qf.GuardID)
	if qf.Limit < 0 {
		qf.Limit = 0
	}
}

// OrderingColumns maps the API ordering fields to their columns.
var OrderingColumns = map[string]string{
	"created_at":      "created_at",
	"evaluation_date": "evaluation_date",
	"total_score":     "total_score",
	"guard_id":        "guard_id",
	"client_id":       "client_id",
}

// GuardAverage aggregates the evaluations of one guard.
type GuardAverage struct {
	GuardID      string  `json:"guard_id"`
	GuardName    string  `json:"guard_name"`
	Count        int     `json:"evaluation_count"`
	AverageTotal float64 `json:"average_total"`
}

// TotalCount counts the evaluations that scored a given total.
type TotalCount struct {
	TotalPoints float64 `json:"total_points"`
	Count       int     `json:"count"`
}

type MonthlyCount struct {
	Month string `json:"month"` // YYYY-MM
	Count int    `json:"count"`
}
