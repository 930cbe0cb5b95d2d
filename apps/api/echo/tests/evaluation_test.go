package tests

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/vigil/core/evaluation"
	"github.com/trezcool/vigil/core/guard"
	"github.com/trezcool/vigil/core/rubric"
	"github.com/trezcool/vigil/testutil"
)

type rejectionBody struct {
	Error      string            `json:"error"`
	Code       string            `json:"code"`
	Categories []string          `json:"categories,omitempty"`
	Fields     map[string]string `json:"fields,omitempty"`
}

func submission(t *testing.T, pwd, guardID, date, signature string, scores map[string]float64) []byte {
	return marchallObj(t, map[string]interface{}{
		"password":            pwd,
		"guard_id":            guardID,
		"evaluation_date":     date,
		"scores":              scores,
		"remarks":             map[string]string{"punctuality": "  late twice  "},
		"evaluator_name":      "Jane Rep",
		"evaluator_signature": signature,
	})
}

func fullScores() map[string]float64 {
	return map[string]float64{"punctuality": 0.5, "attendance": 1, "patrol": 0, "dar": 1, "conduct": 0}
}

func Test_evaluationApi_submitRejections(t *testing.T) {
	app := setup(t)
	testutil.CreateGuard(t, grdRepo, "G-001", "John Doe")
	clt := testutil.CreateClient(t, cltRepo, "acme", "Acme Corp", "ops@acme.test", "s3cret-pass")
	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.cd", "", []string{"admin:"}, true)

	cltToken := getClientToken(t, clt)
	partial := map[string]float64{"punctuality": 0, "attendance": 0, "patrol": 0}
	nullConduct := marchallObj(t, map[string]interface{}{
		"password":            "s3cret-pass",
		"guard_id":            "G-001",
		"scores":              map[string]interface{}{"punctuality": 0.5, "attendance": 1, "patrol": 0, "dar": 1, "conduct": nil},
		"evaluator_name":      "Jane Rep",
		"evaluator_signature": "Jane",
	})
	badOption := fullScores()
	badOption["punctuality"] = 0.7
	unknownCat := fullScores()
	unknownCat["hygiene"] = 1

	tests := []httpTest{
		{
			name: "Auth required", method: http.MethodPost, path: "/v1/evaluations",
			body: submission(t, "s3cret-pass", "G-001", "", "Jane", fullScores()), wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		},
		{
			name: "Client required", method: http.MethodPost, path: "/v1/evaluations", token: getToken(t, admin),
			body: submission(t, "s3cret-pass", "G-001", "", "Jane", fullScores()), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "password required", method: http.MethodPost, path: "/v1/evaluations", token: cltToken,
			body: submission(t, "", "G-001", "", "Jane", fullScores()), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"password": "this field is required"}),
		},
		{
			name: "wrong password", method: http.MethodPost, path: "/v1/evaluations", token: cltToken,
			body: submission(t, "wrong-pass", "G-001", "", "Jane", fullScores()), wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, rejectionBody{
				Error: "invalid client ID or password",
				Code:  evaluation.ReasonIdentityFailed,
			}),
		},
		{
			name: "unknown guard", method: http.MethodPost, path: "/v1/evaluations", token: cltToken,
			body: submission(t, "s3cret-pass", "G-404", "", "Jane", fullScores()), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, rejectionBody{
				Error:  "guard not found",
				Code:   evaluation.ReasonUnknownGuard,
				Fields: map[string]string{"guard_id": "guard not found"},
			}),
		},
		{
			name: "incomplete categories", method: http.MethodPost, path: "/v1/evaluations", token: cltToken,
			body: submission(t, "s3cret-pass", "G-001", "", "", partial), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, rejectionBody{
				Error:      "unscored categories: dar, conduct",
				Code:       evaluation.ReasonIncompleteCategories,
				Categories: []string{"dar", "conduct"},
			}),
		},
		{
			name: "null score is unscored", method: http.MethodPost, path: "/v1/evaluations", token: cltToken,
			body: nullConduct, wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, rejectionBody{
				Error:      "unscored categories: conduct",
				Code:       evaluation.ReasonIncompleteCategories,
				Categories: []string{"conduct"},
			}),
		},
		{
			name: "missing signature", method: http.MethodPost, path: "/v1/evaluations", token: cltToken,
			body: submission(t, "s3cret-pass", "G-001", "", "   ", fullScores()), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, rejectionBody{
				Error: "evaluator signature is required",
				Code:  evaluation.ReasonMissingSignature,
			}),
		},
		{
			name: "invalid option", method: http.MethodPost, path: "/v1/evaluations", token: cltToken,
			body: submission(t, "s3cret-pass", "G-001", "", "Jane", badOption), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, rejectionBody{
				Error:      `invalid score 0.7 for category "punctuality"`,
				Code:       evaluation.ReasonInvalidScore,
				Categories: []string{"punctuality"},
			}),
		},
		{
			name: "unknown category", method: http.MethodPost, path: "/v1/evaluations", token: cltToken,
			body: submission(t, "s3cret-pass", "G-001", "", "Jane", unknownCat), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, rejectionBody{
				Error:      `invalid score 1 for category "hygiene"`,
				Code:       evaluation.ReasonInvalidScore,
				Categories: []string{"hygiene"},
			}),
		},
		{
			name: "future date", method: http.MethodPost, path: "/v1/evaluations", token: cltToken,
			body: submission(t, "s3cret-pass", "G-001", "2999-01-01", "Jane", fullScores()), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, rejectionBody{
				Error: "evaluation date cannot be in the future",
				Code:  evaluation.ReasonFutureDate,
			}),
		},
	}
	runHTTPTests(t, app, tests)

	n, err := evalRepo.CountEvaluations(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n, "rejected submissions must not be persisted")
	assert.Empty(t, mailSvc.SentMessages())
}

func Test_evaluationApi_submit(t *testing.T) {
	app := setup(t)
	grd := testutil.CreateGuard(t, grdRepo, "G-001", "John Doe")
	clt := testutil.CreateClient(t, cltRepo, "acme", "Acme Corp", "ops@acme.test", "s3cret-pass")
	cltToken := getClientToken(t, clt)
	body := submission(t, "s3cret-pass", grd.GuardID, "", "Jane", fullScores())

	before := time.Now().UTC()
	req, rec := newAuthRequest(http.MethodPost, "/v1/evaluations", cltToken, body)
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var view evaluation.View
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.NotEmpty(t, view.ID)
	assert.Equal(t, "acme", view.ClientID)
	assert.Equal(t, "G-001", view.GuardID)
	assert.Equal(t, "John Doe", view.GuardName)
	assert.Equal(t, 2.5, view.TotalPoints)
	assert.Equal(t, rubric.GoodStanding, view.Recommendation.Tier)
	assert.True(t, view.Editable)
	assert.False(t, view.CreatedAt.Before(before.Truncate(time.Second)))
	assert.True(t, view.EditableUntil.Equal(view.CreatedAt.Add(evaluation.DefaultEditWindow)))
	assert.Equal(t, fullScores(), view.Sheet.Scores)
	assert.Equal(t, map[string]string{"punctuality": "late twice"}, view.Sheet.Remarks)
	assert.Equal(t, "Acme Corp", view.Sheet.ClientName)
	assert.Equal(t, "Acme Corp Rep", view.Sheet.RepresentativeName)
	assert.Equal(t, "Jane", view.Sheet.EvaluatorSignature)
	assert.Equal(t, rubric.Default().Version(), view.Sheet.RubricVersion)

	// receipt
	msgs := mailSvc.SentMessages()
	if assert.Len(t, msgs, 1) {
		assert.Equal(t, "ops@acme.test", msgs[0].To[0].Address)
		assert.Contains(t, msgs[0].Subject, "John Doe")
		assert.Contains(t, msgs[0].TextContent, "GOOD STANDING")
		assert.Contains(t, msgs[0].HTMLContent, "<strong>John Doe</strong>")
	}

	// same guard, same day
	req, rec = newAuthRequest(http.MethodPost, "/v1/evaluations", cltToken, body)
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusConflict,
		wantData: marchallObj(t, rejectionBody{
			Error: "this guard has already been evaluated on this date",
			Code:  evaluation.ReasonDuplicate,
		}),
	}, rec)

	// an earlier day is still accepted
	yesterday := time.Now().UTC().AddDate(0, 0, -1).Format("2006-01-02")
	req, rec = newAuthRequest(http.MethodPost, "/v1/evaluations", cltToken,
		submission(t, "s3cret-pass", grd.GuardID, yesterday, "Jane", map[string]float64{
			"punctuality": 3, "attendance": 10, "patrol": 0, "dar": 0, "conduct": 0,
		}))
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, 13.0, view.TotalPoints)
	assert.Equal(t, rubric.Separation, view.Recommendation.Tier)
	assert.Equal(t, yesterday, view.EvaluationDate.Format("2006-01-02"))
}

func Test_evaluationApi_query(t *testing.T) {
	app := setup(t)
	now := time.Now().UTC()
	window := evaluation.DefaultEditWindow

	g1 := testutil.CreateGuard(t, grdRepo, "G-001", "John Doe")
	g2 := testutil.CreateGuard(t, grdRepo, "G-002", "Mary Major")
	acme := testutil.CreateClient(t, cltRepo, "acme", "Acme Corp", "", "s3cret-pass")
	globex := testutil.CreateClient(t, cltRepo, "globex", "Globex", "", "s3cret-pass")
	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.cd", "", []string{"admin:"}, true)

	e1 := testutil.CreateEvaluation(t, evalRepo, acme, g1, map[string]float64{"conduct": 5}, 5, now.Add(-72*time.Hour), window)
	e2 := testutil.CreateEvaluation(t, evalRepo, globex, g1, map[string]float64{"attendance": 1}, 1, now.Add(-48*time.Hour), window)
	e3 := testutil.CreateEvaluation(t, evalRepo, acme, g2, map[string]float64{"attendance": 10}, 10, now.Add(-time.Hour), window)

	view := func(rec evaluation.Record, grd guard.Guard) evaluation.View {
		return evaluation.View{
			Record:         rec,
			GuardName:      grd.Name,
			Recommendation: rubric.RecommendationFor(rec.TotalPoints),
			Editable:       evaluation.IsEditable(rec.CreatedAt, time.Now(), window),
		}
	}
	v1, v2, v3 := view(e1, g1), view(e2, g1), view(e3, g2)
	adminToken := getToken(t, admin)
	acmeToken := getClientToken(t, acme)

	path := func(params ...string) string {
		v := make(url.Values)
		for i := 0; i+1 < len(params); i += 2 {
			v.Add(params[i], params[i+1])
		}
		return "/v1/evaluations?" + v.Encode()
	}

	tests := []httpTest{
		{name: "Auth required", path: "/v1/evaluations", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "Admin gets all", path: "/v1/evaluations", token: adminToken, wantData: marchallList(t, v3, v2, v1)},
		{name: "Client gets own", path: "/v1/evaluations", token: acmeToken, wantData: marchallList(t, v3, v1)},
		{
			name: "Client cannot widen", path: path("client_id", "globex"), token: acmeToken,
			wantData: marchallList(t, v3, v1),
		},
		{name: "guard_id", path: path("guard_id", "G-001"), token: adminToken, wantData: marchallList(t, v2, v1)},
		{
			name: "guard_id & client_id", path: path("guard_id", "G-001", "client_id", "globex"), token: adminToken,
			wantData: marchallList(t, v2),
		},
		{
			name: "created_from", path: path("created_from", now.Add(-50*time.Hour).Format(time.RFC3339)), token: adminToken,
			wantData: marchallList(t, v3, v2),
		},
		{
			name: "created_to", path: path("created_to", now.Add(-50*time.Hour).Format(time.RFC3339)), token: adminToken,
			wantData: marchallList(t, v1),
		},
		{
			name: "bad created_from", path: path("created_from", "yesterday"), token: adminToken, wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"created_from": "must be an RFC3339 timestamp"}),
		},
		{name: "ordering total_score", path: path("ordering", "total_score"), token: adminToken, wantData: marchallList(t, v2, v1, v3)},
		{name: "limit", path: path("limit", "1"), token: adminToken, wantData: marchallList(t, v3)},
		// detail
		{name: "retrieve (admin)", path: "/v1/evaluations/" + e2.ID, token: adminToken, wantData: marchallObj(t, v2)},
		{name: "retrieve (owner)", path: "/v1/evaluations/" + e1.ID, token: acmeToken, wantData: marchallObj(t, v1)},
		{
			name: "retrieve (other client)", path: "/v1/evaluations/" + e2.ID, token: acmeToken, wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
		{
			name: "retrieve (unknown)", path: "/v1/evaluations/lol", token: adminToken, wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
	}
	runHTTPTests(t, app, tests)

	assert.True(t, v3.Editable)
	assert.False(t, v1.Editable)
}
