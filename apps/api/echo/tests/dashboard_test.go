package tests

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/vigil/core/evaluation"
	"github.com/trezcool/vigil/core/rubric"
	"github.com/trezcool/vigil/core/user"
	"github.com/trezcool/vigil/testutil"
)

func Test_dashboardApi(t *testing.T) {
	app := setup(t)
	now := time.Now().UTC()
	window := evaluation.DefaultEditWindow

	john := testutil.CreateGuard(t, grdRepo, "G-001", "John Doe")
	mary := testutil.CreateGuard(t, grdRepo, "G-002", "Mary Major")
	testutil.CreateGuard(t, grdRepo, "G-003", "Never Evaluated")
	acme := testutil.CreateClient(t, cltRepo, "acme", "Acme Corp", "", "s3cret-pass")
	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true)

	testutil.CreateEvaluation(t, evalRepo, acme, john, map[string]float64{"conduct": 10}, 10, now, window)
	testutil.CreateEvaluation(t, evalRepo, acme, john, map[string]float64{"dar": 2}, 2, now.AddDate(0, 0, -1), window)
	testutil.CreateEvaluation(t, evalRepo, acme, mary, map[string]float64{"punctuality": 0.5}, 0.5, now, window)

	runHTTPTests(t, app, []httpTest{
		{name: "Auth required", path: "/v1/dashboard", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Admin required", path: "/v1/dashboard", token: getClientToken(t, acme), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
	})

	req, rec := newAuthRequest(http.MethodGet, "/v1/dashboard", getToken(t, admin))
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var dash evaluation.Dashboard
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dash))
	assert.Equal(t, 3, dash.GuardCount)
	assert.Equal(t, 1, dash.ClientCount)
	assert.Equal(t, 3, dash.EvaluationCount)

	// lowest average penalty first
	assert.Equal(t, []evaluation.GuardAverage{
		{GuardID: "G-002", GuardName: "Mary Major", Count: 1, AverageTotal: 0.5},
		{GuardID: "G-001", GuardName: "John Doe", Count: 2, AverageTotal: 6},
	}, dash.TopPerformers)

	assert.Equal(t, map[rubric.Tier]int{
		rubric.GoodStanding: 2,
		rubric.Warning:      0,
		rubric.FinalWriteUp: 0,
		rubric.Separation:   1,
	}, dash.TierBreakdown)

	if assert.Len(t, dash.Monthly, 6) {
		last := dash.Monthly[5]
		assert.Equal(t, now.Format("2006-01"), last.Month)
		// yesterday may fall in the previous month
		total := 0
		for _, m := range dash.Monthly {
			total += m.Count
		}
		assert.Equal(t, 3, total)
	}
	assert.Len(t, dash.Recent, 3)
}

func Test_metricsEndpoint(t *testing.T) {
	app := setup(t)

	req, rec := newRequest(http.MethodGet, "/v1/rubric")
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	req, rec = newRequest(http.MethodGet, "/v1/guards")
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req, rec = newRequest(http.MethodGet, "/metrics")
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `vigil_http_requests_total{endpoint="/v1/rubric",method="GET",status_code="200"} 1`), body)
	assert.True(t, strings.Contains(body, `vigil_http_requests_total{endpoint="/v1/guards",method="GET",status_code="401"} 1`), body)
	assert.Contains(t, body, "vigil_http_request_duration_seconds")
}
