package tests

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/vigil/apps/api/echo"
	"github.com/trezcool/vigil/core/client"
	"github.com/trezcool/vigil/core/evaluation"
	"github.com/trezcool/vigil/testutil"
)

func Test_clientApi_clientQuery(t *testing.T) {
	app := setup(t)
	now := time.Now()

	acme := testutil.CreateClient(t, cltRepo, "acme", "Acme Corp", "ops@acme.test", "s3cret-pass", now.Add(-2*time.Hour))
	globex := testutil.CreateClient(t, cltRepo, "globex", "Globex", "", "s3cret-pass", now.Add(-1*time.Hour))
	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.cd", "", []string{"admin:"}, true)
	adminToken := getToken(t, admin)

	tests := []httpTest{
		{name: "Auth required", path: "/v1/clients", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Admin required", path: "/v1/clients", token: getClientToken(t, acme), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{name: "Get all", path: "/v1/clients", token: adminToken, wantData: marchallList(t, globex, acme)},
		{name: "search=corp", path: "/v1/clients?search=corp", token: adminToken, wantData: marchallList(t, acme)},
		{name: "ordering=client_id", path: "/v1/clients?ordering=client_id", token: adminToken, wantData: marchallList(t, acme, globex)},
		{name: "retrieve", path: "/v1/clients/globex", token: adminToken, wantData: marchallObj(t, globex)},
		{
			name: "retrieve (unknown)", path: "/v1/clients/initech", token: adminToken, wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
	}
	runHTTPTests(t, app, tests)
}

func Test_clientApi_clientCreate(t *testing.T) {
	app := setup(t)
	testutil.CreateClient(t, cltRepo, "acme", "Acme Corp", "", "s3cret-pass")
	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.cd", "", []string{"admin:"}, true)
	adminToken := getToken(t, admin)

	tests := []httpTest{
		{
			name: "invalid fields", method: http.MethodPost, path: "/v1/clients", token: adminToken,
			body: marchallObj(t, client.NewClient{
				ClientID: "globex", Name: "Globex", Email: "lol", Password: "s3cret-pass", PasswordConfirm: "s3cret-pass",
			}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"email": "email must be a valid email address"}),
		},
		{
			name: "duplicate client_id", method: http.MethodPost, path: "/v1/clients", token: adminToken,
			body: marchallObj(t, client.NewClient{
				ClientID: "acme", Name: "Acme 2", Password: "s3cret-pass", PasswordConfirm: "s3cret-pass",
			}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"client_id": client.ErrClientIDExists.Error()}),
		},
	}
	runHTTPTests(t, app, tests)

	t.Run("created", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/clients", adminToken, marchallObj(t, client.NewClient{
			ClientID:           "globex",
			Name:               "Globex",
			RepresentativeName: "Hank Scorpio",
			Email:              "Hank@Globex.test",
			Password:           "s3cret-pass",
			PasswordConfirm:    "s3cret-pass",
		}))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		assert.NotContains(t, rec.Body.String(), "password")

		var clt client.Client
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &clt))
		assert.Equal(t, "globex", clt.ClientID)
		assert.Equal(t, "Hank Scorpio", clt.RepresentativeName)

		// the new client can log in
		req, rec = newRequest(http.MethodPost, "/v1/auth/login", marchallObj(t, LoginRequest{ClientID: "globex", Password: "s3cret-pass"}))
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	})
}

func Test_clientApi_clientResetPassword(t *testing.T) {
	app := setup(t)
	clt := testutil.CreateClient(t, cltRepo, "acme", "Acme Corp", "", "s3cret-pass")
	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.cd", "", []string{"admin:"}, true)
	adminToken := getToken(t, admin)
	path := "/v1/clients/acme/password"

	tests := []httpTest{
		{
			name: "Admin required", method: http.MethodPut, path: path, token: getClientToken(t, clt),
			body:     marchallObj(t, PasswordResetRequest{Password: "n3w-s3cret", PasswordConfirm: "n3w-s3cret"}),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "too short", method: http.MethodPut, path: path, token: adminToken,
			body:     marchallObj(t, PasswordResetRequest{Password: "short", PasswordConfirm: "short"}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"password": "password must be at least 8 characters in length"}),
		},
		{
			name: "mismatch", method: http.MethodPut, path: path, token: adminToken,
			body:     marchallObj(t, PasswordResetRequest{Password: "n3w-s3cret", PasswordConfirm: "n3w-s3cre7"}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"password_confirm": "password_confirm must be equal to Password"}),
		},
		{
			name: "unknown client", method: http.MethodPut, path: "/v1/clients/initech/password", token: adminToken,
			body:     marchallObj(t, PasswordResetRequest{Password: "n3w-s3cret", PasswordConfirm: "n3w-s3cret"}),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
		{
			name: "reset", method: http.MethodPut, path: path, token: adminToken,
			body:     marchallObj(t, PasswordResetRequest{Password: "n3w-s3cret", PasswordConfirm: "n3w-s3cret"}),
			wantData: marchallObj(t, SuccessResponse{Success: "Password has been reset with the new password."}),
		},
	}
	runHTTPTests(t, app, tests)

	got, err := cltRepo.GetClient(context.Background(), "acme")
	require.NoError(t, err)
	assert.NoError(t, got.CheckPassword("n3w-s3cret"))
	assert.Error(t, got.CheckPassword("s3cret-pass"))
}

func Test_clientApi_clientDestroy(t *testing.T) {
	app := setup(t)
	grd := testutil.CreateGuard(t, grdRepo, "G-001", "John Doe")
	acme := testutil.CreateClient(t, cltRepo, "acme", "Acme Corp", "", "s3cret-pass")
	globex := testutil.CreateClient(t, cltRepo, "globex", "Globex", "", "s3cret-pass")
	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.cd", "", []string{"admin:"}, true)

	now := time.Now()
	testutil.CreateEvaluation(t, evalRepo, acme, grd, map[string]float64{"dar": 1}, 1, now, evaluation.DefaultEditWindow)
	kept := testutil.CreateEvaluation(t, evalRepo, globex, grd, map[string]float64{"dar": 2}, 2, now.AddDate(0, 0, -1), evaluation.DefaultEditWindow)

	req, rec := newAuthRequest(http.MethodDelete, "/v1/clients/acme", getToken(t, admin))
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	_, err := cltRepo.GetClient(context.Background(), "acme")
	assert.Equal(t, client.ErrNotFound, err)

	recs, err := evalRepo.QueryEvaluations(context.Background(), evaluation.QueryFilter{}, nil)
	require.NoError(t, err)
	if assert.Len(t, recs, 1) {
		assert.Equal(t, kept.ID, recs[0].ID)
	}
}
