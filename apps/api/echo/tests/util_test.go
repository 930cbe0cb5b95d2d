package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/vigil/apps/api/echo"
	"github.com/trezcool/vigil/core"
	"github.com/trezcool/vigil/core/client"
	"github.com/trezcool/vigil/core/evaluation"
	"github.com/trezcool/vigil/core/guard"
	"github.com/trezcool/vigil/core/user"
	emailsvc "github.com/trezcool/vigil/services/email"
	metricsvc "github.com/trezcool/vigil/services/metrics"
	inmemdb "github.com/trezcool/vigil/storage/database/inmem"
	"github.com/trezcool/vigil/testutil"
)

var (
	conf     *core.Config
	usrRepo  user.Repository
	grdRepo  guard.Repository
	cltRepo  client.Repository
	evalRepo evaluation.Repository
	mailSvc  *emailsvc.ConsoleServiceMock

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
)

func testConfig() *core.Config {
	return &core.Config{
		Env:             "TEST",
		TestMode:        true,
		AppName:         "Vigil",
		SecretKey:       "test-secret-key",
		FrontendBaseURL: "http://localhost:3000",
		Server: core.ServerConfig{
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: time.Hour,
			DisableReqLogs:            true,
		},
		Evaluation: core.EvaluationConfig{
			EditWindow:         evaluation.DefaultEditWindow,
			CompletenessPolicy: string(evaluation.RequireAll),
		},
	}
}

func setup(t *testing.T) *Server {
	t.Helper()
	logger := testutil.NewNopLogger()
	conf = testConfig()

	// set up DB & repos
	db := inmemdb.Open()
	usrRepo = inmemdb.NewUserRepository(db)
	grdRepo = inmemdb.NewGuardRepository(db)
	cltRepo = inmemdb.NewClientRepository(db)
	evalRepo = inmemdb.NewEvaluationRepository(db)

	// set up validators & templates
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	require.NoError(t, core.ParseEmailTemplates(true /* strict */))

	// set up services
	mailSvc = emailsvc.NewConsoleServiceMock(conf, logger)
	usrSvc := user.NewService(usrRepo)
	grdSvc := guard.NewService(grdRepo)
	cltSvc := client.NewService(cltRepo)
	metrics := metricsvc.NewManager(metricsvc.WithRegistry(prometheus.NewRegistry()))
	evalSvc := evaluation.NewService(evalRepo, cltSvc, grdSvc, mailSvc, logger, evaluation.Options{
		Policy:     evaluation.RequireAll,
		EditWindow: conf.Evaluation.EditWindow,
		Metrics:    metrics,
	})

	// set up server
	return NewServer(ServerDeps{
		Conf:       conf,
		Logger:     logger,
		Validate:   validate,
		Translator: translator,
		Metrics:    metrics,
		UserSvc:    usrSvc,
		GuardSvc:   grdSvc,
		ClientSvc:  cltSvc,
		EvalSvc:    evalSvc,
	})
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, usr user.User) string {
	token, err := GenerateUserToken(conf, usr)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func getClientToken(t *testing.T, clt client.Client) string {
	token, err := GenerateClientToken(conf, clt)
	if err != nil {
		t.Fatalf("getClientToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runHTTPTests(t *testing.T, app *Server, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			req, rec := newAuthRequest(method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			if tt.wantCode == 0 {
				tt.wantCode = http.StatusOK
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}
