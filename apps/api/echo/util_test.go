package echoapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	. "github.com/trezcool/schoolconnect/apps/api/echo"
	"github.com/trezcool/schoolconnect/apps/shared"
	"github.com/trezcool/schoolconnect/core"
	"github.com/trezcool/schoolconnect/tests"
)

type (
	httpTest struct {
		name     string
		method   string
		path     string
		body     []byte
		token    string
		wantCode int
		wantKind string
	}

	apiResult struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Message string          `json:"message"`
		Kind    string          `json:"kind"`
	}

	sessionData struct {
		Session map[string]interface{} `json:"session"`
		Token   string                 `json:"token"`
	}

	fixture struct {
		app     Server
		backend *testutil.StubBackend
		deps    *shared.Deps
	}
)

// newGateway fakes the communication and payment services.
func newGateway(t *testing.T) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/communication/parent/communicationList":
			_, _ = w.Write([]byte(`{"status":{"success":true},"result":[{"ORG_COMMUNICATION_MASTER_ID":7,"SUBJECT":"Homework"}]}`))
		case "/communication/detail":
			_, _ = w.Write([]byte(`{"status":{"success":true},"result":{"header":{"IS_ACTIVE":"Y"},"detail":[{"ORG_COMMUNICATION_DETAIL_ID":1,"MESSAGE":"Hello"}]}}`))
		case "/student/config":
			_, _ = w.Write([]byte(`{"result":{"FEE_BIFURCATION":"Y","FEE_BIFURCATION_GROUP_NAME":"Tuition,Transport","PENDING_FEE":4500,"PREV_YEAR_FEES":"2023-2024"}}`))
		case "/fees/getPaymentReceipts":
			_, _ = w.Write([]byte(`{"receiptList":[{"receiptNo":"R-1","amountPaid":1500,"academicYear":"2024-2025"},{"receiptNo":"R-2","amountPaid":900,"academicYear":"2023-2024"}]}`))
		case "/payment/init":
			_, _ = w.Write([]byte(`{"status":{"success":true},"result":"PAY-1"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func setup(t *testing.T, edit ...func(conf *core.Config)) *fixture {
	backend := testutil.NewStubBackend()
	backend.AddUser("cv123", "pass1", "Dhwani",
		testutil.Alert(1, "22-03-2025 18:50:10", "School closed"),
		testutil.Circular(2, "21-03-2025 09:00:00", "Annual day"),
		testutil.Homework(3, "20-03-2025 08:00:00", "Maths"),
	)
	backend.AddUser("cv456", "pass2", "Ishaan")
	backend.AddUser("cv789", "pass3", "Mira")

	gw := newGateway(t)
	conf := &core.Config{
		AppName:  "SchoolConnect",
		Debug:    true,
		TestMode: true,
		API:      core.APIConfig{GatewayBaseURL: gw.URL, FeesBaseURL: gw.URL + "/fees"},
		Content:  core.ContentConfig{PageSize: 10},
		Storage:  core.StorageConfig{Engine: core.EngineMemory},
		Vault:    core.VaultConfig{Engine: core.EngineMemory},
		Users:    core.UsersConfig{Max: 2},
		Server:   core.ServerConfig{SecretKey: "test-secret"},
	}
	for _, fn := range edit {
		fn(conf)
	}

	deps, err := shared.NewDeps(context.Background(), shared.Options{Conf: conf, Logger: testutil.NewLogger(t), Backend: backend})
	require.NoError(t, err)
	t.Cleanup(func() { _ = deps.Close() })

	return &fixture{
		app:     NewServer(&Options{DisableReqLogs: true, Deps: deps}),
		backend: backend,
		deps:    deps,
	}
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

func (f *fixture) do(t *testing.T, method, path, token string, data ...[]byte) (int, apiResult) {
	req, rec := newAuthRequest(method, path, token, data...)
	f.app.ServeHTTP(rec, req)

	var res apiResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res), "body: %s", rec.Body.String())
	return rec.Code, res
}

// login logs `username` in through the API and returns its bearer token.
func (f *fixture) login(t *testing.T, username, password string, addChild bool) string {
	body := marshallObj(t, map[string]interface{}{"username": username, "password": password, "add_child": addChild})
	code, res := f.do(t, http.MethodPost, "/v1/session/login", "", body)
	require.Equal(t, http.StatusOK, code, "login(%s): %s", username, res.Message)

	var data sessionData
	require.NoError(t, json.Unmarshal(res.Data, &data))
	require.NotEmpty(t, data.Token)
	return data.Token
}

func (f *fixture) run(t *testing.T, tt httpTest) apiResult {
	code, res := f.do(t, tt.method, tt.path, tt.token, tt.body)
	if code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v (message %q)", code, tt.wantCode, res.Message)
	}
	if res.Success != (tt.wantCode == http.StatusOK) {
		t.Errorf("failed! success = %v for code %v", res.Success, code)
	}
	if tt.wantKind != "" && res.Kind != tt.wantKind {
		t.Errorf("failed! kind = %q; wantKind %q", res.Kind, tt.wantKind)
	}
	return res
}

func marshallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshallObj() failed: %v", err)
	}
	return data
}
