package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/frizwan636-dotcom/attendancepro/apps/api/echo"
	"github.com/frizwan636-dotcom/attendancepro/core"
	"github.com/frizwan636-dotcom/attendancepro/core/school"
	"github.com/frizwan636-dotcom/attendancepro/services/email"
	"github.com/frizwan636-dotcom/attendancepro/tests"
)

type app struct {
	*echoapi.Server
	conf *core.Config
	env  *testutil.Env
	oak testutil.OakSchool
}

func setup(t *testing.T) app {
	env := testutil.NewEnv(t)
	oak := testutil.SeedOakSchool(t, env.Repo)

	conf := core.NewTestConfig()
	core.ParseEmailTemplates(conf, env.Logger)
	emailsvc.ResetSentMessages()

	validate, translator := school.NewValidator()
	server := echoapi.NewServer(echoapi.ServerDeps{
		Conf:       conf,
		Logger:     env.Logger,
		Repo:       env.Repo,
		Gateway:    env.Gateway,
		Email:      emailsvc.NewConsoleServiceMock(conf, env.Logger),
		Validate:   validate,
		Translator: translator,
	})
	return app{Server: server, conf: conf, env: env, oak: oak}
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	pin      string
	wantCode int
	wantData []byte
}

func newRequest(tt httpTest) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	body.Write(tt.body)
	method := tt.method
	if method == "" {
		method = http.MethodGet
	}
	req := httptest.NewRequest(method, tt.path, &body)
	req.Header.Set("Content-Type", "application/json")
	if tt.token != "" {
		req.Header.Set("Authorization", "Bearer "+tt.token)
	}
	if tt.pin != "" {
		req.Header.Set("X-School-Pin", tt.pin)
	}
	return req, httptest.NewRecorder()
}

func (a app) do(tt httpTest) *httptest.ResponseRecorder {
	req, rec := newRequest(tt)
	a.ServeHTTP(rec, req)
	return rec
}

func (a app) token(t *testing.T, coord school.Teacher) string {
	token, err := a.Token(coord)
	if err != nil {
		t.Fatalf("token() failed: %v", err)
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

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode() failed: %v; body %s", err, rec.Body.String())
	}
}

func errBody(msg, kind string) core.ErrorPayload {
	return core.ErrorPayload{Error: msg, Kind: kind}
}
