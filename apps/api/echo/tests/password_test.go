package tests

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frizwan636-dotcom/attendancepro/core"
	"github.com/frizwan636-dotcom/attendancepro/core/school"
	"github.com/frizwan636-dotcom/attendancepro/services/email"
	"github.com/frizwan636-dotcom/attendancepro/tests"
)

const newPassword = "Vb8$wN4!qZr"

func (a app) resetToken(t *testing.T) string {
	coord, hash, err := a.env.Repo.GetCredentials(context.Background(), testutil.OakEmail)
	require.NoError(t, err)
	token, err := school.MakeResetToken(a.conf.SecretKey, coord, hash)
	require.NoError(t, err)
	return token
}

func Test_schoolApi_requestPasswordReset(t *testing.T) {
	a := setup(t)
	path := "/v1/auth/password-reset"

	rec := a.do(httpTest{method: http.MethodPost, path: path, body: marchallObj(t, map[string]string{"email": "nobody@oak.school"})})
	assert.Equal(t, http.StatusNoContent, rec.Code, "unknown emails look the same")
	assert.Empty(t, emailsvc.SentMessages())

	rec = a.do(httpTest{method: http.MethodPost, path: path, body: marchallObj(t, map[string]string{"email": "x"})})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(httpTest{method: http.MethodPost, path: path, body: marchallObj(t, map[string]string{"email": " Principal@Oak.School "})})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	sent := emailsvc.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, testutil.OakEmail, sent[0].To[0].Address)
	assert.Equal(t, "Reset your password", sent[0].Subject)
	assert.Contains(t, sent[0].TextContent, a.resetToken(t))
}

func Test_schoolApi_confirmPasswordReset(t *testing.T) {
	a := setup(t)
	path := "/v1/auth/password-reset/confirm"
	token := a.resetToken(t)

	body := func(email, token, pwd, confirm string) []byte {
		return marchallObj(t, map[string]string{"email": email, "token": token, "password": pwd, "password_confirm": confirm})
	}
	tests := []struct {
		name      string
		body      []byte
		wantField string
	}{
		{"missing token", body(testutil.OakEmail, "", newPassword, newPassword), "token"},
		{"passwords differ", body(testutil.OakEmail, token, newPassword, newPassword+"x"), "password_confirm"},
		{"tampered token", body(testutil.OakEmail, token+"x", newPassword, newPassword), "token"},
		{"unknown email", body("nobody@oak.school", token, newPassword, newPassword), "token"},
		{"weak password", body(testutil.OakEmail, token, "12345678", "12345678"), "password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := a.do(httpTest{method: http.MethodPost, path: path, body: tt.body})
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			var payload core.ErrorPayload
			decode(t, rec, &payload)
			assert.Equal(t, core.KindValidation, payload.Kind)
			if assert.NotEmpty(t, payload.Fields) {
				assert.Equal(t, tt.wantField, payload.Fields[0].Field)
			}
		})
	}

	rec := a.do(httpTest{method: http.MethodPost, path: path, body: body(testutil.OakEmail, token, newPassword, newPassword)})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var sess school.AuthSession
	decode(t, rec, &sess)
	assert.Equal(t, a.oak.Coordinator.ID, sess.UserID)
	assert.NotEmpty(t, sess.Token)

	// the new password works and the token is spent
	rec = a.do(httpTest{method: http.MethodPost, path: "/v1/auth/login", body: marchallObj(t, map[string]string{"email": testutil.OakEmail, "password": newPassword})})
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = a.do(httpTest{method: http.MethodPost, path: path, body: body(testutil.OakEmail, token, "Zt5#pL9@mWq", "Zt5#pL9@mWq")})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
