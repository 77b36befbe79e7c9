// Package remotegw implements school.Gateway over the JSON API served by apps/api.
package remotegw

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/frizwan636-dotcom/attendancepro/core"
	"github.com/frizwan636-dotcom/attendancepro/core/school"
)

const (
	schoolPINHeader = "X-School-Pin"

	errPINChangeNeedsSignIn = "sign in with email and password to change the school PIN"
)

// Client talks to the API on behalf of one device.
// It remembers the coordinator token after a sign in, and the school PIN after a lookup,
// and sends whichever it holds on school scoped calls.
type Client struct {
	baseURL string
	http    *http.Client

	mu      sync.RWMutex
	session *school.AuthSession
	pin     string
}

var _ school.Gateway = (*Client)(nil) // interface compliance check

func New(baseURL string, httpClient *http.Client) *Client {
	vala.BeginValidation().Validate(
		vala.StringNotEmpty(baseURL, "baseURL"),
		vala.IsNotNil(httpClient, "httpClient"),
	).CheckAndPanic()

	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// NewFromConfig builds a client from the gateway section of the config.
func NewFromConfig(conf *core.Config) *Client {
	return New(conf.Gateway.BaseURL, &http.Client{Timeout: conf.Gateway.Timeout})
}

// Restore reuses a session persisted by a previous run.
func (c *Client) Restore(sess school.AuthSession) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = &sess
}

func (c *Client) credentials() (token, pin string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session != nil {
		token = c.session.Token
	}
	return token, c.pin
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "encoding request")
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return errors.Wrap(err, "building request")
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	token, pin := c.credentials()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	} else if pin != "" {
		req.Header.Set(schoolPINHeader, pin)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return core.ClassifyTransportError(errors.Wrapf(err, "%s %s", method, path))
	}
	defer resp.Body.Close()

	raw, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return core.NewNetworkError(errors.Wrap(err, "reading response"))
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp.StatusCode, raw)
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err = json.Unmarshal(raw, out); err != nil {
		return errors.Wrap(err, "decoding response")
	}
	return nil
}

func decodeError(code int, raw []byte) error {
	var payload core.ErrorPayload
	if err := json.Unmarshal(raw, &payload); err != nil || payload.Kind == "" {
		if code == http.StatusBadGateway || code == http.StatusServiceUnavailable || code == http.StatusGatewayTimeout {
			return core.NewNetworkError(errors.Errorf("server returned %d", code))
		}
		return errors.Errorf("unexpected response %d: %s", code, string(raw))
	}
	if payload.Kind == core.KindHTTP && code == http.StatusForbidden {
		return core.NewAuthError(payload.Error)
	}
	return payload.Err()
}

func schoolPath(schoolID string, parts ...string) string {
	p := "/v1/schools/" + url.PathEscape(schoolID)
	for _, part := range parts {
		p += "/" + url.PathEscape(part)
	}
	return p
}

// Auth

func (c *Client) SignUp(ctx context.Context, nc school.NewCoordinator) (school.AuthSession, error) {
	var sess school.AuthSession
	if err := c.do(ctx, http.MethodPost, "/v1/auth/signup", nc, &sess); err != nil {
		return school.AuthSession{}, err
	}
	c.Restore(sess)
	return sess, nil
}

func (c *Client) SignIn(ctx context.Context, email, password string) (school.AuthSession, error) {
	var sess school.AuthSession
	in := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/v1/auth/login", in, &sess); err != nil {
		return school.AuthSession{}, err
	}
	c.Restore(sess)
	return sess, nil
}

// SignOut forgets the token and the school PIN. Tokens are stateless, the server is not called.
func (c *Client) SignOut(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = nil
	c.pin = ""
	return nil
}

// CurrentSession refreshes the held token. A rejected token ends the session.
func (c *Client) CurrentSession(ctx context.Context) (*school.AuthSession, error) {
	token, _ := c.credentials()
	if token == "" {
		return nil, nil
	}

	var sess school.AuthSession
	if err := c.do(ctx, http.MethodPost, "/v1/auth/token-refresh", nil, &sess); err != nil {
		if core.IsAuth(err) {
			_ = c.SignOut(ctx)
			return nil, nil
		}
		return nil, err
	}
	c.Restore(sess)
	return &sess, nil
}

// Reads

func (c *Client) GetSchoolByPIN(ctx context.Context, pin string) (school.School, error) {
	var sch school.School
	if err := c.do(ctx, http.MethodGet, "/v1/schools/by-pin/"+url.PathEscape(pin), nil, &sch); err != nil {
		return school.School{}, err
	}
	c.mu.Lock()
	c.pin = pin
	c.mu.Unlock()
	return sch, nil
}

func (c *Client) GetAllDataForSchool(ctx context.Context, schoolID string) (school.SchoolData, error) {
	var data school.SchoolData
	if err := c.do(ctx, http.MethodGet, schoolPath(schoolID, "data"), nil, &data); err != nil {
		return school.SchoolData{}, err
	}
	return data, nil
}

// Teachers

func (c *Client) CreateTeacher(ctx context.Context, t school.Teacher) (school.Teacher, error) {
	var created school.Teacher
	err := c.do(ctx, http.MethodPost, schoolPath(t.SchoolID, "teachers"), t, &created)
	return created, err
}

func (c *Client) UpdateTeacher(ctx context.Context, t school.Teacher) (school.Teacher, error) {
	var updated school.Teacher
	err := c.do(ctx, http.MethodPut, schoolPath(t.SchoolID, "teachers", t.ID), t, &updated)
	return updated, err
}

func (c *Client) DeleteTeacher(ctx context.Context, schoolID, teacherID string) error {
	return c.do(ctx, http.MethodDelete, schoolPath(schoolID, "teachers", teacherID), nil, nil)
}

// Students

func (c *Client) CreateStudents(ctx context.Context, students []school.Student) ([]school.Student, error) {
	if len(students) == 0 {
		return []school.Student{}, nil
	}
	// a batch always belongs to one school
	var created []school.Student
	err := c.do(ctx, http.MethodPost, schoolPath(students[0].SchoolID, "students"), students, &created)
	return created, err
}

func (c *Client) UpdateStudent(ctx context.Context, s school.Student) (school.Student, error) {
	var updated school.Student
	err := c.do(ctx, http.MethodPut, schoolPath(s.SchoolID, "students", s.ID), s, &updated)
	return updated, err
}

func (c *Client) DeleteStudent(ctx context.Context, schoolID, studentID string) error {
	return c.do(ctx, http.MethodDelete, schoolPath(schoolID, "students", studentID), nil, nil)
}

func (c *Client) RecordFeePayment(ctx context.Context, schoolID string, p school.FeePayment) (school.FeePayment, error) {
	var created school.FeePayment
	err := c.do(ctx, http.MethodPost, schoolPath(schoolID, "students", p.StudentID, "payments"), p, &created)
	return created, err
}

// Attendance

func (c *Client) UpsertAttendance(
	ctx context.Context,
	schoolID string,
	records []school.AttendanceRecord,
) ([]school.AttendanceRecord, error) {
	var saved []school.AttendanceRecord
	err := c.do(ctx, http.MethodPut, schoolPath(schoolID, "attendance"), records, &saved)
	return saved, err
}

func (c *Client) UpsertTeacherAttendance(
	ctx context.Context,
	schoolID string,
	records []school.TeacherAttendanceRecord,
) ([]school.TeacherAttendanceRecord, error) {
	var saved []school.TeacherAttendanceRecord
	err := c.do(ctx, http.MethodPut, schoolPath(schoolID, "teacher-attendance"), records, &saved)
	return saved, err
}

func (c *Client) UpsertDailySubmission(ctx context.Context, sub school.DailySubmission) (school.DailySubmission, error) {
	var saved school.DailySubmission
	err := c.do(ctx, http.MethodPut, schoolPath(sub.SchoolID, "submissions"), sub, &saved)
	return saved, err
}

// UpdateSchoolPIN needs a signed in coordinator. The server refuses school PIN holders,
// so the call fails without a round trip when no token is held.
func (c *Client) UpdateSchoolPIN(ctx context.Context, schoolID, pin string) (school.School, error) {
	if token, _ := c.credentials(); token == "" {
		return school.School{}, core.NewAuthError(errPINChangeNeedsSignIn)
	}
	var sch school.School
	if err := c.do(ctx, http.MethodPut, schoolPath(schoolID, "pin"), map[string]string{"pin": pin}, &sch); err != nil {
		return school.School{}, err
	}
	c.mu.Lock()
	if c.pin != "" {
		c.pin = sch.PIN
	}
	c.mu.Unlock()
	return sch, nil
}

func (c *Client) String() string {
	return fmt.Sprintf("remote gateway %s", c.baseURL)
}
