package school

import (
	"context"
	"sync"
)

// GatewayMock wraps a Gateway, counting calls and failing the ones told to.
type GatewayMock struct {
	Gateway

	mu       sync.Mutex
	calls    map[string]int
	failures map[string]error
}

func NewGatewayMock(gw Gateway) *GatewayMock {
	return &GatewayMock{
		Gateway:  gw,
		calls:    make(map[string]int),
		failures: make(map[string]error),
	}
}

// FailWith makes method fail with err. An empty method fails every call.
func (m *GatewayMock) FailWith(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[method] = err
}

// Reset clears failures and counters.
func (m *GatewayMock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = make(map[string]int)
	m.failures = make(map[string]error)
}

func (m *GatewayMock) Calls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

func (m *GatewayMock) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int
	for _, c := range m.calls {
		n += c
	}
	return n
}

func (m *GatewayMock) hit(method string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[method]++
	if err, ok := m.failures[method]; ok {
		return err
	}
	return m.failures[""]
}

func (m *GatewayMock) SignUp(ctx context.Context, nc NewCoordinator) (AuthSession, error) {
	if err := m.hit("SignUp"); err != nil {
		return AuthSession{}, err
	}
	return m.Gateway.SignUp(ctx, nc)
}

func (m *GatewayMock) SignIn(ctx context.Context, email, password string) (AuthSession, error) {
	if err := m.hit("SignIn"); err != nil {
		return AuthSession{}, err
	}
	return m.Gateway.SignIn(ctx, email, password)
}

func (m *GatewayMock) SignOut(ctx context.Context) error {
	if err := m.hit("SignOut"); err != nil {
		return err
	}
	return m.Gateway.SignOut(ctx)
}

func (m *GatewayMock) CurrentSession(ctx context.Context) (*AuthSession, error) {
	if err := m.hit("CurrentSession"); err != nil {
		return nil, err
	}
	return m.Gateway.CurrentSession(ctx)
}

func (m *GatewayMock) GetSchoolByPIN(ctx context.Context, pin string) (School, error) {
	if err := m.hit("GetSchoolByPIN"); err != nil {
		return School{}, err
	}
	return m.Gateway.GetSchoolByPIN(ctx, pin)
}

func (m *GatewayMock) GetAllDataForSchool(ctx context.Context, schoolID string) (SchoolData, error) {
	if err := m.hit("GetAllDataForSchool"); err != nil {
		return SchoolData{}, err
	}
	return m.Gateway.GetAllDataForSchool(ctx, schoolID)
}

func (m *GatewayMock) CreateTeacher(ctx context.Context, t Teacher) (Teacher, error) {
	if err := m.hit("CreateTeacher"); err != nil {
		return Teacher{}, err
	}
	return m.Gateway.CreateTeacher(ctx, t)
}

func (m *GatewayMock) UpdateTeacher(ctx context.Context, t Teacher) (Teacher, error) {
	if err := m.hit("UpdateTeacher"); err != nil {
		return Teacher{}, err
	}
	return m.Gateway.UpdateTeacher(ctx, t)
}

func (m *GatewayMock) DeleteTeacher(ctx context.Context, schoolID, teacherID string) error {
	if err := m.hit("DeleteTeacher"); err != nil {
		return err
	}
	return m.Gateway.DeleteTeacher(ctx, schoolID, teacherID)
}

func (m *GatewayMock) CreateStudents(ctx context.Context, students []Student) ([]Student, error) {
	if err := m.hit("CreateStudents"); err != nil {
		return nil, err
	}
	return m.Gateway.CreateStudents(ctx, students)
}

func (m *GatewayMock) UpdateStudent(ctx context.Context, s Student) (Student, error) {
	if err := m.hit("UpdateStudent"); err != nil {
		return Student{}, err
	}
	return m.Gateway.UpdateStudent(ctx, s)
}

func (m *GatewayMock) DeleteStudent(ctx context.Context, schoolID, studentID string) error {
	if err := m.hit("DeleteStudent"); err != nil {
		return err
	}
	return m.Gateway.DeleteStudent(ctx, schoolID, studentID)
}

func (m *GatewayMock) RecordFeePayment(ctx context.Context, schoolID string, p FeePayment) (FeePayment, error) {
	if err := m.hit("RecordFeePayment"); err != nil {
		return FeePayment{}, err
	}
	return m.Gateway.RecordFeePayment(ctx, schoolID, p)
}

func (m *GatewayMock) UpsertAttendance(ctx context.Context, schoolID string, records []AttendanceRecord) ([]AttendanceRecord, error) {
	if err := m.hit("UpsertAttendance"); err != nil {
		return nil, err
	}
	return m.Gateway.UpsertAttendance(ctx, schoolID, records)
}

func (m *GatewayMock) UpsertTeacherAttendance(ctx context.Context, schoolID string, records []TeacherAttendanceRecord) ([]TeacherAttendanceRecord, error) {
	if err := m.hit("UpsertTeacherAttendance"); err != nil {
		return nil, err
	}
	return m.Gateway.UpsertTeacherAttendance(ctx, schoolID, records)
}

func (m *GatewayMock) UpsertDailySubmission(ctx context.Context, sub DailySubmission) (DailySubmission, error) {
	if err := m.hit("UpsertDailySubmission"); err != nil {
		return DailySubmission{}, err
	}
	return m.Gateway.UpsertDailySubmission(ctx, sub)
}

func (m *GatewayMock) UpdateSchoolPIN(ctx context.Context, schoolID, pin string) (School, error) {
	if err := m.hit("UpdateSchoolPIN"); err != nil {
		return School{}, err
	}
	return m.Gateway.UpdateSchoolPIN(ctx, schoolID, pin)
}
