// Package localgw implements school.Gateway directly on top of a school.Repository.
// It serves single-process setups (the admin CLI, tests) and the API server itself.
package localgw

import (
	"context"
	"sync"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/frizwan636-dotcom/attendancepro/core"
	"github.com/frizwan636-dotcom/attendancepro/core/school"
)

type Gateway struct {
	repo       school.Repository
	validate   *validator.Validate
	translator ut.Translator

	mu      sync.RWMutex
	session *school.AuthSession
}

var _ school.Gateway = (*Gateway)(nil) // interface compliance check

func New(repo school.Repository, validate *validator.Validate, translator ut.Translator) *Gateway {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(validate, "validate"),
		vala.IsNotNil(translator, "translator"),
	).CheckAndPanic()

	return &Gateway{repo: repo, validate: validate, translator: translator}
}

// Register creates a school with its coordinator without opening a session.
func (gw *Gateway) Register(ctx context.Context, nc school.NewCoordinator) (school.School, school.Teacher, error) {
	if err := nc.Validate(gw.validate); err != nil {
		return school.School{}, school.Teacher{}, core.TranslateValidationErrors(err, gw.translator)
	}
	hash, err := school.HashPassword(nc.Password)
	if err != nil {
		return school.School{}, school.Teacher{}, errors.Wrap(err, "hashing password")
	}

	sch, coord, err := gw.repo.CreateSchool(
		ctx,
		school.School{Name: nc.SchoolName, PIN: nc.SchoolPIN},
		school.Teacher{
			Name:         nc.Name,
			Email:        nc.Email,
			PIN:          nc.PIN,
			Role:         school.RoleCoordinator,
			MobileNumber: nc.MobileNumber,
		},
		hash,
	)
	if err != nil {
		return school.School{}, school.Teacher{}, errors.Wrap(err, "creating school")
	}
	return sch, coord, nil
}

// Authenticate checks coordinator credentials without opening a session.
func (gw *Gateway) Authenticate(ctx context.Context, email, password string) (school.Teacher, error) {
	coord, hash, err := gw.repo.GetCredentials(ctx, core.CleanString(email, true /* lower */))
	if err != nil {
		if core.IsNotFound(err) {
			return school.Teacher{}, core.NewAuthError(school.ErrInvalidCredentials.Error())
		}
		return school.Teacher{}, errors.Wrap(err, "getting credentials")
	}
	if err = school.CheckPassword(hash, password); err != nil {
		return school.Teacher{}, core.NewAuthError(school.ErrInvalidCredentials.Error())
	}
	return coord, nil
}

func (gw *Gateway) SignUp(ctx context.Context, nc school.NewCoordinator) (school.AuthSession, error) {
	sch, coord, err := gw.Register(ctx, nc)
	if err != nil {
		return school.AuthSession{}, err
	}
	return gw.open(school.AuthSession{UserID: coord.ID, SchoolID: sch.ID, Email: coord.Email}), nil
}

func (gw *Gateway) SignIn(ctx context.Context, email, password string) (school.AuthSession, error) {
	coord, err := gw.Authenticate(ctx, email, password)
	if err != nil {
		return school.AuthSession{}, err
	}
	return gw.open(school.AuthSession{UserID: coord.ID, SchoolID: coord.SchoolID, Email: coord.Email}), nil
}

func (gw *Gateway) open(sess school.AuthSession) school.AuthSession {
	gw.mu.Lock()
	defer gw.mu.Unlock()
	gw.session = &sess
	return sess
}

func (gw *Gateway) SignOut(context.Context) error {
	gw.mu.Lock()
	defer gw.mu.Unlock()
	gw.session = nil
	return nil
}

func (gw *Gateway) CurrentSession(context.Context) (*school.AuthSession, error) {
	gw.mu.RLock()
	defer gw.mu.RUnlock()
	if gw.session == nil {
		return nil, nil
	}
	sess := *gw.session
	return &sess, nil
}

func (gw *Gateway) GetSchoolByPIN(ctx context.Context, pin string) (school.School, error) {
	return gw.repo.GetSchoolByPIN(ctx, pin)
}

func (gw *Gateway) GetAllDataForSchool(ctx context.Context, schoolID string) (school.SchoolData, error) {
	return gw.repo.GetSchoolData(ctx, schoolID)
}

func (gw *Gateway) CreateTeacher(ctx context.Context, t school.Teacher) (school.Teacher, error) {
	return gw.repo.CreateTeacher(ctx, t)
}

func (gw *Gateway) UpdateTeacher(ctx context.Context, t school.Teacher) (school.Teacher, error) {
	return gw.repo.UpdateTeacher(ctx, t)
}

func (gw *Gateway) DeleteTeacher(ctx context.Context, schoolID, teacherID string) error {
	return gw.repo.DeleteTeacher(ctx, schoolID, teacherID)
}

func (gw *Gateway) CreateStudents(ctx context.Context, students []school.Student) ([]school.Student, error) {
	return gw.repo.CreateStudents(ctx, students)
}

func (gw *Gateway) UpdateStudent(ctx context.Context, s school.Student) (school.Student, error) {
	return gw.repo.UpdateStudent(ctx, s)
}

func (gw *Gateway) DeleteStudent(ctx context.Context, schoolID, studentID string) error {
	return gw.repo.DeleteStudent(ctx, schoolID, studentID)
}

func (gw *Gateway) RecordFeePayment(ctx context.Context, schoolID string, p school.FeePayment) (school.FeePayment, error) {
	return gw.repo.CreateFeePayment(ctx, schoolID, p)
}

func (gw *Gateway) UpsertAttendance(
	ctx context.Context,
	schoolID string,
	records []school.AttendanceRecord,
) ([]school.AttendanceRecord, error) {
	return gw.repo.UpsertAttendance(ctx, schoolID, records)
}

func (gw *Gateway) UpsertTeacherAttendance(
	ctx context.Context,
	schoolID string,
	records []school.TeacherAttendanceRecord,
) ([]school.TeacherAttendanceRecord, error) {
	return gw.repo.UpsertTeacherAttendance(ctx, schoolID, records)
}

func (gw *Gateway) UpsertDailySubmission(ctx context.Context, sub school.DailySubmission) (school.DailySubmission, error) {
	return gw.repo.UpsertDailySubmission(ctx, sub)
}

func (gw *Gateway) UpdateSchoolPIN(ctx context.Context, schoolID, pin string) (school.School, error) {
	return gw.repo.UpdateSchoolPIN(ctx, schoolID, pin)
}

// ResetPassword replaces a coordinator's password. The new one must satisfy the signup policy.
func (gw *Gateway) ResetPassword(ctx context.Context, email, password string) error {
	coord, _, err := gw.repo.GetCredentials(ctx, core.CleanString(email, true /* lower */))
	if err != nil {
		return errors.Wrap(err, "getting credentials")
	}
	pr := school.PasswordReset{Name: coord.Name, Email: coord.Email, Password: password, PasswordConfirm: password}
	if err = pr.Validate(gw.validate); err != nil {
		return core.TranslateValidationErrors(err, gw.translator)
	}
	hash, err := school.HashPassword(password)
	if err != nil {
		return errors.Wrap(err, "hashing password")
	}
	return gw.repo.SetPasswordHash(ctx, coord.ID, hash)
}
