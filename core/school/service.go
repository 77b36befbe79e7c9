package school

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/frizwan636-dotcom/attendancepro/core"
)

var (
	nowFunc = func() time.Time { return time.Now().UTC() } // mockable

	// errors shared with repositories
	ErrEmailExists        = errors.New("a teacher with this email already exists")
	ErrRollExists         = errors.New("a student with this roll number already exists")
	ErrSchoolPINExists    = errors.New("this school PIN is already in use")
	ErrInvalidCredentials = errors.New("invalid email or password")

	errInvalidInput      = errors.New("invalid input")
	errDuplicateRoll     = errors.New("roll number is repeated in this batch")
	errNoStudents        = errors.New("no students to add")
	errNoRecords         = errors.New("no attendance to save")
	errInvalidAmount     = errors.New("amount must be a positive number")
	errEmptySchoolPIN    = errors.New("school PIN cannot be empty")
	errRemoveCoordinator = errors.New("the coordinator cannot be removed")
	errAttendanceFrozen  = errors.New("attendance was already submitted to the coordinator")

	coordinatorOnlyMsg = "only the coordinator can do this"
)

// Service applies mutations to a Store through a Gateway.
// Each mutation validates locally, makes one gateway call and merges the
// server-confirmed record. On failure the store is left untouched.
type Service struct {
	store      *Store
	gw         Gateway
	validate   *validator.Validate
	translator ut.Translator
	logger     core.Logger
	defaultPIN string

	syncing  int32
	onCommit func(ctx context.Context)
}

func NewService(
	store *Store,
	gw Gateway,
	validate *validator.Validate,
	translator ut.Translator,
	logger core.Logger,
) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(store, "store"),
		vala.IsNotNil(gw, "gw"),
		vala.IsNotNil(validate, "validate"),
		vala.IsNotNil(translator, "translator"),
		vala.IsNotNil(logger, "logger"),
	).CheckAndPanic()

	return &Service{
		store:      store,
		gw:         gw,
		validate:   validate,
		translator: translator,
		logger:     logger,
		defaultPIN: core.DefaultTeacherPIN,
	}
}

func (svc *Service) Store() *Store { return svc.store }

// Syncing reports whether a gateway call is in flight.
func (svc *Service) Syncing() bool {
	return atomic.LoadInt32(&svc.syncing) > 0
}

func (svc *Service) begin() { atomic.AddInt32(&svc.syncing, 1) }
func (svc *Service) end()   { atomic.AddInt32(&svc.syncing, -1) }

func (svc *Service) committed(ctx context.Context) {
	if svc.onCommit != nil {
		svc.onCommit(ctx)
	}
}

func (svc *Service) invalid(err error, prefix ...string) error {
	return core.TranslateValidationErrors(err, svc.translator, prefix...)
}

// remote classifies a gateway failure and adds context.
func (svc *Service) remote(err error, msg string) error {
	err = core.ClassifyTransportError(err)
	if !core.IsTyped(err) {
		svc.logger.Error(fmt.Sprintf("%s: %v", msg, err), err)
	}
	return errors.Wrap(err, msg)
}

func (svc *Service) requireSchool() (School, error) {
	sch, ok := svc.store.School()
	if !ok {
		return School{}, core.NewNotFoundError("school", "")
	}
	return sch, nil
}

func (svc *Service) requireCoordinator(actorID string) error {
	t, ok := svc.store.Teacher(actorID)
	if !ok || !t.IsCoordinator() {
		return core.NewAuthError(coordinatorOnlyMsg)
	}
	return nil
}

// VerifyPIN reports whether pin matches the PIN of user userID. There is no lockout.
func (svc *Service) VerifyPIN(userID, pin string) bool {
	t, ok := svc.store.Teacher(userID)
	return ok && t.PIN == pin
}

func (svc *Service) AddTeacher(ctx context.Context, nt NewTeacher) (Teacher, error) {
	sch, err := svc.requireSchool()
	if err != nil {
		return Teacher{}, err
	}
	if err = nt.Validate(svc.validate); err != nil {
		return Teacher{}, svc.invalid(err)
	}
	if svc.store.emailTaken(nt.Email, "") {
		return Teacher{}, core.NewValidationError(ErrEmailExists, core.FieldError{Field: "email", Error: ErrEmailExists.Error()})
	}

	pin := nt.PIN
	if pin == "" {
		pin = svc.defaultPIN
	}
	t := Teacher{
		SchoolID:      sch.ID,
		Name:          nt.Name,
		Email:         nt.Email,
		PIN:           pin,
		Role:          RoleTeacher,
		ClassName:     nt.ClassName,
		Section:       nt.Section,
		MobileNumber:  nt.MobileNumber,
		SetupComplete: nt.ClassName != "",
	}

	svc.begin()
	defer svc.end()
	created, err := svc.gw.CreateTeacher(ctx, t)
	if err != nil {
		return Teacher{}, svc.remote(err, "creating teacher")
	}
	svc.store.putTeacher(created)
	svc.committed(ctx)
	return created, nil
}

func (svc *Service) RemoveTeacher(ctx context.Context, id string) error {
	sch, err := svc.requireSchool()
	if err != nil {
		return err
	}
	t, ok := svc.store.Teacher(id)
	if !ok {
		return core.NewNotFoundError("teacher", id)
	}
	if t.IsCoordinator() {
		return core.NewValidationError(errRemoveCoordinator)
	}

	svc.begin()
	defer svc.end()
	if err = svc.gw.DeleteTeacher(ctx, sch.ID, id); err != nil {
		return svc.remote(err, "deleting teacher")
	}
	svc.store.deleteTeacher(sch.ID, id)
	svc.committed(ctx)
	return nil
}

func (svc *Service) UpdateTeacherDetails(ctx context.Context, id string, upd UpdateTeacher) (Teacher, error) {
	if _, err := svc.requireSchool(); err != nil {
		return Teacher{}, err
	}
	orig, ok := svc.store.Teacher(id)
	if !ok {
		return Teacher{}, core.NewNotFoundError("teacher", id)
	}
	t, err := upd.Validate(svc.validate, orig)
	if err != nil {
		return Teacher{}, svc.invalid(err)
	}
	if svc.store.emailTaken(t.Email, id) {
		return Teacher{}, core.NewValidationError(ErrEmailExists, core.FieldError{Field: "email", Error: ErrEmailExists.Error()})
	}

	svc.begin()
	defer svc.end()
	updated, err := svc.gw.UpdateTeacher(ctx, t)
	if err != nil {
		return Teacher{}, svc.remote(err, "updating teacher")
	}
	svc.store.putTeacher(updated)
	svc.committed(ctx)
	return updated, nil
}

// AddStudents enrols a batch of students. Roll numbers must be unique,
// ignoring case, across the whole school and within the batch.
func (svc *Service) AddStudents(ctx context.Context, batch []NewStudent) ([]Student, error) {
	sch, err := svc.requireSchool()
	if err != nil {
		return nil, err
	}
	if len(batch) == 0 {
		return nil, core.NewValidationError(errNoStudents)
	}

	students := make([]Student, 0, len(batch))
	seen := make(map[string]int, len(batch))
	for i := range batch {
		ns := batch[i]
		pfx := fmt.Sprintf("students[%d].", i)
		if err = ns.Validate(svc.validate); err != nil {
			return nil, svc.invalid(err, pfx)
		}
		roll := strings.ToLower(ns.RollNumber)
		if _, dup := seen[roll]; dup {
			return nil, core.NewValidationError(errDuplicateRoll, core.FieldError{Field: pfx + "roll_number", Error: errDuplicateRoll.Error()})
		}
		seen[roll] = i
		if svc.store.rollTaken(ns.RollNumber, "") {
			return nil, core.NewValidationError(ErrRollExists, core.FieldError{Field: pfx + "roll_number", Error: ErrRollExists.Error()})
		}

		teacherID := ns.TeacherID
		if teacherID == "" {
			if owner, ok := svc.store.ClassOwner(ClassRef{ClassName: ns.ClassName, Section: ns.Section}); ok {
				teacherID = owner.ID
			}
		}
		students = append(students, Student{
			SchoolID:     sch.ID,
			TeacherID:    teacherID,
			Name:         ns.Name,
			FatherName:   ns.FatherName,
			RollNumber:   ns.RollNumber,
			MobileNumber: ns.MobileNumber,
			TotalFee:     ns.TotalFee,
			FeeHistory:   []FeePayment{},
			ClassName:    ns.ClassName,
			Section:      ns.Section,
			Photo:        ns.Photo,
		})
	}

	svc.begin()
	defer svc.end()
	created, err := svc.gw.CreateStudents(ctx, students)
	if err != nil {
		return nil, svc.remote(err, "creating students")
	}
	for i := range created {
		created[i].FeeHistory = []FeePayment{}
	}
	svc.store.putStudents(created...)
	svc.committed(ctx)
	return created, nil
}

// UpdateStudentDetails never touches the fee history.
func (svc *Service) UpdateStudentDetails(ctx context.Context, id string, upd UpdateStudent) (Student, error) {
	if _, err := svc.requireSchool(); err != nil {
		return Student{}, err
	}
	orig, ok := svc.store.Student(id)
	if !ok {
		return Student{}, core.NewNotFoundError("student", id)
	}
	st, err := upd.Validate(svc.validate, orig)
	if err != nil {
		return Student{}, svc.invalid(err)
	}
	if svc.store.rollTaken(st.RollNumber, id) {
		return Student{}, core.NewValidationError(ErrRollExists, core.FieldError{Field: "roll_number", Error: ErrRollExists.Error()})
	}

	svc.begin()
	defer svc.end()
	updated, err := svc.gw.UpdateStudent(ctx, st)
	if err != nil {
		return Student{}, svc.remote(err, "updating student")
	}
	svc.store.putStudents(updated)
	svc.committed(ctx)

	merged, _ := svc.store.Student(id)
	return merged, nil
}

func (svc *Service) RemoveStudent(ctx context.Context, id string) error {
	sch, err := svc.requireSchool()
	if err != nil {
		return err
	}
	if _, ok := svc.store.Student(id); !ok {
		return core.NewNotFoundError("student", id)
	}

	svc.begin()
	defer svc.end()
	if err = svc.gw.DeleteStudent(ctx, sch.ID, id); err != nil {
		return svc.remote(err, "deleting student")
	}
	svc.store.deleteStudent(sch.ID, id)
	svc.committed(ctx)
	return nil
}

// RecordFeePayment appends a payment dated now to the student's ledger.
func (svc *Service) RecordFeePayment(ctx context.Context, studentID string, amount float64) (FeePayment, error) {
	sch, err := svc.requireSchool()
	if err != nil {
		return FeePayment{}, err
	}
	if !(amount > 0) || math.IsInf(amount, 0) {
		return FeePayment{}, core.NewValidationError(errInvalidAmount, core.FieldError{Field: "amount", Error: errInvalidAmount.Error()})
	}
	if _, ok := svc.store.Student(studentID); !ok {
		return FeePayment{}, core.NewNotFoundError("student", studentID)
	}

	svc.begin()
	defer svc.end()
	p, err := svc.gw.RecordFeePayment(ctx, sch.ID, FeePayment{StudentID: studentID, Amount: amount, Date: nowFunc()})
	if err != nil {
		return FeePayment{}, svc.remote(err, "recording fee payment")
	}
	svc.store.appendPayment(sch.ID, p)
	svc.committed(ctx)
	return p, nil
}

// SaveAttendance upserts one record per student for date.
// Classes already submitted for that date are frozen.
func (svc *Service) SaveAttendance(
	ctx context.Context,
	teacherID, date string,
	statuses map[string]AttendanceStatus,
) ([]AttendanceRecord, error) {
	sch, err := svc.requireSchool()
	if err != nil {
		return nil, err
	}
	if !core.IsValidDate(date) {
		return nil, core.NewValidationError(errInvalidInput, core.FieldError{Field: "date", Error: "date must be formatted as YYYY-MM-DD"})
	}
	if len(statuses) == 0 {
		return nil, core.NewValidationError(errNoRecords)
	}

	now := nowFunc()
	records := make([]AttendanceRecord, 0, len(statuses))
	for _, sid := range sortedStatusKeys(statuses) {
		status := statuses[sid]
		st, ok := svc.store.Student(sid)
		if !ok {
			return nil, core.NewNotFoundError("student", sid)
		}
		if !status.Valid() {
			return nil, core.NewValidationError(errInvalidInput, core.FieldError{Field: "status", Error: attendanceStatusText})
		}
		if svc.store.IsSubmitted(date, st.Class()) {
			return nil, core.NewValidationError(errAttendanceFrozen, core.FieldError{
				Field: "date",
				Error: fmt.Sprintf("attendance of %s on %s was already submitted", st.Class(), date),
			})
		}
		records = append(records, AttendanceRecord{
			SchoolID:    sch.ID,
			Date:        date,
			TeacherID:   teacherID,
			StudentID:   sid,
			Status:      status,
			LastUpdated: now,
		})
	}

	svc.begin()
	defer svc.end()
	saved, err := svc.gw.UpsertAttendance(ctx, sch.ID, records)
	if err != nil {
		return nil, svc.remote(err, "saving attendance")
	}
	svc.store.upsertAttendance(sch.ID, saved...)
	svc.committed(ctx)
	return saved, nil
}

// SubmitAttendanceToCoordinator computes the day's totals for class from roster
// and statusMap and upserts the class' single submission for date.
func (svc *Service) SubmitAttendanceToCoordinator(
	ctx context.Context,
	teacherID, date string,
	class ClassRef,
	roster []Student,
	statusMap map[string]AttendanceStatus,
) (DailySubmission, error) {
	sch, err := svc.requireSchool()
	if err != nil {
		return DailySubmission{}, err
	}
	if !core.IsValidDate(date) {
		return DailySubmission{}, core.NewValidationError(errInvalidInput, core.FieldError{Field: "date", Error: "date must be formatted as YYYY-MM-DD"})
	}
	if strings.TrimSpace(class.ClassName) == "" {
		return DailySubmission{}, core.NewValidationError(errInvalidInput, core.FieldError{Field: "class_name", Error: "class is required"})
	}

	var present int
	for _, st := range roster {
		if statusMap[st.ID] == Present {
			present++
		}
	}
	sub := DailySubmission{
		SchoolID:            sch.ID,
		Date:                date,
		TeacherID:           teacherID,
		ClassName:           class.ClassName,
		Section:             class.Section,
		TotalStudents:       len(roster),
		PresentStudents:     present,
		AbsentStudents:      len(roster) - present,
		SubmissionTimestamp: nowFunc(),
	}

	svc.begin()
	defer svc.end()
	saved, err := svc.gw.UpsertDailySubmission(ctx, sub)
	if err != nil {
		return DailySubmission{}, svc.remote(err, "submitting attendance")
	}
	svc.store.upsertSubmission(saved)
	svc.committed(ctx)
	return saved, nil
}

// SaveTeacherAttendance upserts the staff roll call of date. Coordinator only.
func (svc *Service) SaveTeacherAttendance(
	ctx context.Context,
	actorID, date string,
	statuses map[string]AttendanceStatus,
) ([]TeacherAttendanceRecord, error) {
	sch, err := svc.requireSchool()
	if err != nil {
		return nil, err
	}
	if err = svc.requireCoordinator(actorID); err != nil {
		return nil, err
	}
	if !core.IsValidDate(date) {
		return nil, core.NewValidationError(errInvalidInput, core.FieldError{Field: "date", Error: "date must be formatted as YYYY-MM-DD"})
	}
	if len(statuses) == 0 {
		return nil, core.NewValidationError(errNoRecords)
	}

	now := nowFunc()
	records := make([]TeacherAttendanceRecord, 0, len(statuses))
	for _, tid := range sortedStatusKeys(statuses) {
		status := statuses[tid]
		if _, ok := svc.store.Teacher(tid); !ok {
			return nil, core.NewNotFoundError("teacher", tid)
		}
		if !status.Valid() {
			return nil, core.NewValidationError(errInvalidInput, core.FieldError{Field: "status", Error: attendanceStatusText})
		}
		records = append(records, TeacherAttendanceRecord{
			SchoolID:    sch.ID,
			Date:        date,
			TeacherID:   tid,
			Status:      status,
			LastUpdated: now,
		})
	}

	svc.begin()
	defer svc.end()
	saved, err := svc.gw.UpsertTeacherAttendance(ctx, sch.ID, records)
	if err != nil {
		return nil, svc.remote(err, "saving teacher attendance")
	}
	svc.store.upsertTeacherAttendance(sch.ID, saved...)
	svc.committed(ctx)
	return saved, nil
}

// SetSchoolPIN replaces the school's join PIN. Coordinator only.
func (svc *Service) SetSchoolPIN(ctx context.Context, actorID, pin string) (School, error) {
	sch, err := svc.requireSchool()
	if err != nil {
		return School{}, err
	}
	if err = svc.requireCoordinator(actorID); err != nil {
		return School{}, err
	}
	pin = core.CleanString(pin)
	if pin == "" {
		return School{}, core.NewValidationError(errEmptySchoolPIN, core.FieldError{Field: "pin", Error: errEmptySchoolPIN.Error()})
	}

	svc.begin()
	defer svc.end()
	updated, err := svc.gw.UpdateSchoolPIN(ctx, sch.ID, pin)
	if err != nil {
		return School{}, svc.remote(err, "updating school PIN")
	}
	svc.store.setSchool(updated)
	svc.committed(ctx)
	return updated, nil
}

func sortedStatusKeys(m map[string]AttendanceStatus) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
