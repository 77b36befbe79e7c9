package inmemdb

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/frizwan636-dotcom/attendancepro/core"
	"github.com/frizwan636-dotcom/attendancepro/core/school"
)

var errInvalidAmount = errors.New("amount must be a positive number")

type schoolRepository struct {
	db *DB
}

var _ school.Repository = (*schoolRepository)(nil) // interface compliance check

func NewSchoolRepository(db *DB) school.Repository {
	return &schoolRepository{db: db}
}

func newID() string {
	return uuid.New().String()
}

func classKey(className, section string) string {
	return strings.ToLower(className) + "|" + strings.ToLower(section)
}

func (repo *schoolRepository) pinTaken(pin, excludeID string) bool {
	for _, sch := range repo.db.schools {
		if sch.ID != excludeID && sch.PIN == pin {
			return true
		}
	}
	return false
}

func (repo *schoolRepository) emailTaken(schoolID, email, excludeID string) bool {
	if email == "" {
		return false
	}
	for _, t := range repo.db.teachers {
		if t.SchoolID == schoolID && t.ID != excludeID && strings.EqualFold(t.Email, email) {
			return true
		}
	}
	return false
}

func (repo *schoolRepository) coordinatorEmailTaken(email string) bool {
	for _, t := range repo.db.teachers {
		if t.IsCoordinator() && strings.EqualFold(t.Email, email) {
			return true
		}
	}
	return false
}

func (repo *schoolRepository) rollTaken(schoolID, roll, excludeID string) bool {
	for _, st := range repo.db.students {
		if st.SchoolID == schoolID && st.ID != excludeID && strings.EqualFold(st.RollNumber, roll) {
			return true
		}
	}
	return false
}

func (repo *schoolRepository) studentOf(schoolID, id string) (*studentRow, error) {
	st, ok := repo.db.students[id]
	if !ok || st.SchoolID != schoolID {
		return nil, core.NewNotFoundError("student", id)
	}
	return st, nil
}

func (repo *schoolRepository) teacherOf(schoolID, id string) (*teacherRow, error) {
	t, ok := repo.db.teachers[id]
	if !ok || t.SchoolID != schoolID {
		return nil, core.NewNotFoundError("teacher", id)
	}
	return t, nil
}

func (repo *schoolRepository) CreateSchool(
	_ context.Context,
	sch school.School,
	coordinator school.Teacher,
	passwordHash []byte,
) (school.School, school.Teacher, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if repo.pinTaken(sch.PIN, "") {
		return school.School{}, school.Teacher{}, core.NewConflictError(school.ErrSchoolPINExists, "school_pin")
	}
	if repo.coordinatorEmailTaken(coordinator.Email) {
		return school.School{}, school.Teacher{}, core.NewConflictError(school.ErrEmailExists, "email")
	}

	sch.ID = newID()
	repo.db.schools[sch.ID] = &sch

	coordinator.ID = newID()
	coordinator.SchoolID = sch.ID
	coordinator.Role = school.RoleCoordinator
	repo.db.teachers[coordinator.ID] = &teacherRow{Teacher: coordinator, passwordHash: passwordHash, seq: repo.db.next()}
	return sch, coordinator, nil
}

func (repo *schoolRepository) GetSchool(_ context.Context, schoolID string) (school.School, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if sch, ok := repo.db.schools[schoolID]; ok {
		return *sch, nil
	}
	return school.School{}, core.NewNotFoundError("school", schoolID)
}

func (repo *schoolRepository) GetSchoolByPIN(_ context.Context, pin string) (school.School, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, sch := range repo.db.schools {
		if sch.PIN == pin {
			return *sch, nil
		}
	}
	return school.School{}, core.NewNotFoundError("school", "")
}

func (repo *schoolRepository) GetSchoolData(_ context.Context, schoolID string) (school.SchoolData, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	sch, ok := repo.db.schools[schoolID]
	if !ok {
		return school.SchoolData{}, core.NewNotFoundError("school", schoolID)
	}
	data := school.SchoolData{
		School:                   *sch,
		Teachers:                 make([]school.Teacher, 0),
		Students:                 make([]school.Student, 0),
		AttendanceRecords:        make([]school.AttendanceRecord, 0),
		TeacherAttendanceRecords: make([]school.TeacherAttendanceRecord, 0),
		DailySubmissions:         make([]school.DailySubmission, 0),
	}

	teachers := make([]*teacherRow, 0)
	for _, t := range repo.db.teachers {
		if t.SchoolID == schoolID {
			teachers = append(teachers, t)
		}
	}
	sort.Slice(teachers, func(i, j int) bool { return teachers[i].seq < teachers[j].seq })
	for _, t := range teachers {
		data.Teachers = append(data.Teachers, t.Teacher)
	}

	students := make([]*studentRow, 0)
	for _, st := range repo.db.students {
		if st.SchoolID == schoolID {
			students = append(students, st)
		}
	}
	sort.Slice(students, func(i, j int) bool { return students[i].seq < students[j].seq })
	for _, st := range students {
		s := st.Student
		s.FeeHistory = append(make([]school.FeePayment, 0, len(st.FeeHistory)), st.FeeHistory...)
		data.Students = append(data.Students, s)
	}

	pfx := schoolID + "|"
	for _, k := range sortedKeys(repo.db.attendance, pfx) {
		data.AttendanceRecords = append(data.AttendanceRecords, *repo.db.attendance[k])
	}
	for _, k := range sortedKeys(repo.db.teacherAttendance, pfx) {
		data.TeacherAttendanceRecords = append(data.TeacherAttendanceRecords, *repo.db.teacherAttendance[k])
	}
	for _, k := range sortedKeys(repo.db.submissions, pfx) {
		data.DailySubmissions = append(data.DailySubmissions, *repo.db.submissions[k])
	}
	return data, nil
}

func (repo *schoolRepository) UpdateSchoolPIN(_ context.Context, schoolID, pin string) (school.School, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	sch, ok := repo.db.schools[schoolID]
	if !ok {
		return school.School{}, core.NewNotFoundError("school", schoolID)
	}
	if repo.pinTaken(pin, schoolID) {
		return school.School{}, core.NewConflictError(school.ErrSchoolPINExists, "pin")
	}
	sch.PIN = pin
	return *sch, nil
}

func (repo *schoolRepository) GetCredentials(_ context.Context, email string) (school.Teacher, []byte, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, t := range repo.db.teachers {
		if t.IsCoordinator() && strings.EqualFold(t.Email, email) {
			return t.Teacher, t.passwordHash, nil
		}
	}
	return school.Teacher{}, nil, core.NewNotFoundError("coordinator", email)
}

func (repo *schoolRepository) SetPasswordHash(_ context.Context, teacherID string, hash []byte) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	t, ok := repo.db.teachers[teacherID]
	if !ok {
		return core.NewNotFoundError("teacher", teacherID)
	}
	t.passwordHash = hash
	return nil
}

func (repo *schoolRepository) CreateTeacher(_ context.Context, t school.Teacher) (school.Teacher, error) {
	if err := school.ValidateRecord(&t); err != nil {
		return school.Teacher{}, err
	}

	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.schools[t.SchoolID]; !ok {
		return school.Teacher{}, core.NewNotFoundError("school", t.SchoolID)
	}
	if repo.emailTaken(t.SchoolID, t.Email, "") {
		return school.Teacher{}, core.NewConflictError(school.ErrEmailExists, "email")
	}

	t.ID = newID()
	if t.Role == "" {
		t.Role = school.RoleTeacher
	}
	repo.db.teachers[t.ID] = &teacherRow{Teacher: t, seq: repo.db.next()}
	return t, nil
}

// UpdateTeacher saves the editable fields. Role is never changed.
func (repo *schoolRepository) UpdateTeacher(_ context.Context, t school.Teacher) (school.Teacher, error) {
	if err := school.ValidateRecord(&t); err != nil {
		return school.Teacher{}, err
	}

	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, err := repo.teacherOf(t.SchoolID, t.ID)
	if err != nil {
		return school.Teacher{}, err
	}
	if repo.emailTaken(t.SchoolID, t.Email, t.ID) {
		return school.Teacher{}, core.NewConflictError(school.ErrEmailExists, "email")
	}

	t.Role = orig.Role
	orig.Teacher = t
	return t, nil
}

func (repo *schoolRepository) DeleteTeacher(_ context.Context, schoolID, teacherID string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, err := repo.teacherOf(schoolID, teacherID); err != nil {
		return err
	}
	delete(repo.db.teachers, teacherID)
	for k, rec := range repo.db.teacherAttendance {
		if rec.TeacherID == teacherID {
			delete(repo.db.teacherAttendance, k)
		}
	}
	return nil
}

// CreateStudents inserts the whole batch or nothing.
func (repo *schoolRepository) CreateStudents(_ context.Context, students []school.Student) ([]school.Student, error) {
	for i := range students {
		if err := school.ValidateRecord(&students[i], fmt.Sprintf("students[%d].", i)); err != nil {
			return nil, err
		}
	}

	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	seen := make(map[string]bool, len(students))
	for _, st := range students {
		if _, ok := repo.db.schools[st.SchoolID]; !ok {
			return nil, core.NewNotFoundError("school", st.SchoolID)
		}
		k := st.SchoolID + "|" + strings.ToLower(st.RollNumber)
		if seen[k] || repo.rollTaken(st.SchoolID, st.RollNumber, "") {
			return nil, core.NewConflictError(school.ErrRollExists, "roll_number")
		}
		seen[k] = true
	}

	created := make([]school.Student, 0, len(students))
	for _, st := range students {
		st.ID = newID()
		st.FeeHistory = []school.FeePayment{}
		repo.db.students[st.ID] = &studentRow{Student: st, seq: repo.db.next()}
		created = append(created, st)
	}
	return created, nil
}

// UpdateStudent saves the editable fields. The fee ledger is kept as stored.
func (repo *schoolRepository) UpdateStudent(_ context.Context, s school.Student) (school.Student, error) {
	if err := school.ValidateRecord(&s); err != nil {
		return school.Student{}, err
	}

	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, err := repo.studentOf(s.SchoolID, s.ID)
	if err != nil {
		return school.Student{}, err
	}
	if repo.rollTaken(s.SchoolID, s.RollNumber, s.ID) {
		return school.Student{}, core.NewConflictError(school.ErrRollExists, "roll_number")
	}

	s.FeeHistory = orig.FeeHistory
	orig.Student = s
	s.FeeHistory = append([]school.FeePayment{}, orig.FeeHistory...)
	return s, nil
}

func (repo *schoolRepository) DeleteStudent(_ context.Context, schoolID, studentID string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, err := repo.studentOf(schoolID, studentID); err != nil {
		return err
	}
	delete(repo.db.students, studentID)
	for k, rec := range repo.db.attendance {
		if rec.StudentID == studentID {
			delete(repo.db.attendance, k)
		}
	}
	return nil
}

func (repo *schoolRepository) CreateFeePayment(_ context.Context, schoolID string, p school.FeePayment) (school.FeePayment, error) {
	if !(p.Amount > 0) || math.IsInf(p.Amount, 0) {
		return school.FeePayment{}, core.NewValidationError(errInvalidAmount, core.FieldError{Field: "amount", Error: errInvalidAmount.Error()})
	}

	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	st, err := repo.studentOf(schoolID, p.StudentID)
	if err != nil {
		return school.FeePayment{}, err
	}
	p.ID = newID()
	if p.Date.IsZero() {
		p.Date = time.Now()
	}
	p.Date = p.Date.UTC()
	st.FeeHistory = append(st.FeeHistory, p)
	return p, nil
}

// UpsertAttendance writes one record per (date, student). Unknown students reject the whole batch.
func (repo *schoolRepository) UpsertAttendance(
	_ context.Context,
	schoolID string,
	records []school.AttendanceRecord,
) ([]school.AttendanceRecord, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, rec := range records {
		if _, err := repo.studentOf(schoolID, rec.StudentID); err != nil {
			return nil, err
		}
	}

	saved := make([]school.AttendanceRecord, 0, len(records))
	for _, rec := range records {
		rec.SchoolID = schoolID
		if rec.LastUpdated.IsZero() {
			rec.LastUpdated = time.Now().UTC()
		}
		r := rec
		repo.db.attendance[schoolID+"|"+rec.Date+"|"+rec.StudentID] = &r
		saved = append(saved, rec)
	}
	return saved, nil
}

func (repo *schoolRepository) UpsertTeacherAttendance(
	_ context.Context,
	schoolID string,
	records []school.TeacherAttendanceRecord,
) ([]school.TeacherAttendanceRecord, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, rec := range records {
		if _, err := repo.teacherOf(schoolID, rec.TeacherID); err != nil {
			return nil, err
		}
	}

	saved := make([]school.TeacherAttendanceRecord, 0, len(records))
	for _, rec := range records {
		rec.SchoolID = schoolID
		if rec.LastUpdated.IsZero() {
			rec.LastUpdated = time.Now().UTC()
		}
		r := rec
		repo.db.teacherAttendance[schoolID+"|"+rec.Date+"|"+rec.TeacherID] = &r
		saved = append(saved, rec)
	}
	return saved, nil
}

// UpsertDailySubmission keeps a single submission per (date, class, section).
func (repo *schoolRepository) UpsertDailySubmission(_ context.Context, sub school.DailySubmission) (school.DailySubmission, error) {
	if err := school.ValidateRecord(&sub); err != nil {
		return school.DailySubmission{}, err
	}

	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.schools[sub.SchoolID]; !ok {
		return school.DailySubmission{}, core.NewNotFoundError("school", sub.SchoolID)
	}
	if sub.SubmissionTimestamp.IsZero() {
		sub.SubmissionTimestamp = time.Now().UTC()
	}
	s := sub
	repo.db.submissions[sub.SchoolID+"|"+sub.Date+"|"+classKey(sub.ClassName, sub.Section)] = &s
	return sub, nil
}

func sortedKeys(m interface{}, prefix string) []string {
	var keys []string
	add := func(k string) {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	switch mm := m.(type) {
	case map[string]*school.AttendanceRecord:
		for k := range mm {
			add(k)
		}
	case map[string]*school.TeacherAttendanceRecord:
		for k := range mm {
			add(k)
		}
	case map[string]*school.DailySubmission:
		for k := range mm {
			add(k)
		}
	}
	sort.Strings(keys)
	return keys
}
