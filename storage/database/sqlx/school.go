package sqlxrepos

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/frizwan636-dotcom/attendancepro/core"
	"github.com/frizwan636-dotcom/attendancepro/core/school"
)

const (
	teacherColumns = "id, school_id, name, email, pin, role, class_name, section, mobile_number, setup_complete, photo"
	studentColumns = "id, school_id, teacher_id, name, father_name, roll_number, mobile_number, total_fee, class_name, section, photo"
	paymentColumns = "p.id, p.student_id, p.amount, p.paid_at"
)

var errInvalidAmount = errors.New("amount must be a positive number")

type schoolRepository struct {
	db core.DB
}

var _ school.Repository = (*schoolRepository)(nil) // interface compliance check

func NewSchoolRepository(db core.DB) school.Repository {
	return &schoolRepository{db: db}
}

func newID() string {
	return uuid.New().String()
}

func rowsAffected(res interface{ RowsAffected() (int64, error) }, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "counting affected rows")
	}
	if n == 0 {
		return core.NewNotFoundError(resource, id)
	}
	return nil
}

func (repo *schoolRepository) CreateSchool(
	ctx context.Context,
	sch school.School,
	coordinator school.Teacher,
	passwordHash []byte,
) (school.School, school.Teacher, error) {
	sch.ID = newID()
	coordinator.ID = newID()
	coordinator.SchoolID = sch.ID
	coordinator.Role = school.RoleCoordinator

	err := core.WithTx(ctx, repo.db, func(tx core.DBExecutor) error {
		if _, err := tx.ExecContext(ctx, "INSERT INTO schools (id, name, pin) VALUES ($1, $2, $3)", sch.ID, sch.Name, sch.PIN); err != nil {
			return err
		}
		row := credentialsRow{teacherRow: boilTeacher(coordinator), PasswordHash: passwordHash}
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO teachers (`+teacherColumns+`, password_hash)
			VALUES (:id, :school_id, :name, :email, :pin, :role, :class_name, :section, :mobile_number, :setup_complete, :photo, :password_hash)`,
			row)
		return err
	})
	if err != nil {
		err = trapErr(err, "school", sch.ID, "creating school")
		if ce, ok := err.(*core.ConflictError); ok && ce.Field == "pin" {
			ce.Field = "school_pin"
		}
		return school.School{}, school.Teacher{}, err
	}
	return sch, coordinator, nil
}

func (repo *schoolRepository) GetSchool(ctx context.Context, schoolID string) (school.School, error) {
	if !isUUID(schoolID) {
		return school.School{}, core.NewNotFoundError("school", schoolID)
	}
	var row schoolRow
	if err := repo.db.GetContext(ctx, &row, "SELECT id, name, pin FROM schools WHERE id = $1", schoolID); err != nil {
		return school.School{}, trapErr(err, "school", schoolID, "finding school")
	}
	return row.unboil(), nil
}

func (repo *schoolRepository) GetSchoolByPIN(ctx context.Context, pin string) (school.School, error) {
	var row schoolRow
	if err := repo.db.GetContext(ctx, &row, "SELECT id, name, pin FROM schools WHERE pin = $1", pin); err != nil {
		return school.School{}, trapErr(err, "school", "", "finding school by PIN")
	}
	return row.unboil(), nil
}

func (repo *schoolRepository) GetSchoolData(ctx context.Context, schoolID string) (school.SchoolData, error) {
	sch, err := repo.GetSchool(ctx, schoolID)
	if err != nil {
		return school.SchoolData{}, err
	}
	data := school.SchoolData{
		School:                   sch,
		Teachers:                 make([]school.Teacher, 0),
		Students:                 make([]school.Student, 0),
		AttendanceRecords:        make([]school.AttendanceRecord, 0),
		TeacherAttendanceRecords: make([]school.TeacherAttendanceRecord, 0),
		DailySubmissions:         make([]school.DailySubmission, 0),
	}

	var teachers []teacherRow
	if err = repo.db.SelectContext(ctx, &teachers,
		"SELECT "+teacherColumns+" FROM teachers WHERE school_id = $1 ORDER BY seq", schoolID); err != nil {
		return school.SchoolData{}, errors.Wrap(err, "querying teachers")
	}
	for _, t := range teachers {
		data.Teachers = append(data.Teachers, t.unboil())
	}

	var payments []paymentRow
	if err = repo.db.SelectContext(ctx, &payments, `
		SELECT `+paymentColumns+` FROM fee_payments p
		JOIN students s ON s.id = p.student_id
		WHERE s.school_id = $1 ORDER BY p.seq`, schoolID); err != nil {
		return school.SchoolData{}, errors.Wrap(err, "querying fee payments")
	}
	history := make(map[string][]school.FeePayment)
	for _, p := range payments {
		history[p.StudentID] = append(history[p.StudentID], p.unboil())
	}

	var students []studentRow
	if err = repo.db.SelectContext(ctx, &students,
		"SELECT "+studentColumns+" FROM students WHERE school_id = $1 ORDER BY seq", schoolID); err != nil {
		return school.SchoolData{}, errors.Wrap(err, "querying students")
	}
	for _, st := range students {
		data.Students = append(data.Students, st.unboil(history[st.ID]))
	}

	var attendance []attendanceRow
	if err = repo.db.SelectContext(ctx, &attendance, `
		SELECT school_id, to_char(date, 'YYYY-MM-DD') AS date, teacher_id, student_id, status, last_updated
		FROM attendance WHERE school_id = $1 ORDER BY date, student_id::text`, schoolID); err != nil {
		return school.SchoolData{}, errors.Wrap(err, "querying attendance")
	}
	for _, rec := range attendance {
		data.AttendanceRecords = append(data.AttendanceRecords, rec.unboil())
	}

	var teacherAttendance []teacherAttendanceRow
	if err = repo.db.SelectContext(ctx, &teacherAttendance, `
		SELECT school_id, to_char(date, 'YYYY-MM-DD') AS date, teacher_id, status, last_updated
		FROM teacher_attendance WHERE school_id = $1 ORDER BY date, teacher_id::text`, schoolID); err != nil {
		return school.SchoolData{}, errors.Wrap(err, "querying teacher attendance")
	}
	for _, rec := range teacherAttendance {
		data.TeacherAttendanceRecords = append(data.TeacherAttendanceRecords, rec.unboil())
	}

	var submissions []submissionRow
	if err = repo.db.SelectContext(ctx, &submissions, `
		SELECT school_id, to_char(date, 'YYYY-MM-DD') AS date, teacher_id, class_name, section,
			total_students, present_students, absent_students, submitted_at
		FROM daily_submissions WHERE school_id = $1
		ORDER BY date, lower(class_name), lower(section)`, schoolID); err != nil {
		return school.SchoolData{}, errors.Wrap(err, "querying daily submissions")
	}
	for _, sub := range submissions {
		data.DailySubmissions = append(data.DailySubmissions, sub.unboil())
	}
	return data, nil
}

func (repo *schoolRepository) UpdateSchoolPIN(ctx context.Context, schoolID, pin string) (school.School, error) {
	if !isUUID(schoolID) {
		return school.School{}, core.NewNotFoundError("school", schoolID)
	}
	var row schoolRow
	err := repo.db.GetContext(ctx, &row, "UPDATE schools SET pin = $2 WHERE id = $1 RETURNING id, name, pin", schoolID, pin)
	if err != nil {
		return school.School{}, trapErr(err, "school", schoolID, "updating school PIN")
	}
	return row.unboil(), nil
}

func (repo *schoolRepository) GetCredentials(ctx context.Context, email string) (school.Teacher, []byte, error) {
	var row credentialsRow
	err := repo.db.GetContext(ctx, &row, `
		SELECT `+teacherColumns+`, password_hash FROM teachers
		WHERE role = 'coordinator' AND lower(email) = lower($1)`, email)
	if err != nil {
		return school.Teacher{}, nil, trapErr(err, "coordinator", email, "finding coordinator")
	}
	return row.teacherRow.unboil(), row.PasswordHash, nil
}

func (repo *schoolRepository) SetPasswordHash(ctx context.Context, teacherID string, hash []byte) error {
	if !isUUID(teacherID) {
		return core.NewNotFoundError("teacher", teacherID)
	}
	res, err := repo.db.ExecContext(ctx, "UPDATE teachers SET password_hash = $2 WHERE id = $1", teacherID, hash)
	if err != nil {
		return errors.Wrap(err, "updating password")
	}
	return rowsAffected(res, "teacher", teacherID)
}

func (repo *schoolRepository) CreateTeacher(ctx context.Context, t school.Teacher) (school.Teacher, error) {
	if !isUUID(t.SchoolID) {
		return school.Teacher{}, core.NewNotFoundError("school", t.SchoolID)
	}
	t.ID = newID()
	if t.Role == "" {
		t.Role = school.RoleTeacher
	}
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO teachers (`+teacherColumns+`)
		VALUES (:id, :school_id, :name, :email, :pin, :role, :class_name, :section, :mobile_number, :setup_complete, :photo)`,
		boilTeacher(t))
	if err != nil {
		return school.Teacher{}, trapErr(err, "school", t.SchoolID, "inserting teacher")
	}
	return t, nil
}

// UpdateTeacher saves the editable fields. Role is never changed.
func (repo *schoolRepository) UpdateTeacher(ctx context.Context, t school.Teacher) (school.Teacher, error) {
	if !isUUID(t.ID) || !isUUID(t.SchoolID) {
		return school.Teacher{}, core.NewNotFoundError("teacher", t.ID)
	}
	row := boilTeacher(t)
	var saved teacherRow
	err := repo.db.GetContext(ctx, &saved, `
		UPDATE teachers SET name = $3, email = $4, pin = $5, class_name = $6, section = $7,
			mobile_number = $8, setup_complete = $9, photo = $10
		WHERE id = $1 AND school_id = $2
		RETURNING `+teacherColumns,
		row.ID, row.SchoolID, row.Name, row.Email, row.PIN, row.ClassName, row.Section,
		row.MobileNumber, row.SetupComplete, row.Photo)
	if err != nil {
		return school.Teacher{}, trapErr(err, "teacher", t.ID, "updating teacher")
	}
	return saved.unboil(), nil
}

// DeleteTeacher removes the teacher and, through the foreign key, their own attendance.
func (repo *schoolRepository) DeleteTeacher(ctx context.Context, schoolID, teacherID string) error {
	if !isUUID(schoolID) || !isUUID(teacherID) {
		return core.NewNotFoundError("teacher", teacherID)
	}
	res, err := repo.db.ExecContext(ctx, "DELETE FROM teachers WHERE id = $1 AND school_id = $2", teacherID, schoolID)
	if err != nil {
		return errors.Wrap(err, "deleting teacher")
	}
	return rowsAffected(res, "teacher", teacherID)
}

// CreateStudents inserts the whole batch or nothing and returns the rows as stored.
func (repo *schoolRepository) CreateStudents(ctx context.Context, students []school.Student) ([]school.Student, error) {
	rows := make([]studentRow, 0, len(students))
	for _, st := range students {
		if !isUUID(st.SchoolID) {
			return nil, core.NewNotFoundError("school", st.SchoolID)
		}
		st.ID = newID()
		rows = append(rows, boilStudent(st))
	}

	created := make([]school.Student, 0, len(rows))
	err := core.WithTx(ctx, repo.db, func(tx core.DBExecutor) error {
		for _, row := range rows {
			var saved studentRow
			err := tx.GetContext(ctx, &saved, `
				INSERT INTO students (`+studentColumns+`)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
				RETURNING `+studentColumns,
				row.ID, row.SchoolID, row.TeacherID, row.Name, row.FatherName, row.RollNumber,
				row.MobileNumber, row.TotalFee, row.ClassName, row.Section, row.Photo)
			if err != nil {
				return trapErr(err, "school", row.SchoolID, "inserting student")
			}
			created = append(created, saved.unboil(nil))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (repo *schoolRepository) feeHistory(ctx context.Context, studentID string) ([]school.FeePayment, error) {
	var payments []paymentRow
	err := repo.db.SelectContext(ctx, &payments,
		"SELECT "+paymentColumns+" FROM fee_payments p WHERE p.student_id = $1 ORDER BY p.seq", studentID)
	if err != nil {
		return nil, errors.Wrap(err, "querying fee payments")
	}
	history := make([]school.FeePayment, 0, len(payments))
	for _, p := range payments {
		history = append(history, p.unboil())
	}
	return history, nil
}

// UpdateStudent saves the editable fields. The fee ledger is kept as stored.
func (repo *schoolRepository) UpdateStudent(ctx context.Context, s school.Student) (school.Student, error) {
	if !isUUID(s.ID) || !isUUID(s.SchoolID) {
		return school.Student{}, core.NewNotFoundError("student", s.ID)
	}
	row := boilStudent(s)
	var saved studentRow
	err := repo.db.GetContext(ctx, &saved, `
		UPDATE students SET teacher_id = $3, name = $4, father_name = $5, roll_number = $6,
			mobile_number = $7, total_fee = $8, class_name = $9, section = $10, photo = $11
		WHERE id = $1 AND school_id = $2
		RETURNING `+studentColumns,
		row.ID, row.SchoolID, row.TeacherID, row.Name, row.FatherName, row.RollNumber,
		row.MobileNumber, row.TotalFee, row.ClassName, row.Section, row.Photo)
	if err != nil {
		return school.Student{}, trapErr(err, "student", s.ID, "updating student")
	}
	history, err := repo.feeHistory(ctx, s.ID)
	if err != nil {
		return school.Student{}, err
	}
	return saved.unboil(history), nil
}

// DeleteStudent removes the student together with their fee ledger and attendance.
func (repo *schoolRepository) DeleteStudent(ctx context.Context, schoolID, studentID string) error {
	if !isUUID(schoolID) || !isUUID(studentID) {
		return core.NewNotFoundError("student", studentID)
	}
	res, err := repo.db.ExecContext(ctx, "DELETE FROM students WHERE id = $1 AND school_id = $2", studentID, schoolID)
	if err != nil {
		return errors.Wrap(err, "deleting student")
	}
	return rowsAffected(res, "student", studentID)
}

func (repo *schoolRepository) CreateFeePayment(ctx context.Context, schoolID string, p school.FeePayment) (school.FeePayment, error) {
	if !(p.Amount > 0) || math.IsInf(p.Amount, 0) {
		return school.FeePayment{}, core.NewValidationError(errInvalidAmount, core.FieldError{Field: "amount", Error: errInvalidAmount.Error()})
	}
	if !isUUID(schoolID) || !isUUID(p.StudentID) {
		return school.FeePayment{}, core.NewNotFoundError("student", p.StudentID)
	}

	p.ID = newID()
	if p.Date.IsZero() {
		p.Date = time.Now()
	}
	p.Date = p.Date.UTC()

	res, err := repo.db.ExecContext(ctx, `
		INSERT INTO fee_payments (id, student_id, amount, paid_at)
		SELECT $1, $2, $3, $4
		WHERE EXISTS (SELECT 1 FROM students WHERE id = $2 AND school_id = $5)`,
		p.ID, p.StudentID, p.Amount, p.Date, schoolID)
	if err != nil {
		return school.FeePayment{}, trapErr(err, "student", p.StudentID, "inserting fee payment")
	}
	if err = rowsAffected(res, "student", p.StudentID); err != nil {
		return school.FeePayment{}, err
	}
	return p, nil
}

// checkOwned makes sure every id belongs to the school. The first stranger is reported as not found.
func checkOwned(ctx context.Context, exec core.DBExecutor, table, resource, schoolID string, ids []string) error {
	distinct := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if !isUUID(id) {
			return core.NewNotFoundError(resource, id)
		}
		if !seen[id] {
			seen[id] = true
			distinct = append(distinct, id)
		}
	}

	var owned []string
	err := exec.SelectContext(ctx, &owned,
		"SELECT id::text FROM "+table+" WHERE school_id = $1 AND id = ANY($2::uuid[])", schoolID, pq.Array(distinct))
	if err != nil {
		return errors.Wrap(err, "checking "+table)
	}
	if len(owned) == len(distinct) {
		return nil
	}
	found := make(map[string]bool, len(owned))
	for _, id := range owned {
		found[id] = true
	}
	for _, id := range distinct {
		if !found[id] {
			return core.NewNotFoundError(resource, id)
		}
	}
	return nil
}

// UpsertAttendance writes one record per (date, student). Unknown students reject the whole batch.
func (repo *schoolRepository) UpsertAttendance(
	ctx context.Context,
	schoolID string,
	records []school.AttendanceRecord,
) ([]school.AttendanceRecord, error) {
	if !isUUID(schoolID) {
		return nil, core.NewNotFoundError("school", schoolID)
	}
	ids := make([]string, 0, len(records))
	for _, rec := range records {
		ids = append(ids, rec.StudentID)
	}

	saved := make([]school.AttendanceRecord, 0, len(records))
	err := core.WithTx(ctx, repo.db, func(tx core.DBExecutor) error {
		if err := checkOwned(ctx, tx, "students", "student", schoolID, ids); err != nil {
			return err
		}
		for _, rec := range records {
			rec.SchoolID = schoolID
			if rec.LastUpdated.IsZero() {
				rec.LastUpdated = time.Now().UTC()
			}
			_, err := tx.ExecContext(ctx, `
				INSERT INTO attendance (school_id, date, teacher_id, student_id, status, last_updated)
				VALUES ($1, $2, $3, $4, $5, $6)
				ON CONFLICT (student_id, date) DO UPDATE
				SET teacher_id = EXCLUDED.teacher_id, status = EXCLUDED.status, last_updated = EXCLUDED.last_updated`,
				rec.SchoolID, rec.Date, nullUUID(rec.TeacherID), rec.StudentID, string(rec.Status), rec.LastUpdated)
			if err != nil {
				return trapErr(err, "student", rec.StudentID, "upserting attendance")
			}
			saved = append(saved, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

func (repo *schoolRepository) UpsertTeacherAttendance(
	ctx context.Context,
	schoolID string,
	records []school.TeacherAttendanceRecord,
) ([]school.TeacherAttendanceRecord, error) {
	if !isUUID(schoolID) {
		return nil, core.NewNotFoundError("school", schoolID)
	}
	ids := make([]string, 0, len(records))
	for _, rec := range records {
		ids = append(ids, rec.TeacherID)
	}

	saved := make([]school.TeacherAttendanceRecord, 0, len(records))
	err := core.WithTx(ctx, repo.db, func(tx core.DBExecutor) error {
		if err := checkOwned(ctx, tx, "teachers", "teacher", schoolID, ids); err != nil {
			return err
		}
		for _, rec := range records {
			rec.SchoolID = schoolID
			if rec.LastUpdated.IsZero() {
				rec.LastUpdated = time.Now().UTC()
			}
			_, err := tx.ExecContext(ctx, `
				INSERT INTO teacher_attendance (school_id, date, teacher_id, status, last_updated)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (teacher_id, date) DO UPDATE
				SET status = EXCLUDED.status, last_updated = EXCLUDED.last_updated`,
				rec.SchoolID, rec.Date, rec.TeacherID, string(rec.Status), rec.LastUpdated)
			if err != nil {
				return trapErr(err, "teacher", rec.TeacherID, "upserting teacher attendance")
			}
			saved = append(saved, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// UpsertDailySubmission keeps a single submission per (date, class, section).
func (repo *schoolRepository) UpsertDailySubmission(ctx context.Context, sub school.DailySubmission) (school.DailySubmission, error) {
	if !isUUID(sub.SchoolID) {
		return school.DailySubmission{}, core.NewNotFoundError("school", sub.SchoolID)
	}
	if sub.SubmissionTimestamp.IsZero() {
		sub.SubmissionTimestamp = time.Now().UTC()
	}
	_, err := repo.db.ExecContext(ctx, `
		INSERT INTO daily_submissions (school_id, date, teacher_id, class_name, section,
			total_students, present_students, absent_students, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (school_id, date, lower(class_name), lower(section)) DO UPDATE
		SET teacher_id = EXCLUDED.teacher_id, class_name = EXCLUDED.class_name, section = EXCLUDED.section,
			total_students = EXCLUDED.total_students, present_students = EXCLUDED.present_students,
			absent_students = EXCLUDED.absent_students, submitted_at = EXCLUDED.submitted_at`,
		sub.SchoolID, sub.Date, nullUUID(sub.TeacherID), sub.ClassName, sub.Section,
		sub.TotalStudents, sub.PresentStudents, sub.AbsentStudents, sub.SubmissionTimestamp)
	if err != nil {
		return school.DailySubmission{}, trapErr(err, "school", sub.SchoolID, "upserting daily submission")
	}
	return sub, nil
}
