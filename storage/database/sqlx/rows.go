package sqlxrepos

import (
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/frizwan636-dotcom/attendancepro/core"
	"github.com/frizwan636-dotcom/attendancepro/core/school"
)

// postgres error codes
const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
	checkViolation      = "23514"
)

// conflictFields maps unique constraints to the field they guard.
var conflictFields = map[string]string{
	"schools_pin_key":                "pin",
	"teachers_school_email_idx":      "email",
	"teachers_coordinator_email_idx": "email",
	"teachers_one_coordinator_idx":   "role",
	"students_school_roll_idx":       "roll_number",
}

var conflictErrs = map[string]error{
	"pin":         school.ErrSchoolPINExists,
	"email":       school.ErrEmailExists,
	"roll_number": school.ErrRollExists,
}

type (
	schoolRow struct {
		ID   string `db:"id"`
		Name string `db:"name"`
		PIN  string `db:"pin"`
	}

	teacherRow struct {
		ID            string      `db:"id"`
		SchoolID      string      `db:"school_id"`
		Name          string      `db:"name"`
		Email         null.String `db:"email"`
		PIN           string      `db:"pin"`
		Role          string      `db:"role"`
		ClassName     string      `db:"class_name"`
		Section       string      `db:"section"`
		MobileNumber  string      `db:"mobile_number"`
		SetupComplete bool        `db:"setup_complete"`
		Photo         null.String `db:"photo"`
	}

	credentialsRow struct {
		teacherRow
		PasswordHash []byte `db:"password_hash"`
	}

	studentRow struct {
		ID           string      `db:"id"`
		SchoolID     string      `db:"school_id"`
		TeacherID    null.String `db:"teacher_id"`
		Name         string      `db:"name"`
		FatherName   null.String `db:"father_name"`
		RollNumber   string      `db:"roll_number"`
		MobileNumber string      `db:"mobile_number"`
		TotalFee     float64     `db:"total_fee"`
		ClassName    string      `db:"class_name"`
		Section      string      `db:"section"`
		Photo        null.String `db:"photo"`
	}

	paymentRow struct {
		ID        string    `db:"id"`
		StudentID string    `db:"student_id"`
		Amount    float64   `db:"amount"`
		PaidAt    time.Time `db:"paid_at"`
	}

	attendanceRow struct {
		SchoolID    string      `db:"school_id"`
		Date        string      `db:"date"`
		TeacherID   null.String `db:"teacher_id"`
		StudentID   string      `db:"student_id"`
		Status      string      `db:"status"`
		LastUpdated time.Time   `db:"last_updated"`
	}

	teacherAttendanceRow struct {
		SchoolID    string    `db:"school_id"`
		Date        string    `db:"date"`
		TeacherID   string    `db:"teacher_id"`
		Status      string    `db:"status"`
		LastUpdated time.Time `db:"last_updated"`
	}

	submissionRow struct {
		SchoolID        string      `db:"school_id"`
		Date            string      `db:"date"`
		TeacherID       null.String `db:"teacher_id"`
		ClassName       string      `db:"class_name"`
		Section         string      `db:"section"`
		TotalStudents   int         `db:"total_students"`
		PresentStudents int         `db:"present_students"`
		AbsentStudents  int         `db:"absent_students"`
		SubmittedAt     time.Time   `db:"submitted_at"`
	}
)

func nullString(s string) null.String {
	return null.NewString(s, s != "")
}

// nullUUID keeps ids that are not uuids out of uuid columns.
func nullUUID(id string) null.String {
	return null.NewString(id, isUUID(id))
}

// textOf reads a nullable column. NULL reads as "".
func textOf(n null.String) string {
	if !n.Valid {
		return ""
	}
	return n.String
}

func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func (r schoolRow) unboil() school.School {
	return school.School{ID: r.ID, Name: r.Name, PIN: r.PIN}
}

func boilTeacher(t school.Teacher) teacherRow {
	return teacherRow{
		ID:            t.ID,
		SchoolID:      t.SchoolID,
		Name:          t.Name,
		Email:         nullString(strings.ToLower(t.Email)),
		PIN:           t.PIN,
		Role:          string(t.Role),
		ClassName:     t.ClassName,
		Section:       t.Section,
		MobileNumber:  t.MobileNumber,
		SetupComplete: t.SetupComplete,
		Photo:         nullString(t.Photo),
	}
}

func (r teacherRow) unboil() school.Teacher {
	return school.Teacher{
		ID:            r.ID,
		SchoolID:      r.SchoolID,
		Name:          r.Name,
		Email:         textOf(r.Email),
		PIN:           r.PIN,
		Role:          school.Role(r.Role),
		ClassName:     r.ClassName,
		Section:       r.Section,
		MobileNumber:  r.MobileNumber,
		SetupComplete: r.SetupComplete,
		Photo:         textOf(r.Photo),
	}
}

func boilStudent(s school.Student) studentRow {
	return studentRow{
		ID:           s.ID,
		SchoolID:     s.SchoolID,
		TeacherID:    nullUUID(s.TeacherID),
		Name:         s.Name,
		FatherName:   nullString(s.FatherName),
		RollNumber:   s.RollNumber,
		MobileNumber: s.MobileNumber,
		TotalFee:     s.TotalFee,
		ClassName:    s.ClassName,
		Section:      s.Section,
		Photo:        nullString(s.Photo),
	}
}

func (r studentRow) unboil(history []school.FeePayment) school.Student {
	if history == nil {
		history = []school.FeePayment{}
	}
	return school.Student{
		ID:           r.ID,
		SchoolID:     r.SchoolID,
		TeacherID:    textOf(r.TeacherID),
		Name:         r.Name,
		FatherName:   textOf(r.FatherName),
		RollNumber:   r.RollNumber,
		MobileNumber: r.MobileNumber,
		TotalFee:     r.TotalFee,
		FeeHistory:   history,
		ClassName:    r.ClassName,
		Section:      r.Section,
		Photo:        textOf(r.Photo),
	}
}

func (r paymentRow) unboil() school.FeePayment {
	return school.FeePayment{ID: r.ID, StudentID: r.StudentID, Amount: r.Amount, Date: r.PaidAt.UTC()}
}

func (r attendanceRow) unboil() school.AttendanceRecord {
	return school.AttendanceRecord{
		SchoolID:    r.SchoolID,
		Date:        r.Date,
		TeacherID:   textOf(r.TeacherID),
		StudentID:   r.StudentID,
		Status:      school.AttendanceStatus(r.Status),
		LastUpdated: r.LastUpdated.UTC(),
	}
}

func (r teacherAttendanceRow) unboil() school.TeacherAttendanceRecord {
	return school.TeacherAttendanceRecord{
		SchoolID:    r.SchoolID,
		Date:        r.Date,
		TeacherID:   r.TeacherID,
		Status:      school.AttendanceStatus(r.Status),
		LastUpdated: r.LastUpdated.UTC(),
	}
}

func (r submissionRow) unboil() school.DailySubmission {
	return school.DailySubmission{
		SchoolID:            r.SchoolID,
		Date:                r.Date,
		TeacherID:           textOf(r.TeacherID),
		ClassName:           r.ClassName,
		Section:             r.Section,
		TotalStudents:       r.TotalStudents,
		PresentStudents:     r.PresentStudents,
		AbsentStudents:      r.AbsentStudents,
		SubmissionTimestamp: r.SubmittedAt.UTC(),
	}
}

// trapErr maps driver errors to the typed errors of package core.
func trapErr(err error, resource, id, msg string) error {
	if err == nil {
		return nil
	}
	if err == sql.ErrNoRows {
		return core.NewNotFoundError(resource, id)
	}
	if pqErr, ok := errors.Cause(err).(*pq.Error); ok {
		switch pqErr.Code {
		case uniqueViolation:
			field := conflictFields[pqErr.Constraint]
			cause, ok := conflictErrs[field]
			if !ok {
				cause = errors.New(pqErr.Message)
			}
			return core.NewConflictError(cause, field)
		case foreignKeyViolation:
			return core.NewNotFoundError(resource, id)
		case checkViolation:
			return core.NewValidationError(errors.New(pqErr.Message), core.FieldError{Field: pqErr.Constraint, Error: pqErr.Message})
		}
	}
	return errors.Wrap(err, msg)
}
