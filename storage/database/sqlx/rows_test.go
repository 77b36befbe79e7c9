package sqlxrepos

import (
	"database/sql"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/frizwan636-dotcom/attendancepro/core"
	"github.com/frizwan636-dotcom/attendancepro/core/school"
)

func TestTrapErr(t *testing.T) {
	assert.NoError(t, trapErr(nil, "school", "x", "msg"))

	err := trapErr(sql.ErrNoRows, "teacher", "t1", "finding teacher")
	assert.True(t, core.IsNotFound(err))
	assert.Equal(t, &core.NotFoundError{Resource: "teacher", ID: "t1"}, err)

	tests := []struct {
		name      string
		pqErr     *pq.Error
		wantField string
		wantCause error
	}{
		{"school pin", &pq.Error{Code: uniqueViolation, Constraint: "schools_pin_key"}, "pin", school.ErrSchoolPINExists},
		{"teacher email", &pq.Error{Code: uniqueViolation, Constraint: "teachers_school_email_idx"}, "email", school.ErrEmailExists},
		{"coordinator email", &pq.Error{Code: uniqueViolation, Constraint: "teachers_coordinator_email_idx"}, "email", school.ErrEmailExists},
		{"roll number", &pq.Error{Code: uniqueViolation, Constraint: "students_school_roll_idx"}, "roll_number", school.ErrRollExists},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := trapErr(errors.Wrap(tc.pqErr, "wrapped"), "school", "", "msg")
			require.True(t, core.IsConflict(err))
			ce := err.(*core.ConflictError)
			assert.Equal(t, tc.wantField, ce.Field)
			assert.Equal(t, tc.wantCause, ce.Err)
		})
	}

	err = trapErr(&pq.Error{Code: uniqueViolation, Constraint: "teachers_one_coordinator_idx", Message: "duplicate key"}, "teacher", "", "msg")
	require.True(t, core.IsConflict(err))
	assert.Equal(t, "role", err.(*core.ConflictError).Field)
	assert.Equal(t, "duplicate key", err.Error())

	err = trapErr(&pq.Error{Code: foreignKeyViolation}, "school", "s1", "msg")
	assert.Equal(t, &core.NotFoundError{Resource: "school", ID: "s1"}, err)

	err = trapErr(&pq.Error{Code: checkViolation, Constraint: "teachers_pin_check", Message: "violates check"}, "teacher", "", "msg")
	assert.True(t, core.IsValidation(err))

	err = trapErr(errors.New("connection reset"), "school", "", "querying school")
	assert.False(t, core.IsTyped(err))
	assert.Equal(t, "querying school: connection reset", err.Error())
}

func TestNullHelpers(t *testing.T) {
	assert.Equal(t, null.String{}, nullString(""))
	assert.Equal(t, null.StringFrom("x"), nullString("x"))

	id := newID()
	assert.True(t, isUUID(id))
	assert.False(t, isUUID("teacher-1"))
	assert.Equal(t, null.StringFrom(id), nullUUID(id))
	assert.False(t, nullUUID("teacher-1").Valid)
	assert.False(t, nullUUID("").Valid)
}

func TestTeacherRowRoundTrip(t *testing.T) {
	teacher := school.Teacher{
		ID:           newID(),
		SchoolID:     newID(),
		Name:         "Ali Khan",
		Email:        "Ali@Oak.School",
		PIN:          "1111",
		Role:         school.RoleTeacher,
		ClassName:    "5",
		Section:      "A",
		MobileNumber: "0300",
	}
	row := boilTeacher(teacher)
	assert.Equal(t, null.StringFrom("ali@oak.school"), row.Email)
	assert.False(t, row.Photo.Valid)
	assert.Equal(t, "teacher", row.Role)

	back := row.unboil()
	teacher.Email = "ali@oak.school"
	assert.Equal(t, teacher, back)

	assert.False(t, boilTeacher(school.Teacher{}).Email.Valid)
}

func TestStudentRowRoundTrip(t *testing.T) {
	st := school.Student{
		ID:         newID(),
		SchoolID:   newID(),
		TeacherID:  "not-a-uuid",
		Name:       "Zara",
		RollNumber: "7",
		TotalFee:   500,
		ClassName:  "5",
		Section:    "A",
	}
	row := boilStudent(st)
	assert.False(t, row.TeacherID.Valid)
	assert.False(t, row.FatherName.Valid)

	back := row.unboil(nil)
	assert.Equal(t, []school.FeePayment{}, back.FeeHistory)
	assert.Equal(t, "", back.TeacherID)

	row.FatherName = null.NewString("stale", false)
	row.Photo = null.NewString("stale", false)
	back = row.unboil(nil)
	assert.Equal(t, "", back.FatherName, "NULL reads as empty")
	assert.Equal(t, "", back.Photo)
	assert.Equal(t, st.RollNumber, back.RollNumber)

	paidAt := time.Date(2024, 3, 1, 10, 0, 0, 0, time.FixedZone("PKT", 5*3600))
	p := paymentRow{ID: "p1", StudentID: st.ID, Amount: 300, PaidAt: paidAt}.unboil()
	assert.Equal(t, time.UTC, p.Date.Location())
	assert.True(t, p.Date.Equal(paidAt))

	back = row.unboil([]school.FeePayment{p})
	assert.Len(t, back.FeeHistory, 1)
}

func TestAttendanceRowsUnboil(t *testing.T) {
	ts := time.Date(2024, 3, 1, 8, 0, 0, 0, time.Local)

	rec := attendanceRow{SchoolID: "s", Date: "2024-03-01", StudentID: "st", Status: "Absent", LastUpdated: ts}.unboil()
	assert.Equal(t, school.Absent, rec.Status)
	assert.Equal(t, "", rec.TeacherID)
	assert.Equal(t, time.UTC, rec.LastUpdated.Location())

	trec := teacherAttendanceRow{SchoolID: "s", Date: "2024-03-01", TeacherID: "t", Status: "Present", LastUpdated: ts}.unboil()
	assert.Equal(t, school.Present, trec.Status)

	sub := submissionRow{
		SchoolID: "s", Date: "2024-03-01", TeacherID: null.StringFrom("t"), ClassName: "5", Section: "A",
		TotalStudents: 20, PresentStudents: 18, AbsentStudents: 2, SubmittedAt: ts,
	}.unboil()
	assert.Equal(t, school.ClassRef{ClassName: "5", Section: "A"}, sub.Class())
	assert.Equal(t, 18, sub.PresentStudents)
	assert.Equal(t, "t", sub.TeacherID)
}
