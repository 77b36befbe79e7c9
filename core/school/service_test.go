package school_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frizwan636-dotcom/attendancepro/core"
	"github.com/frizwan636-dotcom/attendancepro/core/school"
	"github.com/frizwan636-dotcom/attendancepro/tests"
)

var errOffline = core.NewNetworkError(errors.New("dial tcp: connection refused"))

func newStudent(name, roll string) school.NewStudent {
	return school.NewStudent{
		Name:         name,
		RollNumber:   roll,
		MobileNumber: "+923001112233",
		TotalFee:     1000,
		ClassName:    "5",
		Section:      "A",
	}
}

func TestService_AddStudents(t *testing.T) {
	env, oak := setup(t)
	ctx := context.Background()

	created, err := env.Service.AddStudents(ctx, []school.NewStudent{newStudent("Omar", "31"), newStudent("Hina", "A-32")})
	require.NoError(t, err)
	require.Len(t, created, 2)
	for _, st := range created {
		assert.NotEmpty(t, st.ID)
		assert.Equal(t, oak.School.ID, st.SchoolID)
		assert.Equal(t, oak.TeacherA.ID, st.TeacherID, "class owner is the default teacher")
		assert.Equal(t, []school.FeePayment{}, st.FeeHistory)
	}
	assert.Len(t, env.Store.Roster(oak.Class5A()), 22)
	assert.Equal(t, 1, env.Mock.Calls("CreateStudents"))
}

func TestService_AddStudentsRejectsDuplicateRolls(t *testing.T) {
	tests := []struct {
		name  string
		batch []school.NewStudent
		field string
	}{
		{
			name:  "taken by existing student",
			batch: []school.NewStudent{newStudent("Omar", "31"), newStudent("Hina", "7")},
			field: "students[1].roll_number",
		},
		{
			name:  "repeated within batch ignoring case",
			batch: []school.NewStudent{newStudent("Omar", "b-1"), newStudent("Hina", "B-1")},
			field: "students[1].roll_number",
		},
		{
			name:  "missing roll",
			batch: []school.NewStudent{newStudent("Omar", "  ")},
			field: "students[0].roll_number",
		},
		{
			name:  "empty batch",
			batch: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, _ := setup(t)
			version := env.Store.Version()

			_, err := env.Service.AddStudents(context.Background(), tt.batch)
			require.Error(t, err)
			assert.True(t, core.IsValidation(err))
			if tt.field != "" {
				flds := err.(*core.ValidationError).Fields
				require.NotEmpty(t, flds)
				assert.Equal(t, tt.field, flds[0].Field)
			}
			assert.Zero(t, env.Mock.TotalCalls(), "rejected before any network call")
			assert.Equal(t, version, env.Store.Version())
			assert.Len(t, env.Store.Students(), 30)
		})
	}
}

func TestService_AddStudentsServerConflict(t *testing.T) {
	env, oak := setup(t)
	ctx := context.Background()

	// another device enrols roll 31 behind our back
	testutil.CreateStudents(t, env.Repo, oak.TeacherA, 31, 1, 1000)

	_, err := env.Service.AddStudents(ctx, []school.NewStudent{newStudent("Omar", "31")})
	require.Error(t, err)
	assert.True(t, core.IsConflict(err))
	assert.Len(t, env.Store.Students(), 30)
}

func TestService_SaveAttendance(t *testing.T) {
	env, oak := setup(t)
	ctx := context.Background()
	class := oak.Class5A()

	saved, err := env.Service.SaveAttendance(ctx, oak.TeacherA.ID, day1, testutil.Statuses(oak.Students5A, 18))
	require.NoError(t, err)
	assert.Len(t, saved, 20)

	// saving again replaces instead of appending
	_, err = env.Service.SaveAttendance(ctx, oak.TeacherA.ID, day1, testutil.Statuses(oak.Students5A, 15))
	require.NoError(t, err)

	marks := env.Store.AttendanceOn(day1, class)
	assert.Len(t, marks, 20)
	var present int
	for _, status := range marks {
		if status == school.Present {
			present++
		}
	}
	assert.Equal(t, 15, present)
	assert.Len(t, env.Store.Snapshot().AttendanceRecords, 20)

	data, err := env.Repo.GetSchoolData(ctx, oak.School.ID)
	require.NoError(t, err)
	assert.Len(t, data.AttendanceRecords, 20)
}

func TestService_SaveAttendanceValidation(t *testing.T) {
	env, oak := setup(t)
	ctx := context.Background()
	st := oak.Students5A[0]

	tests := []struct {
		name     string
		date     string
		statuses map[string]school.AttendanceStatus
		check    func(error) bool
	}{
		{name: "bad date", date: "01-03-2024", statuses: map[string]school.AttendanceStatus{st.ID: school.Present}, check: core.IsValidation},
		{name: "no records", date: day1, statuses: nil, check: core.IsValidation},
		{name: "bad status", date: day1, statuses: map[string]school.AttendanceStatus{st.ID: "Late"}, check: core.IsValidation},
		{name: "unknown student", date: day1, statuses: map[string]school.AttendanceStatus{"nobody": school.Absent}, check: core.IsNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.Service.SaveAttendance(ctx, oak.TeacherA.ID, tt.date, tt.statuses)
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error: %v", err)
		})
	}
	assert.Zero(t, env.Mock.TotalCalls())
}

func TestService_SubmittedAttendanceIsFrozen(t *testing.T) {
	env, oak := setup(t)
	ctx := context.Background()
	class := oak.Class5A()
	statuses := testutil.Statuses(oak.Students5A, 18)

	_, err := env.Service.SaveAttendance(ctx, oak.TeacherA.ID, day1, statuses)
	require.NoError(t, err)
	_, err = env.Service.SubmitAttendanceToCoordinator(ctx, oak.TeacherA.ID, day1, class, env.Store.Roster(class), statuses)
	require.NoError(t, err)
	assert.True(t, env.Store.IsSubmitted(day1, class))

	_, err = env.Service.SaveAttendance(ctx, oak.TeacherA.ID, day1, testutil.Statuses(oak.Students5A, 20))
	require.Error(t, err)
	assert.True(t, core.IsValidation(err))

	// other classes and other days stay editable
	_, err = env.Service.SaveAttendance(ctx, oak.TeacherB.ID, day1, testutil.Statuses(oak.Students5B, 10))
	assert.NoError(t, err)
	_, err = env.Service.SaveAttendance(ctx, oak.TeacherA.ID, day2, statuses)
	assert.NoError(t, err)
}

func TestService_ResubmitKeepsOneSubmission(t *testing.T) {
	env, oak := setup(t)
	ctx := context.Background()
	class := oak.Class5A()
	roster := env.Store.Roster(class)

	_, err := env.Service.SubmitAttendanceToCoordinator(ctx, oak.TeacherA.ID, day1, class, roster, testutil.Statuses(roster, 18))
	require.NoError(t, err)
	sub, err := env.Service.SubmitAttendanceToCoordinator(ctx, oak.TeacherA.ID, day1, class, roster, testutil.Statuses(roster, 19))
	require.NoError(t, err)
	assert.Equal(t, 19, sub.PresentStudents)
	assert.Equal(t, 1, sub.AbsentStudents)
	assert.Equal(t, 20, sub.TotalStudents)

	assert.Len(t, env.Store.Snapshot().DailySubmissions, 1)
	got, ok := env.Store.Submission(day1, school.ClassRef{ClassName: "5", Section: "a"})
	require.True(t, ok)
	assert.Equal(t, 19, got.PresentStudents)

	data, err := env.Repo.GetSchoolData(ctx, oak.School.ID)
	require.NoError(t, err)
	assert.Len(t, data.DailySubmissions, 1)

	_, err = env.Service.SubmitAttendanceToCoordinator(ctx, oak.TeacherA.ID, day1, school.ClassRef{}, roster, nil)
	assert.True(t, core.IsValidation(err))
}

func TestService_NetworkFailureLeavesStoreUntouched(t *testing.T) {
	env, oak := setup(t)
	ctx := context.Background()
	env.Mock.FailWith("", errOffline)
	version := env.Store.Version()
	snapshot := env.Store.Snapshot()

	_, err := env.Service.SaveAttendance(ctx, oak.TeacherA.ID, day1, testutil.Statuses(oak.Students5A, 18))
	assert.True(t, core.IsNetwork(err))
	_, err = env.Service.RecordFeePayment(ctx, oak.Students5A[0].ID, 100)
	assert.True(t, core.IsNetwork(err))
	_, err = env.Service.AddStudents(ctx, []school.NewStudent{newStudent("Omar", "31")})
	assert.True(t, core.IsNetwork(err))
	err = env.Service.RemoveStudent(ctx, oak.Students5B[0].ID)
	assert.True(t, core.IsNetwork(err))
	assert.False(t, env.Service.Syncing())

	assert.Equal(t, version, env.Store.Version())
	assert.Equal(t, snapshot, env.Store.Snapshot())

	env.Mock.Reset()
	_, err = env.Service.RecordFeePayment(ctx, oak.Students5A[0].ID, 100)
	assert.NoError(t, err)
}

func TestService_Teachers(t *testing.T) {
	env, oak := setup(t)
	ctx := context.Background()

	created, err := env.Service.AddTeacher(ctx, school.NewTeacher{
		Name: "Bilal Raza", Email: "Bilal@Oak.School", ClassName: "6", MobileNumber: "+923009998877",
	})
	require.NoError(t, err)
	assert.Equal(t, school.RoleTeacher, created.Role)
	assert.Equal(t, core.DefaultTeacherPIN, created.PIN)
	assert.Equal(t, "bilal@oak.school", created.Email)
	assert.True(t, created.SetupComplete)
	assert.Contains(t, env.Store.Classes(), school.ClassRef{ClassName: "6"})

	_, err = env.Service.AddTeacher(ctx, school.NewTeacher{Name: "Copy", Email: "bilal@oak.school", MobileNumber: "1"})
	assert.True(t, core.IsValidation(err))

	updated, err := env.Service.UpdateTeacherDetails(ctx, created.ID, school.UpdateTeacher{PIN: "4321", Section: "C"})
	require.NoError(t, err)
	assert.Equal(t, "4321", updated.PIN)
	assert.Equal(t, "C", updated.Section)
	assert.Equal(t, "Bilal Raza", updated.Name)
	assert.True(t, env.Service.VerifyPIN(created.ID, "4321"))

	_, err = env.Service.UpdateTeacherDetails(ctx, created.ID, school.UpdateTeacher{PIN: "12"})
	assert.True(t, core.IsValidation(err))

	require.NoError(t, env.Service.RemoveTeacher(ctx, created.ID))
	_, ok := env.Store.Teacher(created.ID)
	assert.False(t, ok)
	assert.Len(t, env.Store.Teachers(), 3)

	tests := []struct {
		name  string
		id    string
		check func(error) bool
	}{
		{name: "unknown", id: "missing", check: core.IsNotFound},
		{name: "coordinator", id: oak.Coordinator.ID, check: core.IsValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env.Mock.Reset()
			err := env.Service.RemoveTeacher(ctx, tt.id)
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error: %v", err)
			assert.Zero(t, env.Mock.TotalCalls())
		})
	}
}

func TestService_RemoveTeacherDropsTheirAttendance(t *testing.T) {
	env, oak := setup(t)
	ctx := context.Background()

	_, err := env.Service.SaveTeacherAttendance(ctx, oak.Coordinator.ID, day1, map[string]school.AttendanceStatus{
		oak.TeacherA.ID: school.Present,
		oak.TeacherB.ID: school.Absent,
	})
	require.NoError(t, err)
	require.Len(t, env.Store.TeacherAttendanceOn(day1), 2)

	require.NoError(t, env.Service.RemoveTeacher(ctx, oak.TeacherB.ID))
	assert.Equal(t, map[string]school.AttendanceStatus{oak.TeacherA.ID: school.Present}, env.Store.TeacherAttendanceOn(day1))
	assert.Len(t, env.Store.Roster(oak.Class5B()), 10, "students stay enrolled")
}

func TestService_Students(t *testing.T) {
	env, oak := setup(t)
	ctx := context.Background()
	st := oak.Students5A[0]

	_, err := env.Service.RecordFeePayment(ctx, st.ID, 250)
	require.NoError(t, err)

	fee := 1200.0
	updated, err := env.Service.UpdateStudentDetails(ctx, st.ID, school.UpdateStudent{Name: "Ayesha", TotalFee: &fee})
	require.NoError(t, err)
	assert.Equal(t, "Ayesha", updated.Name)
	assert.Equal(t, st.RollNumber, updated.RollNumber)
	require.Len(t, updated.FeeHistory, 1, "fee history survives updates")
	assert.Equal(t, 250.0, updated.FeeHistory[0].Amount)

	sum, _ := env.Store.FeeSummary(st.ID)
	assert.Equal(t, 950.0, sum.FeeDue)

	_, err = env.Service.UpdateStudentDetails(ctx, st.ID, school.UpdateStudent{RollNumber: "2"})
	assert.True(t, core.IsValidation(err))
	_, err = env.Service.UpdateStudentDetails(ctx, "missing", school.UpdateStudent{Name: "X"})
	assert.True(t, core.IsNotFound(err))

	_, err = env.Service.SaveAttendance(ctx, oak.TeacherA.ID, day1, testutil.Statuses(oak.Students5A[:2], 2))
	require.NoError(t, err)
	require.NoError(t, env.Service.RemoveStudent(ctx, st.ID))
	_, ok := env.Store.Student(st.ID)
	assert.False(t, ok)
	assert.Len(t, env.Store.AttendanceOn(day1, oak.Class5A()), 1, "attendance of removed students is dropped")

	err = env.Service.RemoveStudent(ctx, st.ID)
	assert.True(t, core.IsNotFound(err))
}

func TestService_RecordFeePayment(t *testing.T) {
	env, oak := setup(t)
	ctx := context.Background()
	st := oak.Students5B[0]

	tests := []struct {
		name      string
		studentID string
		amount    float64
		check     func(error) bool
	}{
		{name: "zero", studentID: st.ID, amount: 0, check: core.IsValidation},
		{name: "negative", studentID: st.ID, amount: -50, check: core.IsValidation},
		{name: "unknown student", studentID: "missing", amount: 50, check: core.IsNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.Service.RecordFeePayment(ctx, tt.studentID, tt.amount)
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error: %v", err)
		})
	}
	assert.Zero(t, env.Mock.TotalCalls())

	p, err := env.Service.RecordFeePayment(ctx, st.ID, 300)
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, st.ID, p.StudentID)
	assert.False(t, p.Date.IsZero())

	sum, _ := env.Store.FeeSummary(st.ID)
	assert.Equal(t, school.FeePartial, sum.Status)
	assert.Equal(t, 700.0, sum.FeeDue)
}

func TestService_SaveTeacherAttendance(t *testing.T) {
	env, oak := setup(t)
	ctx := context.Background()
	statuses := map[string]school.AttendanceStatus{oak.TeacherA.ID: school.Present, oak.TeacherB.ID: school.Absent}

	_, err := env.Service.SaveTeacherAttendance(ctx, oak.TeacherA.ID, day1, statuses)
	assert.True(t, core.IsAuth(err))

	saved, err := env.Service.SaveTeacherAttendance(ctx, oak.Coordinator.ID, day1, statuses)
	require.NoError(t, err)
	assert.Len(t, saved, 2)

	statuses[oak.TeacherB.ID] = school.Present
	_, err = env.Service.SaveTeacherAttendance(ctx, oak.Coordinator.ID, day1, statuses)
	require.NoError(t, err)
	assert.Len(t, env.Store.Snapshot().TeacherAttendanceRecords, 2)
	assert.Equal(t, 100, env.Store.TeacherAttendancePercentage(oak.TeacherB.ID))

	_, err = env.Service.SaveTeacherAttendance(ctx, oak.Coordinator.ID, day1, map[string]school.AttendanceStatus{"nobody": school.Present})
	assert.True(t, core.IsNotFound(err))
}

func TestService_SetSchoolPIN(t *testing.T) {
	env, oak := setup(t)
	ctx := context.Background()

	_, err := env.Service.SetSchoolPIN(ctx, oak.TeacherA.ID, "NEW-PIN")
	assert.True(t, core.IsAuth(err))
	_, err = env.Service.SetSchoolPIN(ctx, oak.Coordinator.ID, "   ")
	assert.True(t, core.IsValidation(err))
	assert.Zero(t, env.Mock.TotalCalls())

	sch, err := env.Service.SetSchoolPIN(ctx, oak.Coordinator.ID, " NEW-PIN ")
	require.NoError(t, err)
	assert.Equal(t, "NEW-PIN", sch.PIN)
	got, _ := env.Store.School()
	assert.Equal(t, "NEW-PIN", got.PIN)

	found, err := env.Repo.GetSchoolByPIN(ctx, "NEW-PIN")
	require.NoError(t, err)
	assert.Equal(t, oak.School.ID, found.ID)
	_, err = env.Repo.GetSchoolByPIN(ctx, testutil.OakSchoolPIN)
	assert.True(t, core.IsNotFound(err))
}
