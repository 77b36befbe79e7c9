package inmemdb_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frizwan636-dotcom/attendancepro/core"
	"github.com/frizwan636-dotcom/attendancepro/core/school"
	"github.com/frizwan636-dotcom/attendancepro/storage/database/inmem"
	"github.com/frizwan636-dotcom/attendancepro/tests"
)

func newRepo(t *testing.T) (*inmemdb.DB, school.Repository, testutil.OakSchool) {
	db := inmemdb.Open()
	repo := inmemdb.NewSchoolRepository(db)
	return db, repo, testutil.SeedOakSchool(t, repo)
}

func TestSchoolRepository_CreateSchool(t *testing.T) {
	_, repo, oak := newRepo(t)
	ctx := context.Background()

	assert.NotEmpty(t, oak.School.ID)
	assert.Equal(t, school.RoleCoordinator, oak.Coordinator.Role)
	assert.Equal(t, oak.School.ID, oak.Coordinator.SchoolID)

	tests := []struct {
		name  string
		pin   string
		email string
		field string
	}{
		{name: "school PIN in use", pin: testutil.OakSchoolPIN, email: "head@pine.school", field: "school_pin"},
		{name: "coordinator email in use", pin: "PINE-1", email: "PRINCIPAL@oak.school", field: "email"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := repo.CreateSchool(
				ctx,
				school.School{Name: "Pine School", PIN: tt.pin},
				school.Teacher{Name: "Imran", Email: tt.email, PIN: "4444", Role: school.RoleTeacher},
				[]byte("hash"),
			)
			require.Error(t, err)
			require.True(t, core.IsConflict(err))
			assert.Equal(t, tt.field, err.(*core.ConflictError).Field)
		})
	}

	pine, coord, err := repo.CreateSchool(
		ctx,
		school.School{Name: "Pine School", PIN: "PINE-1"},
		school.Teacher{Name: "Imran", Email: "head@pine.school", PIN: "4444", Role: school.RoleTeacher},
		[]byte("hash"),
	)
	require.NoError(t, err)
	assert.Equal(t, school.RoleCoordinator, coord.Role, "the founder is always the coordinator")

	found, err := repo.GetSchoolByPIN(ctx, "PINE-1")
	require.NoError(t, err)
	assert.Equal(t, pine, found)
	_, err = repo.GetSchoolByPIN(ctx, "nope")
	assert.True(t, core.IsNotFound(err))
	_, err = repo.GetSchool(ctx, "nope")
	assert.True(t, core.IsNotFound(err))

	got, hash, err := repo.GetCredentials(ctx, "head@pine.school")
	require.NoError(t, err)
	assert.Equal(t, coord.ID, got.ID)
	assert.Equal(t, []byte("hash"), hash)
	require.NoError(t, repo.SetPasswordHash(ctx, coord.ID, []byte("new")))
	_, hash, err = repo.GetCredentials(ctx, "HEAD@pine.school")
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), hash)

	_, _, err = repo.GetCredentials(ctx, "nobody@pine.school")
	assert.True(t, core.IsNotFound(err))
}

func TestSchoolRepository_GetSchoolData(t *testing.T) {
	_, repo, oak := newRepo(t)
	ctx := context.Background()

	// a second tenant never leaks into the first
	other, coord, err := repo.CreateSchool(ctx, school.School{Name: "Pine", PIN: "PINE-1"}, school.Teacher{Name: "Imran", Email: "head@pine.school", PIN: "4444"}, nil)
	require.NoError(t, err)
	teacher := testutil.CreateTeacher(t, repo, other.ID, "Zainab", "5555", "5", "A")
	testutil.CreateStudents(t, repo, teacher, 1, 5, 700)

	data, err := repo.GetSchoolData(ctx, oak.School.ID)
	require.NoError(t, err)
	assert.Equal(t, oak.School, data.School)
	require.Len(t, data.Teachers, 3)
	assert.Equal(t, []string{oak.Coordinator.ID, oak.TeacherA.ID, oak.TeacherB.ID},
		[]string{data.Teachers[0].ID, data.Teachers[1].ID, data.Teachers[2].ID}, "creation order")
	require.Len(t, data.Students, 30)
	assert.Equal(t, oak.Students5A[0].ID, data.Students[0].ID)
	assert.NotNil(t, data.AttendanceRecords)
	assert.NotNil(t, data.DailySubmissions)

	pine, err := repo.GetSchoolData(ctx, other.ID)
	require.NoError(t, err)
	assert.Len(t, pine.Teachers, 2)
	assert.Equal(t, coord.ID, pine.Teachers[0].ID)
	assert.Len(t, pine.Students, 5, "roll numbers are unique per school only")

	_, err = repo.GetSchoolData(ctx, "nope")
	assert.True(t, core.IsNotFound(err))

	// loads cleanly into a store
	assert.NoError(t, school.NewStore().LoadSchool(data))
}

func TestSchoolRepository_Teachers(t *testing.T) {
	_, repo, oak := newRepo(t)
	ctx := context.Background()

	_, err := repo.CreateTeacher(ctx, school.Teacher{SchoolID: "nope", Name: "X", PIN: "1234"})
	assert.True(t, core.IsNotFound(err))

	_, err = repo.CreateTeacher(ctx, school.Teacher{SchoolID: oak.School.ID, Name: "X", Email: testutil.OakEmail, PIN: "1234"})
	assert.True(t, core.IsConflict(err))

	created, err := repo.CreateTeacher(ctx, school.Teacher{SchoolID: oak.School.ID, Name: "Bilal", PIN: "1234"})
	require.NoError(t, err)
	assert.Equal(t, school.RoleTeacher, created.Role)

	created.Role = school.RoleCoordinator
	created.Name = "Bilal Raza"
	updated, err := repo.UpdateTeacher(ctx, created)
	require.NoError(t, err)
	assert.Equal(t, "Bilal Raza", updated.Name)
	assert.Equal(t, school.RoleTeacher, updated.Role, "role is immutable")

	_, err = repo.UpsertTeacherAttendance(ctx, oak.School.ID, []school.TeacherAttendanceRecord{
		{Date: "2024-03-01", TeacherID: created.ID, Status: school.Present},
		{Date: "2024-03-01", TeacherID: oak.TeacherA.ID, Status: school.Absent},
	})
	require.NoError(t, err)

	assert.True(t, core.IsNotFound(repo.DeleteTeacher(ctx, "other-school", created.ID)))
	require.NoError(t, repo.DeleteTeacher(ctx, oak.School.ID, created.ID))
	data, err := repo.GetSchoolData(ctx, oak.School.ID)
	require.NoError(t, err)
	assert.Len(t, data.Teachers, 3)
	require.Len(t, data.TeacherAttendanceRecords, 1)
	assert.Equal(t, oak.TeacherA.ID, data.TeacherAttendanceRecords[0].TeacherID)
}

func TestSchoolRepository_CreateStudentsAllOrNothing(t *testing.T) {
	_, repo, oak := newRepo(t)
	ctx := context.Background()

	batch := []school.Student{
		{SchoolID: oak.School.ID, Name: "Omar", RollNumber: "31"},
		{SchoolID: oak.School.ID, Name: "Hina", RollNumber: "7"},
	}
	_, err := repo.CreateStudents(ctx, batch)
	require.Error(t, err)
	assert.True(t, core.IsConflict(err))

	batch[1].RollNumber = "x-1"
	batch = append(batch, school.Student{SchoolID: oak.School.ID, Name: "Ali", RollNumber: "X-1"})
	_, err = repo.CreateStudents(ctx, batch)
	assert.True(t, core.IsConflict(err), "repeated within batch ignoring case")

	data, err := repo.GetSchoolData(ctx, oak.School.ID)
	require.NoError(t, err)
	assert.Len(t, data.Students, 30, "nothing was inserted")

	created, err := repo.CreateStudents(ctx, batch[:2])
	require.NoError(t, err)
	require.Len(t, created, 2)
	assert.NotEqual(t, created[0].ID, created[1].ID)
	assert.Equal(t, []school.FeePayment{}, created[0].FeeHistory)
}

func TestSchoolRepository_Students(t *testing.T) {
	_, repo, oak := newRepo(t)
	ctx := context.Background()
	st := oak.Students5A[0]

	_, err := repo.CreateFeePayment(ctx, oak.School.ID, school.FeePayment{StudentID: st.ID, Amount: 0})
	assert.True(t, core.IsValidation(err))
	_, err = repo.CreateFeePayment(ctx, oak.School.ID, school.FeePayment{StudentID: "nope", Amount: 10})
	assert.True(t, core.IsNotFound(err))

	paidAt := time.Date(2024, 3, 1, 14, 0, 0, 0, time.FixedZone("PKT", 5*3600))
	p, err := repo.CreateFeePayment(ctx, oak.School.ID, school.FeePayment{StudentID: st.ID, Amount: 400, Date: paidAt})
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, time.UTC, p.Date.Location())
	assert.True(t, paidAt.Equal(p.Date))

	st.Name = "Ayesha"
	st.FeeHistory = nil
	updated, err := repo.UpdateStudent(ctx, st)
	require.NoError(t, err)
	assert.Equal(t, "Ayesha", updated.Name)
	assert.Equal(t, []school.FeePayment{p}, updated.FeeHistory, "ledger is kept as stored")

	st.RollNumber = "2"
	_, err = repo.UpdateStudent(ctx, st)
	assert.True(t, core.IsConflict(err))

	_, err = repo.UpsertAttendance(ctx, oak.School.ID, []school.AttendanceRecord{
		{Date: "2024-03-01", StudentID: st.ID, Status: school.Present},
		{Date: "2024-03-01", StudentID: oak.Students5A[1].ID, Status: school.Present},
	})
	require.NoError(t, err)

	require.NoError(t, repo.DeleteStudent(ctx, oak.School.ID, st.ID))
	assert.True(t, core.IsNotFound(repo.DeleteStudent(ctx, oak.School.ID, st.ID)))

	data, err := repo.GetSchoolData(ctx, oak.School.ID)
	require.NoError(t, err)
	assert.Len(t, data.Students, 29)
	require.Len(t, data.AttendanceRecords, 1)
	assert.Equal(t, oak.Students5A[1].ID, data.AttendanceRecords[0].StudentID)
}

func TestSchoolRepository_Upserts(t *testing.T) {
	_, repo, oak := newRepo(t)
	ctx := context.Background()
	statuses := testutil.Statuses(oak.Students5A, 18)

	records := make([]school.AttendanceRecord, 0, len(statuses))
	for id, status := range statuses {
		records = append(records, school.AttendanceRecord{Date: "2024-03-01", TeacherID: oak.TeacherA.ID, StudentID: id, Status: status})
	}
	for i := 0; i < 2; i++ {
		saved, err := repo.UpsertAttendance(ctx, oak.School.ID, records)
		require.NoError(t, err)
		assert.Len(t, saved, 20)
		assert.Equal(t, oak.School.ID, saved[0].SchoolID)
		assert.False(t, saved[0].LastUpdated.IsZero())
	}

	bad := append(records[:1:1], school.AttendanceRecord{Date: "2024-03-02", StudentID: "nope", Status: school.Present})
	_, err := repo.UpsertAttendance(ctx, oak.School.ID, bad)
	assert.True(t, core.IsNotFound(err))

	_, err = repo.UpsertAttendance(ctx, "other-school", records[:1])
	assert.True(t, core.IsNotFound(err), "students of another school")

	sub := school.DailySubmission{SchoolID: oak.School.ID, Date: "2024-03-01", TeacherID: oak.TeacherA.ID, ClassName: "5", Section: "A", TotalStudents: 20, PresentStudents: 18, AbsentStudents: 2}
	_, err = repo.UpsertDailySubmission(ctx, sub)
	require.NoError(t, err)
	sub.Section = "a"
	sub.PresentStudents, sub.AbsentStudents = 20, 0
	saved, err := repo.UpsertDailySubmission(ctx, sub)
	require.NoError(t, err)
	assert.False(t, saved.SubmissionTimestamp.IsZero())

	sub.SchoolID = "nope"
	_, err = repo.UpsertDailySubmission(ctx, sub)
	assert.True(t, core.IsNotFound(err))

	data, err := repo.GetSchoolData(ctx, oak.School.ID)
	require.NoError(t, err)
	assert.Len(t, data.AttendanceRecords, 20)
	require.Len(t, data.DailySubmissions, 1, "one submission per class and day")
	assert.Equal(t, 20, data.DailySubmissions[0].PresentStudents)
}

func TestSchoolRepository_UpdateSchoolPIN(t *testing.T) {
	_, repo, oak := newRepo(t)
	ctx := context.Background()

	_, _, err := repo.CreateSchool(ctx, school.School{Name: "Pine", PIN: "PINE-1"}, school.Teacher{Name: "Imran", Email: "head@pine.school", PIN: "4444"}, nil)
	require.NoError(t, err)

	_, err = repo.UpdateSchoolPIN(ctx, oak.School.ID, "PINE-1")
	assert.True(t, core.IsConflict(err))
	_, err = repo.UpdateSchoolPIN(ctx, "nope", "X")
	assert.True(t, core.IsNotFound(err))

	sch, err := repo.UpdateSchoolPIN(ctx, oak.School.ID, testutil.OakSchoolPIN)
	require.NoError(t, err, "keeping the own PIN is fine")
	assert.Equal(t, testutil.OakSchoolPIN, sch.PIN)
}

func TestDB_Reset(t *testing.T) {
	db, repo, oak := newRepo(t)
	db.Reset()

	_, err := repo.GetSchool(context.Background(), oak.School.ID)
	assert.True(t, core.IsNotFound(err))
	testutil.SeedOakSchool(t, repo)
}

func TestSchoolRepository_RejectsUnloadableRows(t *testing.T) {
	_, repo, oak := newRepo(t)
	ctx := context.Background()

	teacher := oak.TeacherA
	teacher.PIN = "12"
	student := oak.Students5A[0]
	student.RollNumber = " "

	tests := []struct {
		name      string
		call      func() error
		wantField string
	}{
		{"create teacher", func() error {
			_, err := repo.CreateTeacher(ctx, school.Teacher{SchoolID: oak.School.ID, Name: "Bilal", PIN: "abcd"})
			return err
		}, "pin"},
		{"update teacher", func() error {
			_, err := repo.UpdateTeacher(ctx, teacher)
			return err
		}, "pin"},
		{"create students", func() error {
			_, err := repo.CreateStudents(ctx, []school.Student{{SchoolID: oak.School.ID, Name: "Omar", RollNumber: "31"}, student})
			return err
		}, "students[1].roll_number"},
		{"update student", func() error {
			_, err := repo.UpdateStudent(ctx, student)
			return err
		}, "roll_number"},
		{"submission without class", func() error {
			_, err := repo.UpsertDailySubmission(ctx, school.DailySubmission{SchoolID: oak.School.ID, Date: "2024-03-01"})
			return err
		}, "class_name"},
		{"negative counts", func() error {
			_, err := repo.UpsertDailySubmission(ctx, school.DailySubmission{SchoolID: oak.School.ID, Date: "2024-03-01", ClassName: "5", AbsentStudents: -2})
			return err
		}, "absent_students"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			require.True(t, core.IsValidation(err), err)
			vErr, ok := err.(*core.ValidationError)
			require.True(t, ok)
			if assert.NotEmpty(t, vErr.Fields) {
				assert.Equal(t, tt.wantField, vErr.Fields[0].Field)
			}
		})
	}

	data, err := repo.GetSchoolData(ctx, oak.School.ID)
	require.NoError(t, err)
	assert.Len(t, data.Students, 30)
	assert.NoError(t, school.NewStore().LoadSchool(data))
}
