package sqlxrepos_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frizwan636-dotcom/attendancepro/core"
	"github.com/frizwan636-dotcom/attendancepro/core/school"
	"github.com/frizwan636-dotcom/attendancepro/storage/database"
	"github.com/frizwan636-dotcom/attendancepro/storage/database/sqlx"
	"github.com/frizwan636-dotcom/attendancepro/tests"
)

// newRepo migrates the test database and empties it. Set TEST_POSTGRES=1 to run these tests.
func newRepo(t *testing.T) (school.Repository, testutil.OakSchool) {
	t.Helper()
	if os.Getenv("TEST_POSTGRES") == "" {
		t.Skip("TEST_POSTGRES is not set")
	}

	conf := core.NewTestConfig()
	require.NoError(t, database.CreateIfNotExist(conf))
	db, err := database.Open(conf)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	require.NoError(t, database.Migrate(ctx, db))
	_, err = db.ExecContext(ctx, "TRUNCATE schools CASCADE")
	require.NoError(t, err)

	repo := sqlxrepos.NewSchoolRepository(db)
	return repo, testutil.SeedOakSchool(t, repo)
}

func TestSchoolRepository_GetSchoolData(t *testing.T) {
	repo, oak := newRepo(t)
	ctx := context.Background()

	data, err := repo.GetSchoolData(ctx, oak.School.ID)
	require.NoError(t, err)
	assert.Equal(t, oak.School, data.School)
	if assert.Len(t, data.Teachers, 3) {
		assert.Equal(t, oak.Coordinator.ID, data.Teachers[0].ID)
		assert.Equal(t, oak.TeacherB.ID, data.Teachers[2].ID)
	}
	if assert.Len(t, data.Students, 30) {
		assert.Equal(t, "1", data.Students[0].RollNumber)
		assert.Equal(t, []school.FeePayment{}, data.Students[0].FeeHistory)
	}
	assert.Empty(t, data.AttendanceRecords)

	_, err = repo.GetSchoolData(ctx, "not-a-uuid")
	assert.True(t, core.IsNotFound(err))
	_, err = repo.GetSchoolData(ctx, "00000000-0000-0000-0000-000000000000")
	assert.True(t, core.IsNotFound(err))

	sch, err := repo.GetSchoolByPIN(ctx, testutil.OakSchoolPIN)
	require.NoError(t, err)
	assert.Equal(t, oak.School.ID, sch.ID)
	_, err = repo.GetSchoolByPIN(ctx, "nope")
	assert.True(t, core.IsNotFound(err))
}

func TestSchoolRepository_Conflicts(t *testing.T) {
	repo, oak := newRepo(t)
	ctx := context.Background()

	_, _, err := repo.CreateSchool(ctx,
		school.School{Name: "Copy", PIN: testutil.OakSchoolPIN},
		school.Teacher{Name: "X", Email: "x@copy.school", PIN: "1234", MobileNumber: "1"}, nil)
	require.True(t, core.IsConflict(err))
	assert.Equal(t, "school_pin", err.(*core.ConflictError).Field)

	_, _, err = repo.CreateSchool(ctx,
		school.School{Name: "Copy", PIN: "COPY-1"},
		school.Teacher{Name: "X", Email: "PRINCIPAL@oak.school", PIN: "1234", MobileNumber: "1"}, nil)
	require.True(t, core.IsConflict(err))
	assert.Equal(t, "email", err.(*core.ConflictError).Field)

	// the failed school was rolled back with its coordinator
	_, err = repo.GetSchoolByPIN(ctx, "COPY-1")
	assert.True(t, core.IsNotFound(err))

	dup := oak.Students5A[0]
	dup.ID = ""
	dup.RollNumber = "31"
	again := dup
	_, err = repo.CreateStudents(ctx, []school.Student{dup, again})
	require.True(t, core.IsConflict(err))
	assert.Equal(t, "roll_number", err.(*core.ConflictError).Field)

	data, err := repo.GetSchoolData(ctx, oak.School.ID)
	require.NoError(t, err)
	assert.Len(t, data.Students, 30)

	_, err = repo.UpdateSchoolPIN(ctx, oak.School.ID, testutil.OakSchoolPIN)
	require.NoError(t, err)
	sch, err := repo.UpdateSchoolPIN(ctx, oak.School.ID, "OAK-2025")
	require.NoError(t, err)
	assert.Equal(t, "OAK-2025", sch.PIN)
}

func TestSchoolRepository_Credentials(t *testing.T) {
	repo, oak := newRepo(t)
	ctx := context.Background()

	coord, hash, err := repo.GetCredentials(ctx, "Principal@Oak.School")
	require.NoError(t, err)
	assert.Equal(t, oak.Coordinator.ID, coord.ID)
	assert.NoError(t, school.CheckPassword(hash, testutil.OakPassword))

	require.NoError(t, repo.SetPasswordHash(ctx, coord.ID, []byte("x")))
	_, hash, err = repo.GetCredentials(ctx, testutil.OakEmail)
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), hash)

	assert.True(t, core.IsNotFound(repo.SetPasswordHash(ctx, "00000000-0000-0000-0000-000000000000", nil)))
}

func TestSchoolRepository_AttendanceAndFees(t *testing.T) {
	repo, oak := newRepo(t)
	ctx := context.Background()
	st := oak.Students5A[0]

	recs := []school.AttendanceRecord{
		{Date: "2024-03-01", TeacherID: oak.TeacherA.ID, StudentID: st.ID, Status: school.Present},
	}
	_, err := repo.UpsertAttendance(ctx, oak.School.ID, recs)
	require.NoError(t, err)
	recs[0].Status = school.Absent
	_, err = repo.UpsertAttendance(ctx, oak.School.ID, recs)
	require.NoError(t, err)

	_, err = repo.UpsertAttendance(ctx, oak.School.ID, []school.AttendanceRecord{
		{Date: "2024-03-01", StudentID: "00000000-0000-0000-0000-000000000000", Status: school.Present},
	})
	assert.True(t, core.IsNotFound(err))

	_, err = repo.UpsertDailySubmission(ctx, school.DailySubmission{
		SchoolID: oak.School.ID, Date: "2024-03-01", ClassName: "5", Section: "A", TotalStudents: 20, PresentStudents: 19, AbsentStudents: 1,
	})
	require.NoError(t, err)
	_, err = repo.UpsertDailySubmission(ctx, school.DailySubmission{
		SchoolID: oak.School.ID, Date: "2024-03-01", ClassName: "5", Section: "a", TotalStudents: 20, PresentStudents: 18, AbsentStudents: 2,
	})
	require.NoError(t, err)

	paidAt := time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC)
	p, err := repo.CreateFeePayment(ctx, oak.School.ID, school.FeePayment{StudentID: st.ID, Amount: 400, Date: paidAt})
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	_, err = repo.CreateFeePayment(ctx, oak.School.ID, school.FeePayment{StudentID: st.ID, Amount: 0})
	assert.True(t, core.IsValidation(err))

	data, err := repo.GetSchoolData(ctx, oak.School.ID)
	require.NoError(t, err)
	if assert.Len(t, data.AttendanceRecords, 1) {
		assert.Equal(t, school.Absent, data.AttendanceRecords[0].Status)
		assert.Equal(t, "2024-03-01", data.AttendanceRecords[0].Date)
	}
	if assert.Len(t, data.DailySubmissions, 1) {
		assert.Equal(t, 18, data.DailySubmissions[0].PresentStudents)
	}
	if assert.Len(t, data.Students[0].FeeHistory, 1) {
		assert.Equal(t, 400.0, data.Students[0].FeeHistory[0].Amount)
		assert.True(t, paidAt.Equal(data.Students[0].FeeHistory[0].Date))
	}

	require.NoError(t, repo.DeleteStudent(ctx, oak.School.ID, st.ID))
	assert.True(t, core.IsNotFound(repo.DeleteStudent(ctx, oak.School.ID, st.ID)))
	data, err = repo.GetSchoolData(ctx, oak.School.ID)
	require.NoError(t, err)
	assert.Empty(t, data.AttendanceRecords)
	assert.Len(t, data.Students, 29)
}

func TestSchoolRepository_CreateStudentsReturnsStored(t *testing.T) {
	repo, oak := newRepo(t)
	ctx := context.Background()

	created, err := repo.CreateStudents(ctx, []school.Student{{
		SchoolID: oak.School.ID, TeacherID: "teacher-1", Name: "Zara", RollNumber: "31",
		TotalFee: 100.555, ClassName: "5", Section: "A",
	}})
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, "", created[0].TeacherID, "non uuid teacher ids are stored as NULL")
	assert.Equal(t, 100.56, created[0].TotalFee)
	assert.Equal(t, []school.FeePayment{}, created[0].FeeHistory)

	data, err := repo.GetSchoolData(ctx, oak.School.ID)
	require.NoError(t, err)
	assert.Equal(t, created[0], data.Students[len(data.Students)-1])

	tests := []struct {
		name string
		st   school.Student
	}{
		{"blank roll number", school.Student{SchoolID: oak.School.ID, Name: "Omar", RollNumber: "  ", ClassName: "5"}},
		{"negative fee", school.Student{SchoolID: oak.School.ID, Name: "Omar", RollNumber: "32", TotalFee: -1, ClassName: "5"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := repo.CreateStudents(ctx, []school.Student{tt.st})
			assert.True(t, core.IsValidation(err), err)
		})
	}

	_, err = repo.UpsertDailySubmission(ctx, school.DailySubmission{SchoolID: oak.School.ID, Date: "2024-03-01", ClassName: " "})
	assert.True(t, core.IsValidation(err), err)
}
