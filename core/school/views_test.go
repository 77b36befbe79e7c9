package school_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frizwan636-dotcom/attendancepro/core"
	"github.com/frizwan636-dotcom/attendancepro/core/school"
	"github.com/frizwan636-dotcom/attendancepro/tests"
)

const (
	day1 = "2024-03-01"
	day2 = "2024-03-02"
	day3 = "2024-04-02"
)

func setup(t *testing.T) (*testutil.Env, testutil.OakSchool) {
	env := testutil.NewEnv(t)
	oak := testutil.SeedOakSchool(t, env.Repo)
	env.Load(t, oak.School.ID)
	return env, oak
}

func TestComputeFeeStatus(t *testing.T) {
	tests := []struct {
		name  string
		total float64
		paid  float64
		want  school.FeeStatus
	}{
		{name: "nothing paid", total: 1000, paid: 0, want: school.FeeUnpaid},
		{name: "partial", total: 1000, paid: 800, want: school.FeePartial},
		{name: "exact", total: 1000, paid: 1000, want: school.FeePaid},
		{name: "overpaid", total: 500, paid: 600, want: school.FeeOverpaid},
		{name: "free", total: 0, paid: 0, want: school.FeePaid},
		{name: "free but paid", total: 0, paid: 10, want: school.FeeOverpaid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, school.ComputeFeeStatus(tt.total, tt.paid))
		})
	}
}

func TestPercentage(t *testing.T) {
	tests := []struct {
		part, total, want int
	}{
		{part: 18, total: 20, want: 90},
		{part: 0, total: 0, want: 0},
		{part: 1, total: 3, want: 33},
		{part: 2, total: 3, want: 67},
		{part: 1, total: 8, want: 13},
		{part: 5, total: 5, want: 100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, school.Percentage(tt.part, tt.total), "%d/%d", tt.part, tt.total)
	}
}

func TestStore_LoadSchool(t *testing.T) {
	env, oak := setup(t)
	store := env.Store

	sch, ok := store.School()
	assert.True(t, ok)
	assert.Equal(t, oak.School, sch)
	assert.Len(t, store.Teachers(), 3)
	assert.Len(t, store.Students(), 30)

	coord, ok := store.Coordinator()
	assert.True(t, ok)
	assert.Equal(t, oak.Coordinator.ID, coord.ID)

	assert.Equal(t, []school.ClassRef{oak.Class5A(), oak.Class5B()}, store.Classes())

	owner, ok := store.ClassOwner(school.ClassRef{ClassName: "5", Section: "a"})
	assert.True(t, ok, "class lookups ignore case")
	assert.Equal(t, oak.TeacherA.ID, owner.ID)
}

func TestStore_LoadSchoolRejectsMalformedData(t *testing.T) {
	env, oak := setup(t)
	good := env.Store.Snapshot()
	version := env.Store.Version()

	clone := func() school.SchoolData {
		data := good
		data.Teachers = append([]school.Teacher(nil), good.Teachers...)
		data.Students = append([]school.Student(nil), good.Students...)
		return data
	}

	tests := []struct {
		name   string
		mutate func(data *school.SchoolData)
		field  string
	}{
		{
			name:   "missing school",
			mutate: func(data *school.SchoolData) { data.School.ID = "" },
			field:  "school.id",
		},
		{
			name:   "duplicate roll ignoring case",
			mutate: func(data *school.SchoolData) { data.Students[1].RollNumber = " " + data.Students[0].RollNumber },
			field:  "students[1].roll_number",
		},
		{
			name:   "bad PIN",
			mutate: func(data *school.SchoolData) { data.Teachers[1].PIN = "12a4" },
			field:  "teachers[1].pin",
		},
		{
			name:   "other tenant",
			mutate: func(data *school.SchoolData) { data.Students[2].SchoolID = "another-school" },
			field:  "students[2].school_id",
		},
		{
			name:   "two coordinators",
			mutate: func(data *school.SchoolData) { data.Teachers[2].Role = school.RoleCoordinator },
			field:  "teachers",
		},
		{
			name: "bad attendance status",
			mutate: func(data *school.SchoolData) {
				data.AttendanceRecords = []school.AttendanceRecord{{Date: day1, StudentID: oak.Students5A[0].ID, Status: "Late"}}
			},
			field: "attendance[0].status",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := clone()
			tt.mutate(&data)
			err := env.Store.LoadSchool(data)
			require.Error(t, err)
			require.True(t, core.IsValidation(err))

			var fields []string
			for _, f := range err.(*core.ValidationError).Fields {
				fields = append(fields, f.Field)
			}
			assert.Contains(t, fields, tt.field)

			// nothing applied
			assert.Equal(t, version, env.Store.Version())
			assert.Len(t, env.Store.Students(), 30)
		})
	}
}

func TestStore_LoadRoundTrip(t *testing.T) {
	env, oak := setup(t)
	ctx := context.Background()
	st := oak.Students5A[0]

	for _, amount := range []float64{400, 400} {
		_, err := env.Service.RecordFeePayment(ctx, st.ID, amount)
		require.NoError(t, err)
	}

	data, err := env.Repo.GetSchoolData(ctx, oak.School.ID)
	require.NoError(t, err)
	fresh := school.NewStore()
	require.NoError(t, fresh.LoadSchool(data))

	for _, store := range []*school.Store{env.Store, fresh} {
		sum, ok := store.FeeSummary(st.ID)
		require.True(t, ok)
		assert.Equal(t, 1000.0, sum.TotalFee)
		assert.Equal(t, 800.0, sum.FeePaid)
		assert.Equal(t, 200.0, sum.FeeDue)
		assert.Equal(t, school.FeePartial, sum.Status)
		assert.Equal(t, 2, sum.Payments)
	}
	assert.Equal(t, env.Store.Snapshot(), fresh.Snapshot())
}

func TestStore_Clear(t *testing.T) {
	env, oak := setup(t)
	version := env.Store.Version()

	env.Store.Clear()
	assert.False(t, env.Store.IsLoaded())
	assert.Greater(t, env.Store.Version(), version)
	assert.Empty(t, env.Store.Teachers())
	assert.Empty(t, env.Store.Students())
	assert.Empty(t, env.Store.Roster(oak.Class5A()))
	_, ok := env.Store.School()
	assert.False(t, ok)

	// mutations need a school
	_, err := env.Service.RecordFeePayment(context.Background(), oak.Students5A[0].ID, 10)
	assert.True(t, core.IsNotFound(err))
	assert.Zero(t, env.Mock.TotalCalls())
}

func TestStore_Roster(t *testing.T) {
	env, oak := setup(t)

	roster := env.Store.Roster(oak.Class5A())
	require.Len(t, roster, 20)
	rolls := make([]string, 0, len(roster))
	for _, st := range roster[:11] {
		rolls = append(rolls, st.RollNumber)
	}
	assert.Equal(t, []string{"1", "2", "3", "4", "5", "6", "7", "8", "9", "10", "11"}, rolls, "numeric roll order")

	assert.Len(t, env.Store.Roster(oak.Class5B()), 10)
	assert.Empty(t, env.Store.Roster(school.ClassRef{ClassName: "6"}))

	// memoized views hand out copies
	roster[0].Name = "changed"
	assert.NotEqual(t, "changed", env.Store.Roster(oak.Class5A())[0].Name)
}

func TestStore_DailySummary(t *testing.T) {
	env, oak := setup(t)
	ctx := context.Background()
	class := oak.Class5A()

	statuses := testutil.Statuses(oak.Students5A, 18)
	_, err := env.Service.SaveAttendance(ctx, oak.TeacherA.ID, day1, statuses)
	require.NoError(t, err)
	_, err = env.Service.SubmitAttendanceToCoordinator(ctx, oak.TeacherA.ID, day1, class, env.Store.Roster(class), statuses)
	require.NoError(t, err)

	sum := env.Store.DailySummary(day1)
	assert.Equal(t, day1, sum.Date)
	require.Len(t, sum.Classes, 2)

	a := sum.Classes[0]
	assert.Equal(t, oak.TeacherA.ID, a.TeacherID)
	assert.Equal(t, school.Submitted, a.State)
	assert.Equal(t, 20, a.TotalStudents)
	assert.Equal(t, 18, a.PresentStudents)
	assert.Equal(t, 2, a.AbsentStudents)
	assert.Equal(t, 90, a.Percentage)
	assert.NotNil(t, a.SubmittedAt)

	b := sum.Classes[1]
	assert.Equal(t, oak.TeacherB.ID, b.TeacherID)
	assert.Equal(t, school.Pending, b.State)
	assert.Zero(t, b.TotalStudents)
	assert.Nil(t, b.SubmittedAt)

	assert.Equal(t, 1, sum.SubmittedCount)
	assert.Equal(t, 1, sum.PendingCount)
	assert.Equal(t, 20, sum.TotalStudents)
	assert.Equal(t, 18, sum.PresentStudents)
	assert.Equal(t, 2, sum.AbsentStudents)
	assert.Equal(t, 90, sum.Percentage)

	// another day is untouched
	other := env.Store.DailySummary(day2)
	assert.Equal(t, 0, other.SubmittedCount)
	assert.Equal(t, 2, other.PendingCount)
	assert.Equal(t, 0, other.Percentage)
}

func TestStore_FeeViews(t *testing.T) {
	env, oak := setup(t)
	ctx := context.Background()

	created, err := env.Service.AddStudents(ctx, []school.NewStudent{{
		Name: "Zara", RollNumber: "31", MobileNumber: "0300", TotalFee: 500, ClassName: "5", Section: "A",
	}})
	require.NoError(t, err)
	zara := created[0]
	for _, amount := range []float64{300, 300} {
		_, err = env.Service.RecordFeePayment(ctx, zara.ID, amount)
		require.NoError(t, err)
	}
	_, err = env.Service.RecordFeePayment(ctx, oak.Students5A[0].ID, 1000)
	require.NoError(t, err)

	sum, ok := env.Store.FeeSummary(zara.ID)
	require.True(t, ok)
	assert.Equal(t, 600.0, sum.FeePaid)
	assert.Equal(t, -100.0, sum.FeeDue)
	assert.Equal(t, school.FeeOverpaid, sum.Status)

	sums := env.Store.FeeSummaries(oak.Class5A())
	require.Len(t, sums, 21)
	assert.Equal(t, school.FeePaid, sums[0].Status)
	assert.Equal(t, school.FeeUnpaid, sums[1].Status)
	assert.Equal(t, zara.ID, sums[20].StudentID)

	class := oak.Class5A()
	defaulters := env.Store.FeeDefaulters(&class)
	assert.Len(t, defaulters, 19, "paid and overpaid students are not defaulters")
	assert.Len(t, env.Store.FeeDefaulters(nil), 29)
}

func TestStore_RangeReport(t *testing.T) {
	env, oak := setup(t)
	ctx := context.Background()
	first := oak.Students5A[:2]

	for _, date := range []string{day1, day2, day3} {
		_, err := env.Service.SaveAttendance(ctx, oak.TeacherA.ID, date, testutil.Statuses(first, 1))
		require.NoError(t, err)
	}
	_, err := env.Service.SaveAttendance(ctx, oak.TeacherB.ID, day1, testutil.Statuses(oak.Students5B[:1], 1))
	require.NoError(t, err)

	class := oak.Class5A()
	reports, err := env.Store.RangeReport(school.ReportFilter{From: "2024-03-01", To: "2024-04-30", Class: &class})
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, "2024-03", reports[0].Month)
	assert.Equal(t, "2024-04", reports[1].Month)

	march := reports[0].Rows
	require.Len(t, march, 2)
	assert.Equal(t, first[0].ID, march[0].ID)
	assert.Equal(t, 2, march[0].Present)
	assert.Equal(t, 0, march[0].Absent)
	assert.Equal(t, 100, march[0].Percentage)
	assert.Equal(t, first[1].ID, march[1].ID)
	assert.Equal(t, 2, march[1].Absent)
	assert.Equal(t, 0, march[1].Percentage)

	all, err := env.Store.RangeReport(school.ReportFilter{From: day1, To: day1})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Len(t, all[0].Rows, 3, "no class filter")

	assert.Equal(t, 100, env.Store.StudentAttendancePercentage(first[0].ID))
	assert.Equal(t, 0, env.Store.StudentAttendancePercentage(first[1].ID))

	tests := []struct {
		name   string
		filter school.ReportFilter
	}{
		{name: "bad from", filter: school.ReportFilter{From: "03/01/2024", To: day2}},
		{name: "bad to", filter: school.ReportFilter{From: day1, To: "2024-13-01"}},
		{name: "reversed", filter: school.ReportFilter{From: day2, To: day1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.Store.RangeReport(tt.filter)
			assert.True(t, core.IsValidation(err))
			_, err = env.Store.TeacherRangeReport(tt.filter)
			assert.True(t, core.IsValidation(err))
		})
	}
}

func TestStore_MemoizedViewsFollowMutations(t *testing.T) {
	env, oak := setup(t)
	ctx := context.Background()

	before := env.Store.DailySummary(day1)
	assert.Equal(t, before, env.Store.DailySummary(day1))

	class := oak.Class5B()
	statuses := testutil.Statuses(oak.Students5B, 5)
	_, err := env.Service.SubmitAttendanceToCoordinator(ctx, oak.TeacherB.ID, day1, class, env.Store.Roster(class), statuses)
	require.NoError(t, err)

	after := env.Store.DailySummary(day1)
	assert.Equal(t, 1, after.SubmittedCount)
	assert.Equal(t, 50, after.Percentage)
}
