package testutil

import (
	"context"
	"fmt"
	"io/ioutil"
	"log"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/frizwan636-dotcom/attendancepro/core"
	"github.com/frizwan636-dotcom/attendancepro/core/school"
	"github.com/frizwan636-dotcom/attendancepro/services/gateway/local"
	"github.com/frizwan636-dotcom/attendancepro/services/logger"
	"github.com/frizwan636-dotcom/attendancepro/storage/database/inmem"
)

const (
	OakSchoolPIN      = "OAK-2024"
	OakEmail          = "principal@oak.school"
	OakPassword       = "Kx9#mQ2v!pL"
	OakCoordinatorPIN = "9999"
	OakTeacherAPIN    = "1111"
	OakTeacherBPIN    = "2222"
)

func init() {
	school.HashCost = bcrypt.MinCost
}

// NewLogger returns a logger that prints nothing and never reports.
func NewLogger() core.Logger {
	conf := core.NewTestConfig()
	conf.RollbarToken = ""
	return logsvc.NewRollbarLogger(log.New(ioutil.Discard, "", 0), conf)
}

// Env wires a service stack over an in-memory database.
type Env struct {
	DB      *inmemdb.DB
	Repo    school.Repository
	Gateway *localgw.Gateway
	Mock    *school.GatewayMock
	Store   *school.Store
	Service *school.Service
	Logger  core.Logger
}

func NewEnv(t *testing.T) *Env {
	t.Helper()
	db := inmemdb.Open()
	repo := inmemdb.NewSchoolRepository(db)
	validate, translator := school.NewValidator()
	gw := localgw.New(repo, validate, translator)
	mock := school.NewGatewayMock(gw)
	logger := NewLogger()
	store := school.NewStore()
	return &Env{
		DB:      db,
		Repo:    repo,
		Gateway: gw,
		Mock:    mock,
		Store:   store,
		Service: school.NewService(store, mock, validate, translator, logger),
		Logger:  logger,
	}
}

// Load pulls the whole school into the env store.
func (env *Env) Load(t *testing.T, schoolID string) {
	t.Helper()
	data, err := env.Repo.GetSchoolData(context.Background(), schoolID)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if err = env.Store.LoadSchool(data); err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	env.Mock.Reset()
}

// OakSchool is a small school with two class teachers:
// 5-A has 20 students (rolls 1-20) and 5-B has 10 (rolls 21-30).
type OakSchool struct {
	School      school.School
	Coordinator school.Teacher
	TeacherA    school.Teacher
	TeacherB    school.Teacher
	Students5A  []school.Student
	Students5B  []school.Student
}

func (oak OakSchool) Class5A() school.ClassRef { return oak.TeacherA.Class() }
func (oak OakSchool) Class5B() school.ClassRef { return oak.TeacherB.Class() }

func SeedOakSchool(t *testing.T, repo school.Repository) OakSchool {
	t.Helper()
	ctx := context.Background()

	hash, err := school.HashPassword(OakPassword)
	if err != nil {
		t.Fatalf("SeedOakSchool() failed: %v", err)
	}
	sch, coord, err := repo.CreateSchool(
		ctx,
		school.School{Name: "Oak School", PIN: OakSchoolPIN},
		school.Teacher{
			Name:          "Amina Okafor",
			Email:         OakEmail,
			PIN:           OakCoordinatorPIN,
			Role:          school.RoleCoordinator,
			MobileNumber:  "+923001234567",
			SetupComplete: true,
		},
		hash,
	)
	if err != nil {
		t.Fatalf("SeedOakSchool() failed: %v", err)
	}

	oak := OakSchool{School: sch, Coordinator: coord}
	oak.TeacherA = CreateTeacher(t, repo, sch.ID, "Ali Khan", OakTeacherAPIN, "5", "A")
	oak.TeacherB = CreateTeacher(t, repo, sch.ID, "Sara Ahmed", OakTeacherBPIN, "5", "B")
	oak.Students5A = CreateStudents(t, repo, oak.TeacherA, 1, 20, 1000)
	oak.Students5B = CreateStudents(t, repo, oak.TeacherB, 21, 10, 1000)
	return oak
}

func CreateTeacher(t *testing.T, repo school.Repository, schoolID, name, pin, className, section string) school.Teacher {
	t.Helper()
	teacher, err := repo.CreateTeacher(context.Background(), school.Teacher{
		SchoolID:      schoolID,
		Name:          name,
		PIN:           pin,
		Role:          school.RoleTeacher,
		ClassName:     className,
		Section:       section,
		MobileNumber:  "+923000000000",
		SetupComplete: className != "",
	})
	if err != nil {
		t.Fatalf("CreateTeacher() failed: %v", err)
	}
	return teacher
}

// CreateStudents enrols n students of owner's class with consecutive roll numbers from firstRoll.
func CreateStudents(t *testing.T, repo school.Repository, owner school.Teacher, firstRoll, n int, fee float64) []school.Student {
	t.Helper()
	batch := make([]school.Student, 0, n)
	for i := 0; i < n; i++ {
		roll := firstRoll + i
		batch = append(batch, school.Student{
			SchoolID:     owner.SchoolID,
			TeacherID:    owner.ID,
			Name:         fmt.Sprintf("Student %d", roll),
			FatherName:   fmt.Sprintf("Father %d", roll),
			RollNumber:   fmt.Sprint(roll),
			MobileNumber: fmt.Sprintf("+9230000%05d", roll),
			TotalFee:     fee,
			ClassName:    owner.ClassName,
			Section:      owner.Section,
		})
	}
	students, err := repo.CreateStudents(context.Background(), batch)
	if err != nil {
		t.Fatalf("CreateStudents() failed: %v", err)
	}
	return students
}

// Statuses marks the first `present` students Present and the rest Absent.
func Statuses(students []school.Student, present int) map[string]school.AttendanceStatus {
	m := make(map[string]school.AttendanceStatus, len(students))
	for i, st := range students {
		if i < present {
			m[st.ID] = school.Present
		} else {
			m[st.ID] = school.Absent
		}
	}
	return m
}
