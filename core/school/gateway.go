package school

import "context"

type (
	// Gateway is the client-side contract to the remote persistence backend.
	// Implementations return the typed errors of package core:
	// AuthError, NetworkError, NotFoundError, ConflictError and ValidationError.
	Gateway interface {
		SignUp(ctx context.Context, nc NewCoordinator) (AuthSession, error)
		SignIn(ctx context.Context, email, password string) (AuthSession, error)
		SignOut(ctx context.Context) error
		// CurrentSession returns nil when nobody is signed in.
		CurrentSession(ctx context.Context) (*AuthSession, error)

		GetSchoolByPIN(ctx context.Context, pin string) (School, error)
		GetAllDataForSchool(ctx context.Context, schoolID string) (SchoolData, error)

		CreateTeacher(ctx context.Context, t Teacher) (Teacher, error)
		UpdateTeacher(ctx context.Context, t Teacher) (Teacher, error)
		DeleteTeacher(ctx context.Context, schoolID, teacherID string) error

		CreateStudents(ctx context.Context, students []Student) ([]Student, error)
		UpdateStudent(ctx context.Context, s Student) (Student, error)
		DeleteStudent(ctx context.Context, schoolID, studentID string) error
		RecordFeePayment(ctx context.Context, schoolID string, p FeePayment) (FeePayment, error)

		UpsertAttendance(ctx context.Context, schoolID string, records []AttendanceRecord) ([]AttendanceRecord, error)
		UpsertTeacherAttendance(ctx context.Context, schoolID string, records []TeacherAttendanceRecord) ([]TeacherAttendanceRecord, error)
		UpsertDailySubmission(ctx context.Context, sub DailySubmission) (DailySubmission, error)

		UpdateSchoolPIN(ctx context.Context, schoolID, pin string) (School, error)
	}

	// Repository is the authoritative relational store behind a gateway.
	// It owns id generation, uniqueness constraints and natural-key upserts.
	Repository interface {
		CreateSchool(ctx context.Context, s School, coordinator Teacher, passwordHash []byte) (School, Teacher, error)
		GetSchool(ctx context.Context, schoolID string) (School, error)
		GetSchoolByPIN(ctx context.Context, pin string) (School, error)
		GetSchoolData(ctx context.Context, schoolID string) (SchoolData, error)
		UpdateSchoolPIN(ctx context.Context, schoolID, pin string) (School, error)

		// GetCredentials looks a coordinator up by email.
		GetCredentials(ctx context.Context, email string) (Teacher, []byte, error)
		SetPasswordHash(ctx context.Context, teacherID string, hash []byte) error

		CreateTeacher(ctx context.Context, t Teacher) (Teacher, error)
		UpdateTeacher(ctx context.Context, t Teacher) (Teacher, error)
		DeleteTeacher(ctx context.Context, schoolID, teacherID string) error

		CreateStudents(ctx context.Context, students []Student) ([]Student, error)
		UpdateStudent(ctx context.Context, s Student) (Student, error)
		DeleteStudent(ctx context.Context, schoolID, studentID string) error
		CreateFeePayment(ctx context.Context, schoolID string, p FeePayment) (FeePayment, error)

		UpsertAttendance(ctx context.Context, schoolID string, records []AttendanceRecord) ([]AttendanceRecord, error)
		UpsertTeacherAttendance(ctx context.Context, schoolID string, records []TeacherAttendanceRecord) ([]TeacherAttendanceRecord, error)
		UpsertDailySubmission(ctx context.Context, sub DailySubmission) (DailySubmission, error)
	}

	// CachedState is what the local cache remembers between runs.
	CachedState struct {
		Data           SchoolData
		LoggedInUserID string
		SchoolPIN      string
	}

	// LocalCache persists a snapshot of the entity store on the device.
	// Load reports false when there is no usable snapshot.
	LocalCache interface {
		Load(ctx context.Context) (CachedState, bool)
		Save(ctx context.Context, state CachedState) error
		Clear(ctx context.Context) error
	}
)
