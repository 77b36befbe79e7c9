package school

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/frizwan636-dotcom/attendancepro/core"
)

// Role of a teacher account.
type Role string

const (
	RoleTeacher     Role = "teacher"
	RoleCoordinator Role = "coordinator"
)

func (r Role) Valid() bool {
	return r == RoleTeacher || r == RoleCoordinator
}

// AttendanceStatus of a student or teacher on a given day.
type AttendanceStatus string

const (
	Present AttendanceStatus = "Present"
	Absent  AttendanceStatus = "Absent"
)

func (s AttendanceStatus) Valid() bool {
	return s == Present || s == Absent
}

// FeeStatus is derived from a student's total fee and fee history.
type FeeStatus string

const (
	FeeUnpaid   FeeStatus = "Unpaid"
	FeePartial  FeeStatus = "Partial"
	FeePaid     FeeStatus = "Paid"
	FeeOverpaid FeeStatus = "Overpaid"
)

// SubmissionState of a class in the coordinator's daily summary.
type SubmissionState string

const (
	Submitted SubmissionState = "Submitted"
	Pending   SubmissionState = "Pending"
)

type School struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	PIN  string `json:"pin"`
}

// ClassRef identifies a class section within a school, eg. 5-A.
type ClassRef struct {
	ClassName string `json:"class_name"`
	Section   string `json:"section"`
}

func (c ClassRef) IsZero() bool {
	return c.ClassName == "" && c.Section == ""
}

// Equal compares class refs case-insensitively.
func (c ClassRef) Equal(other ClassRef) bool {
	return strings.EqualFold(c.ClassName, other.ClassName) && strings.EqualFold(c.Section, other.Section)
}

func (c ClassRef) key() string {
	return strings.ToLower(c.ClassName) + "|" + strings.ToLower(c.Section)
}

func (c ClassRef) String() string {
	if c.Section == "" {
		return c.ClassName
	}
	return c.ClassName + "-" + c.Section
}

type Teacher struct {
	ID            string `json:"id"`
	SchoolID      string `json:"school_id"`
	Name          string `json:"name"`
	Email         string `json:"email,omitempty"`
	PIN           string `json:"pin" validate:"pin"`
	Role          Role   `json:"role"`
	ClassName     string `json:"class_name"`
	Section       string `json:"section"`
	MobileNumber  string `json:"mobile_number"`
	SetupComplete bool   `json:"setup_complete"`
	Photo         string `json:"photo,omitempty"`
}

func (t Teacher) Class() ClassRef {
	return ClassRef{ClassName: t.ClassName, Section: t.Section}
}

func (t Teacher) IsCoordinator() bool {
	return t.Role == RoleCoordinator
}

type FeePayment struct {
	ID        string    `json:"id"`
	StudentID string    `json:"student_id"`
	Amount    float64   `json:"amount"`
	Date      time.Time `json:"date"` // UTC
}

type Student struct {
	ID           string       `json:"id"`
	SchoolID     string       `json:"school_id"`
	TeacherID    string       `json:"teacher_id"`
	Name         string       `json:"name"`
	FatherName   string       `json:"father_name,omitempty"`
	RollNumber   string       `json:"roll_number" validate:"required,notblank"`
	MobileNumber string       `json:"mobile_number"`
	TotalFee     float64      `json:"total_fee" validate:"gte=0"`
	FeeHistory   []FeePayment `json:"fee_history"`
	ClassName    string       `json:"class_name"`
	Section      string       `json:"section"`
	Photo        string       `json:"photo,omitempty"`
}

func (s Student) Class() ClassRef {
	return ClassRef{ClassName: s.ClassName, Section: s.Section}
}

func (s Student) clone() Student {
	hist := make([]FeePayment, len(s.FeeHistory))
	copy(hist, s.FeeHistory)
	s.FeeHistory = hist
	return s
}

type AttendanceRecord struct {
	SchoolID    string           `json:"school_id"`
	Date        string           `json:"date"` // YYYY-MM-DD
	TeacherID   string           `json:"teacher_id"`
	StudentID   string           `json:"student_id"`
	Status      AttendanceStatus `json:"status"`
	LastUpdated time.Time        `json:"last_updated"`
}

func (r AttendanceRecord) key() string {
	return r.Date + "|" + r.StudentID
}

type TeacherAttendanceRecord struct {
	SchoolID    string           `json:"school_id"`
	Date        string           `json:"date"` // YYYY-MM-DD
	TeacherID   string           `json:"teacher_id"`
	Status      AttendanceStatus `json:"status"`
	LastUpdated time.Time        `json:"last_updated"`
}

func (r TeacherAttendanceRecord) key() string {
	return r.Date + "|" + r.TeacherID
}

type DailySubmission struct {
	SchoolID            string    `json:"school_id"`
	Date                string    `json:"date" validate:"date"` // YYYY-MM-DD
	TeacherID           string    `json:"teacher_id"`
	ClassName           string    `json:"class_name" validate:"required,notblank"`
	Section             string    `json:"section"`
	TotalStudents       int       `json:"total_students" validate:"gte=0"`
	PresentStudents     int       `json:"present_students" validate:"gte=0"`
	AbsentStudents      int       `json:"absent_students" validate:"gte=0"`
	SubmissionTimestamp time.Time `json:"submission_timestamp"`
}

func (d DailySubmission) Class() ClassRef {
	return ClassRef{ClassName: d.ClassName, Section: d.Section}
}

func (d DailySubmission) key() string {
	return d.Date + "|" + d.Class().key()
}

// SchoolData is the full tenant dataset exchanged with the persistence gateway.
type SchoolData struct {
	School                   School                    `json:"school"`
	Teachers                 []Teacher                 `json:"teachers"`
	Students                 []Student                 `json:"students"`
	AttendanceRecords        []AttendanceRecord        `json:"attendance"`
	TeacherAttendanceRecords []TeacherAttendanceRecord `json:"teacher_attendance"`
	DailySubmissions         []DailySubmission         `json:"daily_submissions"`
}

// AuthSession is an authenticated coordinator session held by a gateway.
type AuthSession struct {
	UserID   string `json:"user_id"`
	SchoolID string `json:"school_id"`
	Email    string `json:"email"`
	Token    string `json:"token,omitempty"`
}

// NewCoordinator contains information needed to register a school and its coordinator.
type NewCoordinator struct {
	SchoolName      string `json:"school_name" validate:"required,notblank"`
	SchoolPIN       string `json:"school_pin" validate:"required,notblank"`
	Name            string `json:"name" validate:"required,notblank"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
	PIN             string `json:"pin" validate:"required,pin"`
	MobileNumber    string `json:"mobile_number" validate:"required,notblank"`
}

func (nc *NewCoordinator) Validate(validate *validator.Validate) error {
	nc.SchoolName = core.CleanString(nc.SchoolName)
	nc.SchoolPIN = core.CleanString(nc.SchoolPIN)
	nc.Name = core.CleanString(nc.Name)
	nc.Email = core.CleanString(nc.Email, true /* lower */)
	nc.PIN = core.CleanString(nc.PIN)
	nc.MobileNumber = core.CleanString(nc.MobileNumber)
	return validate.Struct(nc)
}

// NewTeacher contains information needed to add a teacher to the loaded school.
type NewTeacher struct {
	Name         string `json:"name" validate:"required,notblank"`
	Email        string `json:"email" validate:"omitempty,email"`
	PIN          string `json:"pin" validate:"omitempty,pin"`
	ClassName    string `json:"class_name" validate:"required_with=Section"`
	Section      string `json:"section"`
	MobileNumber string `json:"mobile_number" validate:"required,notblank"`
}

func (nt *NewTeacher) Validate(validate *validator.Validate) error {
	nt.Name = core.CleanString(nt.Name)
	nt.Email = core.CleanString(nt.Email, true /* lower */)
	nt.PIN = core.CleanString(nt.PIN)
	nt.ClassName = core.CleanString(nt.ClassName)
	nt.Section = core.CleanString(nt.Section)
	nt.MobileNumber = core.CleanString(nt.MobileNumber)
	return validate.Struct(nt)
}

// UpdateTeacher holds a partial update; blank fields keep their current value.
type UpdateTeacher struct {
	Name          string `json:"name"`
	Email         string `json:"email" validate:"omitempty,email"`
	PIN           string `json:"pin" validate:"omitempty,pin"`
	ClassName     string `json:"class_name"`
	Section       string `json:"section"`
	MobileNumber  string `json:"mobile_number"`
	SetupComplete *bool  `json:"setup_complete"`
	Photo         string `json:"photo"`
}

func (upd *UpdateTeacher) Validate(validate *validator.Validate, orig Teacher) (Teacher, error) {
	upd.Name = core.CleanString(upd.Name)
	upd.Email = core.CleanString(upd.Email, true /* lower */)
	upd.PIN = core.CleanString(upd.PIN)
	upd.ClassName = core.CleanString(upd.ClassName)
	upd.Section = core.CleanString(upd.Section)
	upd.MobileNumber = core.CleanString(upd.MobileNumber)
	if err := validate.Struct(upd); err != nil {
		return Teacher{}, err
	}

	t := orig
	if upd.Name != "" {
		t.Name = upd.Name
	}
	if upd.Email != "" {
		t.Email = upd.Email
	}
	if upd.PIN != "" {
		t.PIN = upd.PIN
	}
	if upd.ClassName != "" {
		t.ClassName = upd.ClassName
	}
	if upd.Section != "" {
		t.Section = upd.Section
	}
	if upd.MobileNumber != "" {
		t.MobileNumber = upd.MobileNumber
	}
	if upd.SetupComplete != nil {
		t.SetupComplete = *upd.SetupComplete
	}
	if upd.Photo != "" {
		t.Photo = upd.Photo
	}
	return t, nil
}

// NewStudent contains information needed to enrol a student.
type NewStudent struct {
	TeacherID    string  `json:"teacher_id"`
	Name         string  `json:"name" validate:"required,notblank"`
	FatherName   string  `json:"father_name"`
	RollNumber   string  `json:"roll_number" validate:"required,notblank"`
	MobileNumber string  `json:"mobile_number" validate:"required,notblank"`
	TotalFee     float64 `json:"total_fee" validate:"gte=0"`
	ClassName    string  `json:"class_name" validate:"required,notblank"`
	Section      string  `json:"section"`
	Photo        string  `json:"photo"`
}

func (ns *NewStudent) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	ns.FatherName = core.CleanString(ns.FatherName)
	ns.RollNumber = core.CleanString(ns.RollNumber)
	ns.MobileNumber = core.CleanString(ns.MobileNumber)
	ns.ClassName = core.CleanString(ns.ClassName)
	ns.Section = core.CleanString(ns.Section)
	return validate.Struct(ns)
}

// UpdateStudent holds a partial update; blank fields keep their current value.
type UpdateStudent struct {
	Name         string   `json:"name"`
	FatherName   string   `json:"father_name"`
	RollNumber   string   `json:"roll_number"`
	MobileNumber string   `json:"mobile_number"`
	TotalFee     *float64 `json:"total_fee" validate:"omitempty,gte=0"`
	ClassName    string   `json:"class_name"`
	Section      string   `json:"section"`
	Photo        string   `json:"photo"`
}

func (us *UpdateStudent) Validate(validate *validator.Validate, orig Student) (Student, error) {
	us.Name = core.CleanString(us.Name)
	us.FatherName = core.CleanString(us.FatherName)
	us.RollNumber = core.CleanString(us.RollNumber)
	us.MobileNumber = core.CleanString(us.MobileNumber)
	us.ClassName = core.CleanString(us.ClassName)
	us.Section = core.CleanString(us.Section)
	if err := validate.Struct(us); err != nil {
		return Student{}, err
	}

	s := orig.clone()
	if us.Name != "" {
		s.Name = us.Name
	}
	if us.FatherName != "" {
		s.FatherName = us.FatherName
	}
	if us.RollNumber != "" {
		s.RollNumber = us.RollNumber
	}
	if us.MobileNumber != "" {
		s.MobileNumber = us.MobileNumber
	}
	if us.TotalFee != nil {
		s.TotalFee = *us.TotalFee
	}
	if us.ClassName != "" {
		s.ClassName = us.ClassName
	}
	if us.Section != "" {
		s.Section = us.Section
	}
	if us.Photo != "" {
		s.Photo = us.Photo
	}
	return s, nil
}

// PasswordReset holds a coordinator's new password.
// Name and Email are only used to reject similar passwords.
type PasswordReset struct {
	Name            string `json:"-"`
	Email           string `json:"-"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (pr *PasswordReset) Validate(validate *validator.Validate) error {
	return validate.Struct(pr)
}
