package inmemdb

import (
	"sync"

	"github.com/frizwan636-dotcom/attendancepro/core/school"
)

type (
	// DB is a process-local stand-in for the relational store.
	// All tables share one lock so cascades stay consistent.
	DB struct {
		mutex sync.RWMutex
		seq   int64

		schools           map[string]*school.School
		teachers          map[string]*teacherRow
		students          map[string]*studentRow
		attendance        map[string]*school.AttendanceRecord        // {schoolID|date|studentID: record}
		teacherAttendance map[string]*school.TeacherAttendanceRecord // {schoolID|date|teacherID: record}
		submissions       map[string]*school.DailySubmission         // {schoolID|date|class|section: submission}
	}

	teacherRow struct {
		school.Teacher
		passwordHash []byte
		seq          int64
	}

	studentRow struct {
		school.Student
		seq int64
	}
)

func Open() *DB {
	return &DB{
		schools:           make(map[string]*school.School),
		teachers:          make(map[string]*teacherRow),
		students:          make(map[string]*studentRow),
		attendance:        make(map[string]*school.AttendanceRecord),
		teacherAttendance: make(map[string]*school.TeacherAttendanceRecord),
		submissions:       make(map[string]*school.DailySubmission),
	}
}

// next must be called with the write lock held.
func (db *DB) next() int64 {
	db.seq++
	return db.seq
}

// Reset drops every row.
func (db *DB) Reset() {
	fresh := Open()
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.seq = 0
	db.schools = fresh.schools
	db.teachers = fresh.teachers
	db.students = fresh.students
	db.attendance = fresh.attendance
	db.teacherAttendance = fresh.teacherAttendance
	db.submissions = fresh.submissions
}
