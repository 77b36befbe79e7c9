package school

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/frizwan636-dotcom/attendancepro/core"
)

var errMalformedData = errors.New("malformed school data")

type (
	// Store holds the entity sets of the loaded school and serves derived views.
	// Views are memoized per version; every mutation bumps the version.
	Store struct {
		mu      sync.RWMutex
		version uint64
		loaded  bool
		st      state

		memoMu sync.Mutex
		memo   map[string]memoEntry
	}

	state struct {
		school            School
		teachers          []Teacher
		students          []Student
		attendance        map[string]AttendanceRecord        // {date|studentID: record}
		teacherAttendance map[string]TeacherAttendanceRecord // {date|teacherID: record}
		submissions       map[string]DailySubmission         // {date|class|section: submission}
	}

	memoEntry struct {
		version uint64
		value   interface{}
	}
)

func NewStore() *Store {
	return &Store{}
}

// LoadSchool atomically replaces the whole entity set.
// Nothing is applied when any entity is malformed.
func (s *Store) LoadSchool(data SchoolData) error {
	next, err := buildState(data)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.st = next
	s.loaded = true
	s.bump()
	return nil
}

// Clear drops everything, leaving the store as if nothing was ever loaded.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st = state{}
	s.loaded = false
	s.bump()
}

func (s *Store) IsLoaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Snapshot returns a deep copy of the loaded entities, sorted for stable output.
func (s *Store) Snapshot() SchoolData {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data := SchoolData{
		School:                   s.st.school,
		Teachers:                 make([]Teacher, len(s.st.teachers)),
		Students:                 make([]Student, 0, len(s.st.students)),
		AttendanceRecords:        make([]AttendanceRecord, 0, len(s.st.attendance)),
		TeacherAttendanceRecords: make([]TeacherAttendanceRecord, 0, len(s.st.teacherAttendance)),
		DailySubmissions:         make([]DailySubmission, 0, len(s.st.submissions)),
	}
	copy(data.Teachers, s.st.teachers)
	for _, st := range s.st.students {
		data.Students = append(data.Students, st.clone())
	}
	for _, k := range sortedKeys(s.st.attendance) {
		data.AttendanceRecords = append(data.AttendanceRecords, s.st.attendance[k])
	}
	for _, k := range sortedKeys(s.st.teacherAttendance) {
		data.TeacherAttendanceRecords = append(data.TeacherAttendanceRecords, s.st.teacherAttendance[k])
	}
	for _, k := range sortedKeys(s.st.submissions) {
		data.DailySubmissions = append(data.DailySubmissions, s.st.submissions[k])
	}
	return data
}

// bump must be called with s.mu held for writing.
func (s *Store) bump() {
	s.version++
	s.memoMu.Lock()
	s.memo = nil
	s.memoMu.Unlock()
}

// cached must be called with s.mu held for reading.
func (s *Store) cached(key string, compute func() interface{}) interface{} {
	s.memoMu.Lock()
	e, ok := s.memo[key]
	s.memoMu.Unlock()
	if ok && e.version == s.version {
		return e.value
	}

	v := compute()

	s.memoMu.Lock()
	if s.memo == nil {
		s.memo = make(map[string]memoEntry)
	}
	s.memo[key] = memoEntry{version: s.version, value: v}
	s.memoMu.Unlock()
	return v
}

// Merge operations. They apply server-confirmed records only and
// are ignored once the store was cleared or switched to another school.

func (s *Store) accepts(schoolID string) bool {
	return s.loaded && schoolID == s.st.school.ID
}

func (s *Store) putTeacher(t Teacher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.accepts(t.SchoolID) {
		return
	}

	teachers := make([]Teacher, 0, len(s.st.teachers)+1)
	var replaced bool
	for _, cur := range s.st.teachers {
		if cur.ID == t.ID {
			cur, replaced = t, true
		}
		teachers = append(teachers, cur)
	}
	if !replaced {
		teachers = append(teachers, t)
	}
	s.st.teachers = teachers
	s.bump()
}

func (s *Store) deleteTeacher(schoolID, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.accepts(schoolID) {
		return
	}

	teachers := make([]Teacher, 0, len(s.st.teachers))
	for _, cur := range s.st.teachers {
		if cur.ID != id {
			teachers = append(teachers, cur)
		}
	}
	s.st.teachers = teachers
	for k, rec := range s.st.teacherAttendance {
		if rec.TeacherID == id {
			delete(s.st.teacherAttendance, k)
		}
	}
	s.bump()
}

// putStudents inserts new students or replaces existing ones.
// The in-memory fee history of a known student always wins.
func (s *Store) putStudents(sts ...Student) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(sts) == 0 || !s.accepts(sts[0].SchoolID) {
		return
	}

	idx := make(map[string]int, len(s.st.students))
	students := make([]Student, len(s.st.students), len(s.st.students)+len(sts))
	for i, cur := range s.st.students {
		idx[cur.ID] = i
		students[i] = cur
	}
	for _, st := range sts {
		if st.SchoolID != s.st.school.ID {
			continue
		}
		if i, ok := idx[st.ID]; ok {
			st.FeeHistory = students[i].FeeHistory
			students[i] = st
			continue
		}
		st = st.clone()
		idx[st.ID] = len(students)
		students = append(students, st)
	}
	s.st.students = students
	s.bump()
}

func (s *Store) deleteStudent(schoolID, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.accepts(schoolID) {
		return
	}

	students := make([]Student, 0, len(s.st.students))
	for _, cur := range s.st.students {
		if cur.ID != id {
			students = append(students, cur)
		}
	}
	s.st.students = students
	for k, rec := range s.st.attendance {
		if rec.StudentID == id {
			delete(s.st.attendance, k)
		}
	}
	s.bump()
}

func (s *Store) appendPayment(schoolID string, p FeePayment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.accepts(schoolID) {
		return
	}

	students := make([]Student, len(s.st.students))
	copy(students, s.st.students)
	for i, cur := range students {
		if cur.ID != p.StudentID {
			continue
		}
		hist := make([]FeePayment, len(cur.FeeHistory), len(cur.FeeHistory)+1)
		copy(hist, cur.FeeHistory)
		students[i].FeeHistory = append(hist, p)
	}
	s.st.students = students
	s.bump()
}

func (s *Store) upsertAttendance(schoolID string, records ...AttendanceRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.accepts(schoolID) || len(records) == 0 {
		return
	}

	next := make(map[string]AttendanceRecord, len(s.st.attendance)+len(records))
	for k, v := range s.st.attendance {
		next[k] = v
	}
	for _, rec := range records {
		next[rec.key()] = rec
	}
	s.st.attendance = next
	s.bump()
}

func (s *Store) upsertTeacherAttendance(schoolID string, records ...TeacherAttendanceRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.accepts(schoolID) || len(records) == 0 {
		return
	}

	next := make(map[string]TeacherAttendanceRecord, len(s.st.teacherAttendance)+len(records))
	for k, v := range s.st.teacherAttendance {
		next[k] = v
	}
	for _, rec := range records {
		next[rec.key()] = rec
	}
	s.st.teacherAttendance = next
	s.bump()
}

func (s *Store) upsertSubmission(sub DailySubmission) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.accepts(sub.SchoolID) {
		return
	}

	next := make(map[string]DailySubmission, len(s.st.submissions)+1)
	for k, v := range s.st.submissions {
		next[k] = v
	}
	next[sub.key()] = sub
	s.st.submissions = next
	s.bump()
}

func (s *Store) setSchool(sch School) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.accepts(sch.ID) {
		return
	}
	s.st.school = sch
	s.bump()
}

// Lookups used by local validation.

func (s *Store) rollTaken(roll, excludeID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, st := range s.st.students {
		if st.ID != excludeID && strings.EqualFold(st.RollNumber, roll) {
			return true
		}
	}
	return false
}

func (s *Store) emailTaken(email, excludeID string) bool {
	if email == "" {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.st.teachers {
		if t.ID != excludeID && strings.EqualFold(t.Email, email) {
			return true
		}
	}
	return false
}

// buildState validates a payload and indexes it.
func buildState(data SchoolData) (state, error) {
	var flds []core.FieldError
	fail := func(field, msg string, args ...interface{}) {
		flds = append(flds, core.FieldError{Field: field, Error: fmt.Sprintf(msg, args...)})
	}

	sid := data.School.ID
	if sid == "" {
		fail("school.id", "school id is required")
		return state{}, core.NewValidationError(errMalformedData, flds...)
	}
	ownedBy := func(field, id string) bool {
		if id != "" && id != sid {
			fail(field, "belongs to another school")
			return false
		}
		return true
	}

	st := state{
		school:            data.School,
		teachers:          make([]Teacher, 0, len(data.Teachers)),
		students:          make([]Student, 0, len(data.Students)),
		attendance:        make(map[string]AttendanceRecord, len(data.AttendanceRecords)),
		teacherAttendance: make(map[string]TeacherAttendanceRecord, len(data.TeacherAttendanceRecords)),
		submissions:       make(map[string]DailySubmission, len(data.DailySubmissions)),
	}

	teacherIDs := make(map[string]bool, len(data.Teachers))
	var coordinators int
	for i, t := range data.Teachers {
		pfx := fmt.Sprintf("teachers[%d].", i)
		switch {
		case t.ID == "":
			fail(pfx+"id", "id is required")
		case teacherIDs[t.ID]:
			fail(pfx+"id", "duplicate id %s", t.ID)
		}
		teacherIDs[t.ID] = true
		if !ownedBy(pfx+"school_id", t.SchoolID) {
			continue
		}
		if !t.Role.Valid() {
			fail(pfx+"role", "invalid role %q", t.Role)
		}
		if t.IsCoordinator() {
			coordinators++
		}
		if !core.IsValidPIN(t.PIN) {
			fail(pfx+"pin", "PIN must be exactly 4 digits")
		}
		t.SchoolID = sid
		st.teachers = append(st.teachers, t)
	}
	if coordinators > 1 {
		fail("teachers", "a school has at most one coordinator")
	}

	studentIDs := make(map[string]bool, len(data.Students))
	rolls := make(map[string]bool, len(data.Students))
	for i, s := range data.Students {
		pfx := fmt.Sprintf("students[%d].", i)
		switch {
		case s.ID == "":
			fail(pfx+"id", "id is required")
		case studentIDs[s.ID]:
			fail(pfx+"id", "duplicate id %s", s.ID)
		}
		studentIDs[s.ID] = true
		if !ownedBy(pfx+"school_id", s.SchoolID) {
			continue
		}
		roll := strings.ToLower(strings.TrimSpace(s.RollNumber))
		switch {
		case roll == "":
			fail(pfx+"roll_number", "roll number is required")
		case rolls[roll]:
			fail(pfx+"roll_number", "duplicate roll number %s", s.RollNumber)
		}
		rolls[roll] = true
		if math.IsNaN(s.TotalFee) || math.IsInf(s.TotalFee, 0) {
			fail(pfx+"total_fee", "invalid amount")
		}
		s = s.clone()
		for j, p := range s.FeeHistory {
			if p.StudentID == "" {
				s.FeeHistory[j].StudentID = s.ID
			} else if p.StudentID != s.ID {
				fail(fmt.Sprintf("%sfee_history[%d].student_id", pfx, j), "belongs to another student")
			}
			if math.IsNaN(p.Amount) || math.IsInf(p.Amount, 0) {
				fail(fmt.Sprintf("%sfee_history[%d].amount", pfx, j), "invalid amount")
			}
		}
		s.SchoolID = sid
		st.students = append(st.students, s)
	}

	for i, r := range data.AttendanceRecords {
		pfx := fmt.Sprintf("attendance[%d].", i)
		if !ownedBy(pfx+"school_id", r.SchoolID) {
			continue
		}
		if !core.IsValidDate(r.Date) {
			fail(pfx+"date", "invalid date %q", r.Date)
		}
		if r.StudentID == "" {
			fail(pfx+"student_id", "student id is required")
		}
		if !r.Status.Valid() {
			fail(pfx+"status", "invalid status %q", r.Status)
		}
		if _, dup := st.attendance[r.key()]; dup {
			fail(pfx+"date", "duplicate record for %s", r.key())
		}
		r.SchoolID = sid
		st.attendance[r.key()] = r
	}

	for i, r := range data.TeacherAttendanceRecords {
		pfx := fmt.Sprintf("teacher_attendance[%d].", i)
		if !ownedBy(pfx+"school_id", r.SchoolID) {
			continue
		}
		if !core.IsValidDate(r.Date) {
			fail(pfx+"date", "invalid date %q", r.Date)
		}
		if r.TeacherID == "" {
			fail(pfx+"teacher_id", "teacher id is required")
		}
		if !r.Status.Valid() {
			fail(pfx+"status", "invalid status %q", r.Status)
		}
		if _, dup := st.teacherAttendance[r.key()]; dup {
			fail(pfx+"date", "duplicate record for %s", r.key())
		}
		r.SchoolID = sid
		st.teacherAttendance[r.key()] = r
	}

	for i, d := range data.DailySubmissions {
		pfx := fmt.Sprintf("daily_submissions[%d].", i)
		if !ownedBy(pfx+"school_id", d.SchoolID) {
			continue
		}
		if !core.IsValidDate(d.Date) {
			fail(pfx+"date", "invalid date %q", d.Date)
		}
		if d.ClassName == "" {
			fail(pfx+"class_name", "class name is required")
		}
		if d.TotalStudents < 0 || d.PresentStudents < 0 || d.AbsentStudents < 0 {
			fail(pfx+"total_students", "counts cannot be negative")
		}
		if _, dup := st.submissions[d.key()]; dup {
			fail(pfx+"date", "duplicate submission for %s %s", d.Date, d.Class())
		}
		d.SchoolID = sid
		st.submissions[d.key()] = d
	}

	if len(flds) > 0 {
		return state{}, core.NewValidationError(errMalformedData, flds...)
	}
	return st, nil
}

func sortedKeys(m interface{}) []string {
	var keys []string
	switch mm := m.(type) {
	case map[string]AttendanceRecord:
		for k := range mm {
			keys = append(keys, k)
		}
	case map[string]TeacherAttendanceRecord:
		for k := range mm {
			keys = append(keys, k)
		}
	case map[string]DailySubmission:
		for k := range mm {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
