package school

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/frizwan636-dotcom/attendancepro/core"
)

type (
	FeeSummary struct {
		StudentID  string    `json:"student_id"`
		Name       string    `json:"name"`
		RollNumber string    `json:"roll_number"`
		Class      ClassRef  `json:"class"`
		TotalFee   float64   `json:"total_fee"`
		FeePaid    float64   `json:"fee_paid"`
		FeeDue     float64   `json:"fee_due"` // negative when overpaid
		Status     FeeStatus `json:"status"`
		Payments   int       `json:"payments"`
	}

	ClassSummary struct {
		TeacherID       string          `json:"teacher_id"`
		TeacherName     string          `json:"teacher_name"`
		Class           ClassRef        `json:"class"`
		State           SubmissionState `json:"state"`
		TotalStudents   int             `json:"total_students"`
		PresentStudents int             `json:"present_students"`
		AbsentStudents  int             `json:"absent_students"`
		Percentage      int             `json:"percentage"`
		SubmittedAt     *time.Time      `json:"submitted_at,omitempty"`
	}

	// DailySummary is the coordinator's school-wide view of one day.
	// Totals only count submitted classes.
	DailySummary struct {
		Date            string         `json:"date"`
		Classes         []ClassSummary `json:"classes"`
		SubmittedCount  int            `json:"submitted_count"`
		PendingCount    int            `json:"pending_count"`
		TotalStudents   int            `json:"total_students"`
		PresentStudents int            `json:"present_students"`
		AbsentStudents  int            `json:"absent_students"`
		Percentage      int            `json:"percentage"`
	}

	// ReportFilter selects attendance records between From and To (inclusive, YYYY-MM-DD).
	ReportFilter struct {
		From  string
		To    string
		Class *ClassRef
	}

	AttendanceRow struct {
		ID         string   `json:"id"`
		Name       string   `json:"name"`
		RollNumber string   `json:"roll_number,omitempty"`
		Class      ClassRef `json:"class"`
		Present    int      `json:"present"`
		Absent     int      `json:"absent"`
		Total      int      `json:"total"`
		Percentage int      `json:"percentage"`
	}

	MonthlyReport struct {
		Month string          `json:"month"` // YYYY-MM
		Rows  []AttendanceRow `json:"rows"`
	}
)

// ComputeFeeStatus classifies a fee balance. Overpayment takes precedence.
func ComputeFeeStatus(total, paid float64) FeeStatus {
	switch {
	case paid > total:
		return FeeOverpaid
	case paid >= total:
		return FeePaid
	case paid > 0:
		return FeePartial
	default:
		return FeeUnpaid
	}
}

// Percentage returns round(part / total * 100), 0 when total is 0.
func Percentage(part, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(part) * 100 / float64(total)))
}

func feeSummaryOf(st Student) FeeSummary {
	var paid float64
	for _, p := range st.FeeHistory {
		paid += p.Amount
	}
	return FeeSummary{
		StudentID:  st.ID,
		Name:       st.Name,
		RollNumber: st.RollNumber,
		Class:      st.Class(),
		TotalFee:   st.TotalFee,
		FeePaid:    paid,
		FeeDue:     st.TotalFee - paid,
		Status:     ComputeFeeStatus(st.TotalFee, paid),
		Payments:   len(st.FeeHistory),
	}
}

// rollLess orders numeric roll numbers numerically, before alphanumeric ones.
func rollLess(a, b string) bool {
	ai, aErr := strconv.Atoi(a)
	bi, bErr := strconv.Atoi(b)
	switch {
	case aErr == nil && bErr == nil:
		if ai != bi {
			return ai < bi
		}
		return a < b
	case aErr == nil:
		return true
	case bErr == nil:
		return false
	}
	if la, lb := strings.ToLower(a), strings.ToLower(b); la != lb {
		return la < lb
	}
	return a < b
}

func classLess(a, b ClassRef) bool {
	if !strings.EqualFold(a.ClassName, b.ClassName) {
		return rollLess(a.ClassName, b.ClassName)
	}
	return strings.ToLower(a.Section) < strings.ToLower(b.Section)
}

func (s *Store) School() (School, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.school, s.loaded
}

func (s *Store) Teachers() []Teacher {
	s.mu.RLock()
	defer s.mu.RUnlock()
	teachers := make([]Teacher, len(s.st.teachers))
	copy(teachers, s.st.teachers)
	return teachers
}

func (s *Store) Teacher(id string) (Teacher, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.st.teachers {
		if t.ID == id {
			return t, true
		}
	}
	return Teacher{}, false
}

func (s *Store) Coordinator() (Teacher, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.st.teachers {
		if t.IsCoordinator() {
			return t, true
		}
	}
	return Teacher{}, false
}

func (s *Store) Students() []Student {
	s.mu.RLock()
	defer s.mu.RUnlock()
	students := make([]Student, 0, len(s.st.students))
	for _, st := range s.st.students {
		students = append(students, st.clone())
	}
	return students
}

func (s *Store) Student(id string) (Student, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, st := range s.st.students {
		if st.ID == id {
			return st.clone(), true
		}
	}
	return Student{}, false
}

// ClassOwner returns the teacher whose home class is c.
func (s *Store) ClassOwner(c ClassRef) (Teacher, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.st.teachers {
		if t.ClassName != "" && t.Class().Equal(c) {
			return t, true
		}
	}
	return Teacher{}, false
}

// Classes lists every class known to the school, from teachers and students.
func (s *Store) Classes() []ClassRef {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v := s.cached("classes", func() interface{} {
		seen := make(map[string]bool)
		classes := make([]ClassRef, 0)
		add := func(c ClassRef) {
			if c.ClassName == "" || seen[c.key()] {
				return
			}
			seen[c.key()] = true
			classes = append(classes, c)
		}
		for _, t := range s.st.teachers {
			add(t.Class())
		}
		for _, st := range s.st.students {
			add(st.Class())
		}
		sort.SliceStable(classes, func(i, j int) bool { return classLess(classes[i], classes[j]) })
		return classes
	}).([]ClassRef)

	classes := make([]ClassRef, len(v))
	copy(classes, v)
	return classes
}

// Roster returns the students of class c ordered by roll number.
func (s *Store) Roster(c ClassRef) []Student {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v := s.cached("roster:"+c.key(), func() interface{} {
		roster := make([]Student, 0)
		for _, st := range s.st.students {
			if st.Class().Equal(c) {
				roster = append(roster, st)
			}
		}
		sort.SliceStable(roster, func(i, j int) bool { return rollLess(roster[i].RollNumber, roster[j].RollNumber) })
		return roster
	}).([]Student)

	roster := make([]Student, 0, len(v))
	for _, st := range v {
		roster = append(roster, st.clone())
	}
	return roster
}

func (s *Store) feeSummaries() map[string]FeeSummary {
	return s.cached("fees", func() interface{} {
		sums := make(map[string]FeeSummary, len(s.st.students))
		for _, st := range s.st.students {
			sums[st.ID] = feeSummaryOf(st)
		}
		return sums
	}).(map[string]FeeSummary)
}

func (s *Store) FeeSummary(studentID string) (FeeSummary, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sum, ok := s.feeSummaries()[studentID]
	return sum, ok
}

// FeeSummaries returns the fee position of every student of class c, in roster order.
func (s *Store) FeeSummaries(c ClassRef) []FeeSummary {
	roster := s.Roster(c)

	s.mu.RLock()
	defer s.mu.RUnlock()
	sums := s.feeSummaries()
	out := make([]FeeSummary, 0, len(roster))
	for _, st := range roster {
		if sum, ok := sums[st.ID]; ok {
			out = append(out, sum)
		}
	}
	return out
}

// FeeDefaulters lists students with an outstanding balance, optionally within one class.
func (s *Store) FeeDefaulters(c *ClassRef) []FeeSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]FeeSummary, 0)
	for _, sum := range s.feeSummaries() {
		if sum.FeeDue <= 0 {
			continue
		}
		if c != nil && !sum.Class.Equal(*c) {
			continue
		}
		out = append(out, sum)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Class.Equal(out[j].Class) {
			return classLess(out[i].Class, out[j].Class)
		}
		return rollLess(out[i].RollNumber, out[j].RollNumber)
	})
	return out
}

type presence struct{ present, total int }

func (s *Store) studentPresence() map[string]presence {
	return s.cached("presence:students", func() interface{} {
		m := make(map[string]presence)
		for _, rec := range s.st.attendance {
			p := m[rec.StudentID]
			p.total++
			if rec.Status == Present {
				p.present++
			}
			m[rec.StudentID] = p
		}
		return m
	}).(map[string]presence)
}

func (s *Store) teacherPresence() map[string]presence {
	return s.cached("presence:teachers", func() interface{} {
		m := make(map[string]presence)
		for _, rec := range s.st.teacherAttendance {
			p := m[rec.TeacherID]
			p.total++
			if rec.Status == Present {
				p.present++
			}
			m[rec.TeacherID] = p
		}
		return m
	}).(map[string]presence)
}

// StudentAttendancePercentage is the rounded share of Present records, 0 without records.
func (s *Store) StudentAttendancePercentage(studentID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p := s.studentPresence()[studentID]
	return Percentage(p.present, p.total)
}

func (s *Store) TeacherAttendancePercentage(teacherID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p := s.teacherPresence()[teacherID]
	return Percentage(p.present, p.total)
}

// AttendanceOn returns the recorded statuses of class c's students on date.
func (s *Store) AttendanceOn(date string, c ClassRef) map[string]AttendanceStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]AttendanceStatus)
	for _, st := range s.st.students {
		if !st.Class().Equal(c) {
			continue
		}
		if rec, ok := s.st.attendance[date+"|"+st.ID]; ok {
			out[st.ID] = rec.Status
		}
	}
	return out
}

// Submission returns the daily submission of class c on date.
func (s *Store) Submission(date string, c ClassRef) (DailySubmission, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.st.submissions[date+"|"+c.key()]
	return sub, ok
}

// IsSubmitted reports whether class c's attendance is frozen for date.
func (s *Store) IsSubmitted(date string, c ClassRef) bool {
	_, ok := s.Submission(date, c)
	return ok
}

func (s *Store) TeacherAttendanceOn(date string) map[string]AttendanceStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]AttendanceStatus)
	for _, rec := range s.st.teacherAttendance {
		if rec.Date == date {
			out[rec.TeacherID] = rec.Status
		}
	}
	return out
}

// DailySummary lists each (teacher, class) pair as Submitted or Pending for date,
// followed by submitted classes without an owning teacher.
func (s *Store) DailySummary(date string) DailySummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v := s.cached("daily:"+date, func() interface{} {
		sum := DailySummary{Date: date, Classes: make([]ClassSummary, 0)}
		counted := make(map[string]bool)

		add := func(t Teacher, c ClassRef) {
			cs := ClassSummary{TeacherID: t.ID, TeacherName: t.Name, Class: c, State: Pending}
			if sub, ok := s.st.submissions[date+"|"+c.key()]; ok {
				ts := sub.SubmissionTimestamp
				cs.State = Submitted
				cs.TotalStudents = sub.TotalStudents
				cs.PresentStudents = sub.PresentStudents
				cs.AbsentStudents = sub.AbsentStudents
				cs.Percentage = Percentage(sub.PresentStudents, sub.TotalStudents)
				cs.SubmittedAt = &ts
				if !counted[c.key()] {
					counted[c.key()] = true
					sum.TotalStudents += sub.TotalStudents
					sum.PresentStudents += sub.PresentStudents
					sum.AbsentStudents += sub.AbsentStudents
				}
				sum.SubmittedCount++
			} else {
				sum.PendingCount++
			}
			sum.Classes = append(sum.Classes, cs)
		}

		owned := make(map[string]bool)
		for _, t := range s.st.teachers {
			if t.ClassName == "" {
				continue
			}
			owned[t.Class().key()] = true
			add(t, t.Class())
		}

		orphans := make([]DailySubmission, 0)
		for _, sub := range s.st.submissions {
			if sub.Date == date && !owned[sub.Class().key()] {
				orphans = append(orphans, sub)
			}
		}
		sort.Slice(orphans, func(i, j int) bool { return classLess(orphans[i].Class(), orphans[j].Class()) })
		for _, sub := range orphans {
			t := Teacher{ID: sub.TeacherID}
			for _, cur := range s.st.teachers {
				if cur.ID == sub.TeacherID {
					t = cur
					break
				}
			}
			add(t, sub.Class())
		}

		sum.Percentage = Percentage(sum.PresentStudents, sum.TotalStudents)
		return sum
	}).(DailySummary)

	classes := make([]ClassSummary, len(v.Classes))
	copy(classes, v.Classes)
	v.Classes = classes
	return v
}

func (f ReportFilter) validate() error {
	var flds []core.FieldError
	if !core.IsValidDate(f.From) {
		flds = append(flds, core.FieldError{Field: "from", Error: "date must be formatted as YYYY-MM-DD"})
	}
	if !core.IsValidDate(f.To) {
		flds = append(flds, core.FieldError{Field: "to", Error: "date must be formatted as YYYY-MM-DD"})
	}
	if len(flds) == 0 && f.From > f.To {
		flds = append(flds, core.FieldError{Field: "to", Error: "end date is before start date"})
	}
	if len(flds) > 0 {
		return core.NewValidationError(errors.New("invalid report range"), flds...)
	}
	return nil
}

// RangeReport groups student attendance by calendar month within the filter range.
func (s *Store) RangeReport(f ReportFilter) ([]MonthlyReport, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	students := make(map[string]Student, len(s.st.students))
	for _, st := range s.st.students {
		if f.Class == nil || st.Class().Equal(*f.Class) {
			students[st.ID] = st
		}
	}

	rows := make(map[string]map[string]*AttendanceRow) // {month: {studentID: row}}
	for _, rec := range s.st.attendance {
		if rec.Date < f.From || rec.Date > f.To {
			continue
		}
		st, ok := students[rec.StudentID]
		if !ok {
			continue
		}
		month := rec.Date[:7]
		if rows[month] == nil {
			rows[month] = make(map[string]*AttendanceRow)
		}
		row, ok := rows[month][st.ID]
		if !ok {
			row = &AttendanceRow{ID: st.ID, Name: st.Name, RollNumber: st.RollNumber, Class: st.Class()}
			rows[month][st.ID] = row
		}
		row.Total++
		if rec.Status == Present {
			row.Present++
		} else {
			row.Absent++
		}
	}
	return toMonthlyReports(rows), nil
}

// TeacherRangeReport groups staff attendance by calendar month within the filter range.
// The class filter does not apply.
func (s *Store) TeacherRangeReport(f ReportFilter) ([]MonthlyReport, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	teachers := make(map[string]Teacher, len(s.st.teachers))
	for _, t := range s.st.teachers {
		teachers[t.ID] = t
	}

	rows := make(map[string]map[string]*AttendanceRow)
	for _, rec := range s.st.teacherAttendance {
		if rec.Date < f.From || rec.Date > f.To {
			continue
		}
		t, ok := teachers[rec.TeacherID]
		if !ok {
			continue
		}
		month := rec.Date[:7]
		if rows[month] == nil {
			rows[month] = make(map[string]*AttendanceRow)
		}
		row, ok := rows[month][t.ID]
		if !ok {
			row = &AttendanceRow{ID: t.ID, Name: t.Name, Class: t.Class()}
			rows[month][t.ID] = row
		}
		row.Total++
		if rec.Status == Present {
			row.Present++
		} else {
			row.Absent++
		}
	}
	return toMonthlyReports(rows), nil
}

func toMonthlyReports(rows map[string]map[string]*AttendanceRow) []MonthlyReport {
	months := make([]string, 0, len(rows))
	for m := range rows {
		months = append(months, m)
	}
	sort.Strings(months)

	reports := make([]MonthlyReport, 0, len(months))
	for _, m := range months {
		rep := MonthlyReport{Month: m, Rows: make([]AttendanceRow, 0, len(rows[m]))}
		for _, row := range rows[m] {
			row.Percentage = Percentage(row.Present, row.Total)
			rep.Rows = append(rep.Rows, *row)
		}
		sort.Slice(rep.Rows, func(i, j int) bool {
			a, b := rep.Rows[i], rep.Rows[j]
			if !a.Class.Equal(b.Class) {
				return classLess(a.Class, b.Class)
			}
			if a.RollNumber != b.RollNumber {
				return rollLess(a.RollNumber, b.RollNumber)
			}
			return a.Name < b.Name
		})
		reports = append(reports, rep)
	}
	return reports
}
