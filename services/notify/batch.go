package notify

import (
	"github.com/frizwan636-dotcom/attendancepro/core/school"
)

// AbsenceNotices composes a notice for every student of class marked absent on date.
// Students without a mobile number are skipped.
func (n *Notifier) AbsenceNotices(store *school.Store, date string, class school.ClassRef) []Message {
	statuses := store.AttendanceOn(date, class)
	var msgs []Message
	for _, st := range store.Roster(class) {
		if statuses[st.ID] != school.Absent {
			continue
		}
		if msg, err := n.Absence(st, date); err == nil {
			msgs = append(msgs, msg)
		}
	}
	return msgs
}

// FeeReminders composes a reminder for every defaulter, of one class or of the whole school.
func (n *Notifier) FeeReminders(store *school.Store, class *school.ClassRef) []Message {
	var msgs []Message
	for _, fs := range store.FeeDefaulters(class) {
		st, ok := store.Student(fs.StudentID)
		if !ok {
			continue
		}
		if msg, err := n.Fee(st, fs); err == nil {
			msgs = append(msgs, msg)
		}
	}
	return msgs
}
