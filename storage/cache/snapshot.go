package localcache

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/frizwan636-dotcom/attendancepro/core/school"
)

// document is the version 11 snapshot layout.
// Top-level keys are camelCase; entity fields keep their snake_case names.
type document struct {
	Version           int                              `json:"version"`
	School            school.School                    `json:"school"`
	SchoolPIN         string                           `json:"schoolPin"`
	Teachers          []school.Teacher                 `json:"teachers"`
	Students          []school.Student                 `json:"students"`
	Attendance        []school.AttendanceRecord        `json:"attendance"`
	TeacherAttendance []school.TeacherAttendanceRecord `json:"teacherAttendance"`
	DailySubmissions  []school.DailySubmission         `json:"dailySubmissions"`
	LoggedInUserID    *string                          `json:"loggedInUserId"`
}

func nonNil(state school.CachedState) document {
	doc := document{
		Version:           Version,
		School:            state.Data.School,
		SchoolPIN:         state.SchoolPIN,
		Teachers:          state.Data.Teachers,
		Students:          state.Data.Students,
		Attendance:        state.Data.AttendanceRecords,
		TeacherAttendance: state.Data.TeacherAttendanceRecords,
		DailySubmissions:  state.Data.DailySubmissions,
	}
	if doc.Teachers == nil {
		doc.Teachers = []school.Teacher{}
	}
	if doc.Students == nil {
		doc.Students = []school.Student{}
	}
	if doc.Attendance == nil {
		doc.Attendance = []school.AttendanceRecord{}
	}
	if doc.TeacherAttendance == nil {
		doc.TeacherAttendance = []school.TeacherAttendanceRecord{}
	}
	if doc.DailySubmissions == nil {
		doc.DailySubmissions = []school.DailySubmission{}
	}
	if state.LoggedInUserID != "" {
		id := state.LoggedInUserID
		doc.LoggedInUserID = &id
	}
	return doc
}

// Encode serializes state as a current version snapshot.
func Encode(state school.CachedState) ([]byte, error) {
	raw, err := json.Marshal(nonNil(state))
	if err != nil {
		return nil, errors.Wrap(err, "encoding snapshot")
	}
	return raw, nil
}

// Decode parses a snapshot of any supported version.
func Decode(raw []byte) (school.CachedState, error) {
	var generic map[string]interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return school.CachedState{}, errors.Wrap(err, "parsing snapshot")
	}
	if generic == nil {
		return school.CachedState{}, errors.New("empty snapshot")
	}
	if err := Migrate(generic); err != nil {
		return school.CachedState{}, errors.Wrap(err, "migrating snapshot")
	}

	migrated, err := json.Marshal(generic)
	if err != nil {
		return school.CachedState{}, errors.Wrap(err, "migrating snapshot")
	}
	var doc document
	if err = json.Unmarshal(migrated, &doc); err != nil {
		return school.CachedState{}, errors.Wrap(err, "decoding snapshot")
	}

	state := school.CachedState{
		Data: school.SchoolData{
			School:                   doc.School,
			Teachers:                 doc.Teachers,
			Students:                 doc.Students,
			AttendanceRecords:        doc.Attendance,
			TeacherAttendanceRecords: doc.TeacherAttendance,
			DailySubmissions:         doc.DailySubmissions,
		},
		SchoolPIN: doc.SchoolPIN,
	}
	if doc.LoggedInUserID != nil {
		state.LoggedInUserID = *doc.LoggedInUserID
	}
	return state, nil
}
