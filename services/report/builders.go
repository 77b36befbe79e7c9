package report

import (
	"strconv"

	"github.com/frizwan636-dotcom/attendancepro/core/school"
)

// FeeTable lists every student's balance. Overpaid balances keep their negative due.
func FeeTable(schoolName string, fees []school.FeeSummary) Table {
	t := Table{
		Title:    "Fee Report",
		Subtitle: schoolName,
		Columns:  []string{"Roll No", "Name", "Class", "Total Fee", "Paid", "Due", "Status"},
		Rows:     make([][]string, 0, len(fees)),
	}
	for _, f := range fees {
		t.Rows = append(t.Rows, []string{
			f.RollNumber,
			f.Name,
			f.Class.String(),
			amount(f.TotalFee),
			amount(f.FeePaid),
			amount(f.FeeDue),
			string(f.Status),
		})
	}
	return t
}

// DailyTable is the coordinator's school-wide summary; the last row holds the submitted totals.
func DailyTable(schoolName string, sum school.DailySummary) Table {
	t := Table{
		Title:    "Daily Attendance Summary " + sum.Date,
		Subtitle: schoolName,
		Columns:  []string{"Teacher", "Class", "Status", "Total", "Present", "Absent", "Percentage"},
		Rows:     make([][]string, 0, len(sum.Classes)+1),
	}
	for _, c := range sum.Classes {
		row := []string{c.TeacherName, c.Class.String(), string(c.State), "", "", "", ""}
		if c.State == school.Submitted {
			row[3] = strconv.Itoa(c.TotalStudents)
			row[4] = strconv.Itoa(c.PresentStudents)
			row[5] = strconv.Itoa(c.AbsentStudents)
			row[6] = percent(c.Percentage)
		}
		t.Rows = append(t.Rows, row)
	}
	t.Rows = append(t.Rows, []string{
		"School total",
		"",
		strconv.Itoa(sum.SubmittedCount) + " submitted, " + strconv.Itoa(sum.PendingCount) + " pending",
		strconv.Itoa(sum.TotalStudents),
		strconv.Itoa(sum.PresentStudents),
		strconv.Itoa(sum.AbsentStudents),
		percent(sum.Percentage),
	})
	return t
}

// MonthlyTable flattens a range report, one row per month and person.
func MonthlyTable(schoolName, title string, filter school.ReportFilter, months []school.MonthlyReport) Table {
	subtitle := schoolName + ", " + filter.From + " to " + filter.To
	if filter.Class != nil {
		subtitle += ", class " + filter.Class.String()
	}
	t := Table{
		Title:    title,
		Subtitle: subtitle,
		Columns:  []string{"Month", "Roll No", "Name", "Class", "Present", "Absent", "Total", "Percentage"},
	}
	for _, m := range months {
		for _, r := range m.Rows {
			t.Rows = append(t.Rows, []string{
				m.Month,
				r.RollNumber,
				r.Name,
				r.Class.String(),
				strconv.Itoa(r.Present),
				strconv.Itoa(r.Absent),
				strconv.Itoa(r.Total),
				percent(r.Percentage),
			})
		}
	}
	return t
}
