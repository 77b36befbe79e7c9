package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/frizwan636-dotcom/attendancepro/core"
	"github.com/frizwan636-dotcom/attendancepro/core/school"
)

func (cli *commandLine) signUp(ctx context.Context, nc school.NewCoordinator) error {
	sch, coord, err := cli.gw.Register(ctx, nc)
	if err != nil {
		return err
	}
	cli.logger.Info(fmt.Sprintf("school %q registered with coordinator %s", sch.Name, coord.Email))
	fmt.Fprintf(cli.out, "school %s (PIN %s) created, coordinator id %s\n", sch.Name, sch.PIN, coord.ID)
	return nil
}

func (cli *commandLine) setPIN(ctx context.Context, current, pin string) error {
	sch, err := cli.repo.GetSchoolByPIN(ctx, strings.TrimSpace(current))
	if err != nil {
		return err
	}
	sch, err = cli.repo.UpdateSchoolPIN(ctx, sch.ID, strings.TrimSpace(pin))
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%s now uses PIN %s\n", sch.Name, sch.PIN)
	return nil
}

func (cli *commandLine) summary(ctx context.Context, pin, date string) error {
	if !core.IsValidDate(date) {
		msg := "date must be formatted as YYYY-MM-DD"
		return core.NewValidationError(fmt.Errorf("invalid date %q", date), core.FieldError{Field: "date", Error: msg})
	}
	store, err := cli.loadSchool(ctx, pin)
	if err != nil {
		return err
	}
	sch, _ := store.School()
	sum := store.DailySummary(date)

	fmt.Fprintf(cli.out, "%s, %s\n", sch.Name, date)
	w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CLASS\tTEACHER\tSTATE\tPRESENT\tABSENT\tTOTAL\t%")
	for _, cs := range sum.Classes {
		if cs.State == school.Submitted {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d%%\n",
				cs.Class, cs.TeacherName, cs.State, cs.PresentStudents, cs.AbsentStudents, cs.TotalStudents, cs.Percentage)
		} else {
			fmt.Fprintf(w, "%s\t%s\t%s\t-\t-\t-\t-\n", cs.Class, cs.TeacherName, cs.State)
		}
	}
	if err = w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%d submitted, %d pending, %d of %d present (%d%%)\n",
		sum.SubmittedCount, sum.PendingCount, sum.PresentStudents, sum.TotalStudents, sum.Percentage)
	return nil
}
