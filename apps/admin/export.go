package main

import (
	"context"
	"fmt"
	"io/ioutil"
	"net/mail"

	"github.com/pkg/errors"

	"github.com/frizwan636-dotcom/attendancepro/core"
	"github.com/frizwan636-dotcom/attendancepro/core/school"
	"github.com/frizwan636-dotcom/attendancepro/services/report"
)

type exportOptions struct {
	schoolPIN string
	kind      string
	format    string
	date      string
	from      string
	to        string
	class     string
	outFile   string
	mailTo    string
}

func (cli *commandLine) export(ctx context.Context, opts exportOptions) error {
	f, err := report.ParseFormat(opts.format)
	if err != nil {
		return err
	}
	var class *school.ClassRef
	if opts.class != "" {
		c, err := parseClass(opts.class)
		if err != nil {
			return err
		}
		class = &c
	}
	store, err := cli.loadSchool(ctx, opts.schoolPIN)
	if err != nil {
		return err
	}
	sch, _ := store.School()

	var t report.Table
	switch opts.kind {
	case "fees":
		var fees []school.FeeSummary
		if class != nil {
			fees = store.FeeSummaries(*class)
		} else {
			for _, c := range store.Classes() {
				fees = append(fees, store.FeeSummaries(c)...)
			}
		}
		t = report.FeeTable(sch.Name, fees)

	case "daily":
		if !core.IsValidDate(opts.date) {
			msg := "date must be formatted as YYYY-MM-DD"
			return core.NewValidationError(errors.New("invalid date"), core.FieldError{Field: "date", Error: msg})
		}
		t = report.DailyTable(sch.Name, store.DailySummary(opts.date))

	case "monthly":
		filter := school.ReportFilter{From: opts.from, To: opts.to, Class: class}
		months, err := store.RangeReport(filter)
		if err != nil {
			return err
		}
		t = report.MonthlyTable(sch.Name, "Monthly Attendance Report", filter, months)
		// no summarizer is configured for the CLI
		t.Notes = report.Summarize(ctx, nil, cli.logger, opts.from+" to "+opts.to, t)

	default:
		msg := "kind must be fees, daily or monthly"
		return core.NewValidationError(errors.New(msg), core.FieldError{Field: "kind", Error: msg})
	}

	if opts.mailTo != "" {
		if cli.email == nil {
			return core.NewExternalServiceError("email", errors.New("not configured"))
		}
		addr, err := mail.ParseAddress(opts.mailTo)
		if err != nil {
			return core.NewValidationError(err, core.FieldError{Field: "mail", Error: "invalid email address"})
		}
		if err = report.Mail(cli.email, []mail.Address{*addr}, sch.Name, f, t); err != nil {
			return err
		}
		fmt.Fprintf(cli.out, "%s mailed to %s\n", t.Filename(f), addr.Address)
		return nil
	}

	data, err := report.Render(f, t)
	if err != nil {
		return err
	}
	if opts.outFile == "" {
		_, err = cli.out.Write(data)
		return err
	}
	if err = ioutil.WriteFile(opts.outFile, data, 0o644); err != nil {
		return errors.Wrapf(err, "writing %s", opts.outFile)
	}
	fmt.Fprintf(cli.out, "%s written (%d rows)\n", opts.outFile, len(t.Rows))
	return nil
}
