package main

import (
	"context"
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/frizwan636-dotcom/attendancepro/core"
	"github.com/frizwan636-dotcom/attendancepro/core/school"
	"github.com/frizwan636-dotcom/attendancepro/services/notify"
)

// printOpener lists sms: links instead of opening a composer; the CLI has no device.
type printOpener struct {
	w io.Writer
}

func (o printOpener) Open(link string) error {
	_, err := fmt.Fprintln(o.w, link)
	return err
}

func (cli *commandLine) remind(ctx context.Context, pin, kind, date, class string) error {
	store, err := cli.loadSchool(ctx, pin)
	if err != nil {
		return err
	}
	sch, _ := store.School()
	n := notify.New(sch.Name, cli.opener, cli.email, cli.logger)

	var msgs []notify.Message
	switch kind {
	case "absent":
		if !core.IsValidDate(date) {
			msg := "date must be formatted as YYYY-MM-DD"
			return core.NewValidationError(errors.New("invalid date"), core.FieldError{Field: "date", Error: msg})
		}
		c, err := parseClass(class)
		if err != nil {
			return err
		}
		msgs = n.AbsenceNotices(store, date, c)

	case "fees":
		var c *school.ClassRef
		if class != "" {
			ref, err := parseClass(class)
			if err != nil {
				return err
			}
			c = &ref
		}
		msgs = n.FeeReminders(store, c)

	default:
		msg := "kind must be absent or fees"
		return core.NewValidationError(errors.New(msg), core.FieldError{Field: "kind", Error: msg})
	}

	sent := n.SendAll(msgs)
	fmt.Fprintf(cli.out, "%d of %d messages handed over\n", sent, len(msgs))
	return nil
}
