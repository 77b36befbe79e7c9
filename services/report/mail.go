package report

import (
	"bytes"
	"net/mail"

	"github.com/pkg/errors"

	"github.com/frizwan636-dotcom/attendancepro/core"
)

var errNoRecipients = errors.New("at least one recipient is required")

// Mail renders t and sends it as an attachment through svc.
func Mail(svc core.EmailService, to []mail.Address, schoolName string, f Format, t Table) error {
	if len(to) == 0 {
		return core.NewValidationError(errNoRecipients, core.FieldError{Field: "to", Error: errNoRecipients.Error()})
	}
	data, err := Render(f, t)
	if err != nil {
		return err
	}

	msg := &core.EmailMessage{
		To:           to,
		Subject:      t.Title + " - " + schoolName,
		TemplateName: "report",
		TemplateData: map[string]string{"Title": t.Title, "SchoolName": schoolName, "Summary": t.Notes},
	}
	if err = msg.Attach(bytes.NewReader(data), t.Filename(f), f.ContentType()); err != nil {
		return errors.Wrap(err, "attaching report")
	}
	svc.SendMessages(msg)
	return nil
}
