// Package notify composes absence notices and fee reminders for parents.
// Messages go out as sms: deep links handed to the device, or as emails.
package notify

import (
	"fmt"
	"net/mail"
	"net/url"
	"strings"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/frizwan636-dotcom/attendancepro/core"
	"github.com/frizwan636-dotcom/attendancepro/core/school"
)

// Opener hands a URL to the platform, eg. the default SMS composer.
type Opener interface {
	Open(link string) error
}

type Kind string

const (
	AbsenceNotice Kind = "absence_notice"
	FeeReminder   Kind = "fee_reminder"
)

var errNoMobile = errors.New("student has no mobile number")

// Message is a composed notice for one student's parent.
type Message struct {
	Kind      Kind
	StudentID string
	To        string // mobile number
	Subject   string
	Body      string
}

// SMSLink builds the sms: deep link for msg.
func (msg Message) SMSLink() string {
	// spaces must stay %20, composers show '+' literally
	body := strings.ReplaceAll(url.QueryEscape(msg.Body), "+", "%20")
	return "sms:" + msg.To + "?body=" + body
}

type Notifier struct {
	schoolName string
	opener     Opener
	email      core.EmailService
	logger     core.Logger
}

// New returns a notifier; opener and email may be nil when the channel is unavailable.
func New(schoolName string, opener Opener, email core.EmailService, logger core.Logger) *Notifier {
	vala.BeginValidation().Validate(
		vala.StringNotEmpty(schoolName, "schoolName"),
		vala.IsNotNil(logger, "logger"),
	).CheckAndPanic()

	return &Notifier{schoolName: schoolName, opener: opener, email: email, logger: logger}
}

func guardian(st school.Student) string {
	if st.FatherName != "" {
		return "Dear " + st.FatherName
	}
	return "Dear Parent"
}

func (n *Notifier) Absence(st school.Student, date string) (Message, error) {
	if strings.TrimSpace(st.MobileNumber) == "" {
		return Message{}, core.NewValidationError(errNoMobile, core.FieldError{Field: "mobile_number", Error: errNoMobile.Error()})
	}
	body := fmt.Sprintf(
		"%s, your child %s (Roll No %s, Class %s) was marked absent on %s. Please contact %s if this is unexpected.",
		guardian(st), st.Name, st.RollNumber, st.Class(), date, n.schoolName,
	)
	return Message{
		Kind:      AbsenceNotice,
		StudentID: st.ID,
		To:        st.MobileNumber,
		Subject:   "Absence notice for " + st.Name,
		Body:      body,
	}, nil
}

// Fee reminds the parent of the outstanding balance. Settled balances are rejected.
func (n *Notifier) Fee(st school.Student, fs school.FeeSummary) (Message, error) {
	if strings.TrimSpace(st.MobileNumber) == "" {
		return Message{}, core.NewValidationError(errNoMobile, core.FieldError{Field: "mobile_number", Error: errNoMobile.Error()})
	}
	if fs.FeeDue <= 0 {
		msg := "fee is already settled"
		return Message{}, core.NewValidationError(errors.New(msg), core.FieldError{Field: "fee_due", Error: msg})
	}
	body := fmt.Sprintf(
		"%s, this is a reminder from %s that %s (Roll No %s, Class %s) has an outstanding fee of %s out of %s. Thank you.",
		guardian(st), n.schoolName, st.Name, st.RollNumber, st.Class(), amount(fs.FeeDue), amount(fs.TotalFee),
	)
	return Message{
		Kind:      FeeReminder,
		StudentID: st.ID,
		To:        st.MobileNumber,
		Subject:   "Fee reminder for " + st.Name,
		Body:      body,
	}, nil
}

// SendSMS opens the composer for msg. Failures are reported as ExternalServiceError.
func (n *Notifier) SendSMS(msg Message) error {
	if n.opener == nil {
		return core.NewExternalServiceError("sms composer", errors.New("not available"))
	}
	if err := n.opener.Open(msg.SMSLink()); err != nil {
		return core.NewExternalServiceError("sms composer", err)
	}
	return nil
}

// SendEmail mails msg through the templated email service.
func (n *Notifier) SendEmail(msg Message, to mail.Address) error {
	if n.email == nil {
		return core.NewExternalServiceError("email", errors.New("not configured"))
	}
	n.email.SendMessages(&core.EmailMessage{
		To:           []mail.Address{to},
		Subject:      msg.Subject,
		TemplateName: string(msg.Kind),
		TemplateData: map[string]string{"Body": msg.Body},
	})
	return nil
}

// SendAll opens a composer per message and keeps going on failure.
// It returns how many were handed over.
func (n *Notifier) SendAll(msgs []Message) int {
	var sent int
	for _, msg := range msgs {
		if err := n.SendSMS(msg); err != nil {
			n.logger.Warn(fmt.Sprintf("sending %s to %s: %v", msg.Kind, msg.To, err), err)
			continue
		}
		sent++
	}
	return sent
}

func amount(v float64) string {
	return fmt.Sprintf("%g", v)
}
