package emailsvc

import (
	"bytes"
	"fmt"
	"io"
	"net/mail"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/frizwan636-dotcom/attendancepro/core"
)

// outbox holds every message the console services handed over, oldest first.
var (
	outbox   = make([]core.EmailMessage, 0)
	outboxMu sync.Mutex
)

// SentMessages returns a copy of the console outbox.
func SentMessages() []core.EmailMessage {
	outboxMu.Lock()
	defer outboxMu.Unlock()
	return append([]core.EmailMessage(nil), outbox...)
}

func ResetSentMessages() {
	outboxMu.Lock()
	defer outboxMu.Unlock()
	outbox = make([]core.EmailMessage, 0)
}

// consoleService prints reports, reminders and reset codes instead of mailing them.
type consoleService struct {
	from       mail.Address
	subjPrefix string
	logger     core.Logger
	out        io.Writer // nil: outbox only
	blocking   bool
}

var _ core.EmailService = (*consoleService)(nil)

func NewConsoleService(conf *core.Config, logger core.Logger) core.EmailService {
	return &consoleService{
		from:       conf.DefaultFromEmail,
		subjPrefix: "[" + conf.AppName + "] ",
		logger:     logger,
		out:        os.Stdout,
	}
}

// NewConsoleServiceMock delivers synchronously to the outbox and prints nothing.
func NewConsoleServiceMock(conf *core.Config, logger core.Logger) core.EmailService {
	return &consoleService{
		from:       conf.DefaultFromEmail,
		subjPrefix: "[" + conf.AppName + "] ",
		logger:     logger,
		blocking:   true,
	}
}

func (svc *consoleService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		if svc.blocking {
			svc.deliver(msg)
			continue
		}
		go svc.deliver(msg)
	}
}

func (svc *consoleService) deliver(msg *core.EmailMessage) {
	if !ready(msg, svc.logger) {
		return
	}
	if svc.out != nil {
		_, _ = svc.out.Write(svc.preview(*msg))
	}
	outboxMu.Lock()
	outbox = append(outbox, *msg)
	outboxMu.Unlock()
}

// ready renders msg and reports whether it has somebody to go to and something to say.
func ready(msg *core.EmailMessage, logger core.Logger) bool {
	if err := msg.Render(); err != nil {
		logger.Error(fmt.Sprintf("rendering %s email to %s: %v", describe(msg), joinAddresses(msg.To), err), err)
		return false
	}
	if !msg.HasRecipients() {
		logger.Warn(fmt.Sprintf("dropping %s email: no recipients", describe(msg)))
		return false
	}
	if !msg.HasContent() && !msg.HasAttachments() {
		logger.Warn(fmt.Sprintf("dropping %s email to %s: empty", describe(msg), joinAddresses(msg.To)))
		return false
	}
	return true
}

func describe(msg *core.EmailMessage) string {
	if msg.TemplateName != "" {
		return fmt.Sprintf("%q", msg.TemplateName)
	}
	return fmt.Sprintf("%q", msg.Subject)
}

func (svc *consoleService) preview(msg core.EmailMessage) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\n", svc.from.String())
	fmt.Fprintf(&b, "To: %s\n", joinAddresses(msg.To))
	if len(msg.Cc) > 0 {
		fmt.Fprintf(&b, "Cc: %s\n", joinAddresses(msg.Cc))
	}
	if len(msg.Bcc) > 0 {
		fmt.Fprintf(&b, "Bcc: %s\n", joinAddresses(msg.Bcc))
	}
	fmt.Fprintf(&b, "Date: %s\n", time.Now().Format(time.RFC1123Z))
	fmt.Fprintf(&b, "Subject: %s\n\n", svc.subjPrefix+msg.Subject)
	b.WriteString(strings.TrimRight(msg.TextContent, "\n"))
	b.WriteString("\n")
	for _, at := range msg.Attachments {
		// content is base64: 4 chars per 3 bytes
		fmt.Fprintf(&b, "[attachment] %s (%s, %d bytes)\n", at.Filename, at.ContentType, at.Content.Len()*3/4)
	}
	b.WriteString("\n")
	return b.Bytes()
}

func joinAddresses(addrs []mail.Address) string {
	toJoin := make([]string, 0, len(addrs))
	for _, a := range addrs {
		toJoin = append(toJoin, a.String())
	}
	return strings.Join(toJoin, ", ")
}
