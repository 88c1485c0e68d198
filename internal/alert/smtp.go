package alert

import (
	"fmt"
	"mime"
	"net/smtp"
	"strings"

	"github.com/rotisserie/eris"
)

// Transport delivers composed messages. One Transport instance holds the
// connection parameters for a single relay; Send opens and closes a
// connection per call so a stale relay session never poisons later runs.
type Transport interface {
	Send(msg Message) error
}

// SMTPTransport sends mail through a plain SMTP relay. The plant relay
// accepts unauthenticated submission from inside the network; Auth stays
// nil in that deployment.
type SMTPTransport struct {
	Addr string // host:port
	Auth smtp.Auth
}

// NewSMTPTransport builds a transport for the given relay.
func NewSMTPTransport(host string, port int) *SMTPTransport {
	return &SMTPTransport{Addr: fmt.Sprintf("%s:%d", host, port)}
}

// Send delivers one message. Bcc recipients go on the envelope only, never
// into the headers.
func (t *SMTPTransport) Send(msg Message) error {
	recipients := msg.Recipients()
	if len(recipients) == 0 {
		return eris.New("alert: message has no recipients")
	}

	if err := smtp.SendMail(t.Addr, t.Auth, msg.FromEmail, recipients, encode(msg)); err != nil {
		return eris.Wrapf(err, "alert: send via %s", t.Addr)
	}
	return nil
}

// encode renders the message as an RFC 5322 HTML mail. Subjects pass
// through MIME Q-encoding so non-ASCII machine names survive transit.
func encode(msg Message) []byte {
	var b strings.Builder

	fmt.Fprintf(&b, "From: %s <%s>\r\n", msg.FromName, msg.FromEmail)
	if len(msg.To) > 0 {
		fmt.Fprintf(&b, "To: %s\r\n", strings.Join(msg.To, ","))
	}
	if len(msg.Cc) > 0 {
		fmt.Fprintf(&b, "Cc: %s\r\n", strings.Join(msg.Cc, ","))
	}
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.HTMLBody)

	return []byte(b.String())
}
