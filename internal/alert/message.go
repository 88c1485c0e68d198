// Package alert turns PPM highlight events into mail and delivers them to
// the configured recipient list. Delivery is best-effort: a failed send is
// logged and never propagates back into the sync run.
package alert

import (
	"fmt"
	"math"
	"strings"

	"github.com/pcbflow/drillsync/internal/model"
)

// Message is one composed alert mail, ready for a Transport.
type Message struct {
	FromName  string
	FromEmail string
	To        []string
	Cc        []string
	Bcc       []string
	Subject   string
	HTMLBody  string
}

// Recipients returns every address the message is delivered to, in
// to/cc/bcc order.
func (m Message) Recipients() []string {
	out := make([]string, 0, len(m.To)+len(m.Cc)+len(m.Bcc))
	out = append(out, m.To...)
	out = append(out, m.Cc...)
	out = append(out, m.Bcc...)
	return out
}

// Composer renders highlight events into alert messages. ResultURL points
// at the inspection result page; the lot number is appended as a query
// parameter.
type Composer struct {
	FromName  string
	FromEmail string
	ResultURL string
}

// Compose builds the alert mail for one highlight event. Spindle indices
// are 0-based internally but 1-based on the shop floor, so the rendered
// text shifts them by one.
func (c Composer) Compose(event model.HighlightEvent, to, cc, bcc []string) Message {
	link := fmt.Sprintf("%s?lot=%s", c.ResultURL, event.LotNumber)

	subject := fmt.Sprintf(
		"[Warning] Drill PPM out of control limit. Machine: %s, Spindle: %d, Lot: %s",
		event.MachineName, event.SpindleID+1, event.LotNumber,
	)

	var body strings.Builder
	body.WriteString("<p>\nDear all,<br>\n")
	body.WriteString("The drill-map PPM has exceeded its control limit. Please check the machine immediately.<br>\n<br>\n")
	fmt.Fprintf(&body, "1. Machine: %s<br>\n", event.MachineName)
	fmt.Fprintf(&body, "2. Spindle: %d<br>\n", event.SpindleID+1)
	fmt.Fprintf(&body, "3. Lot: %s<br>\n", event.LotNumber)
	fmt.Fprintf(&body, "4. PPM: %d (limit: %d)<br>\n<br>\n", int(math.Floor(event.PPM)), event.PPMControlLimit)
	fmt.Fprintf(&body, "Result page: <a href=%q>%s</a>\n</p>\n", link, link)

	return Message{
		FromName:  c.FromName,
		FromEmail: c.FromEmail,
		To:        to,
		Cc:        cc,
		Bcc:       bcc,
		Subject:   subject,
		HTMLBody:  body.String(),
	}
}
