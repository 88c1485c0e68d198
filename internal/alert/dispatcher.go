package alert

import (
	"context"

	"go.uber.org/zap"

	"github.com/pcbflow/drillsync/internal/model"
	"github.com/pcbflow/drillsync/internal/store"
)

// Dispatcher fans highlight events out to the mailing list, one message per
// event. It implements the pipeline's Dispatcher interface.
type Dispatcher struct {
	store     store.Store
	transport Transport
	composer  Composer
}

// NewDispatcher wires a dispatcher over the destination store's mailing
// list and a delivery transport.
func NewDispatcher(st store.Store, transport Transport, composer Composer) *Dispatcher {
	return &Dispatcher{store: st, transport: transport, composer: composer}
}

// Dispatch sends one alert mail per event. A recipient-list failure drops
// the whole batch; a per-message send failure is logged and the remaining
// events still go out. Nothing here returns an error: alerting never blocks
// the sync run.
func (d *Dispatcher) Dispatch(ctx context.Context, events []model.HighlightEvent) {
	if len(events) == 0 {
		return
	}

	log := zap.L().With(zap.String("component", "alert.dispatcher"))

	recipients, err := d.store.ListRecipients(ctx)
	if err != nil {
		log.Error("failed to load mailing list, dropping alerts",
			zap.Int("events", len(events)), zap.Error(err))
		return
	}

	to, cc, bcc := splitRecipients(recipients)
	if len(to)+len(cc)+len(bcc) == 0 {
		log.Warn("mailing list is empty, dropping alerts", zap.Int("events", len(events)))
		return
	}

	sent := 0
	for _, event := range events {
		msg := d.composer.Compose(event, to, cc, bcc)
		if err := d.transport.Send(msg); err != nil {
			log.Error("failed to send alert",
				zap.String("machine", event.MachineName),
				zap.String("lot", event.LotNumber),
				zap.Error(err),
			)
			continue
		}
		sent++
	}

	log.Info("alerts dispatched", zap.Int("sent", sent), zap.Int("events", len(events)))
}

// splitRecipients groups the flat mailing list by send type. Unknown send
// types are ignored.
func splitRecipients(recipients []model.Recipient) (to, cc, bcc []string) {
	for _, r := range recipients {
		switch r.SendType {
		case "to":
			to = append(to, r.Email)
		case "cc":
			cc = append(cc, r.Email)
		case "bcc":
			bcc = append(bcc, r.Email)
		}
	}
	return to, cc, bcc
}
