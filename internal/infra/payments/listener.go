package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/IBM/sarama"

	appbooking "travelbook/internal/app/booking"
	"travelbook/internal/app/commands"
	"travelbook/internal/app/dto"
	domainbooking "travelbook/internal/domain/booking"
)

// PrincipalID is the principal payment confirmations are dispatched as.
const PrincipalID = "system:payments"

const succeededType = "payment.succeeded"

var ErrMalformedEvent = errors.New("payments: malformed event")

type Inbox interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Forget(ctx context.Context, eventID string) error
}

type envelope struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		BookingID string `json:"booking_id"`
	} `json:"data"`
}

// Listener turns payment events from the broker into ConfirmPayment commands.
type Listener struct {
	Bus    commands.Bus
	Inbox  Inbox
	Logger *slog.Logger
}

func (l *Listener) Handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var evt envelope
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		l.log().Warn("dropping unparsable payment event", "offset", msg.Offset, "error", err)
		return nil
	}
	if !strings.HasPrefix(evt.Type, succeededType) {
		return nil
	}
	if evt.ID == "" || evt.Data.BookingID == "" {
		l.log().Warn("dropping payment event", "id", evt.ID, "error", ErrMalformedEvent)
		return nil
	}
	seen, err := l.Inbox.Seen(ctx, evt.ID)
	if err != nil {
		return fmt.Errorf("payments: inbox: %w", err)
	}
	if seen {
		l.log().Debug("payment event already handled", "id", evt.ID)
		return nil
	}
	_, err = commands.Dispatch[appbooking.ConfirmPaymentCommand, *dto.Booking](ctx, l.Bus, appbooking.ConfirmPaymentCommand{
		PrincipalID: PrincipalID,
		BookingID:   evt.Data.BookingID,
	})
	switch {
	case err == nil:
		l.log().Info("payment confirmed", "booking_id", evt.Data.BookingID, "event_id", evt.ID)
		return nil
	case errors.Is(err, domainbooking.ErrNotFound), errors.Is(err, domainbooking.ErrInvalidState):
		l.log().Warn("payment event ignored", "booking_id", evt.Data.BookingID, "event_id", evt.ID, "error", err)
		return nil
	default:
		if ferr := l.Inbox.Forget(ctx, evt.ID); ferr != nil {
			l.log().Error("inbox forget failed", "event_id", evt.ID, "error", ferr)
		}
		return err
	}
}

func (l *Listener) log() *slog.Logger {
	if l.Logger == nil {
		return slog.Default()
	}
	return l.Logger
}
