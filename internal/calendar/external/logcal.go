package external

import (
	"context"

	"github.com/google/uuid"
	"github.com/praxisware/praxis/internal/calendar/domain"
	"go.uber.org/zap"
)

// LogCalendar satisfies the external calendar contract for installs with
// no calendar integration connected: events exist only as local records
// with generated ids, and no invite ever goes out.
type LogCalendar struct {
	log *zap.Logger
}

func NewLogCalendar(log *zap.Logger) domain.ExternalCalendar {
	return &LogCalendar{log: log.Named("calendar.external")}
}

func (c *LogCalendar) CreateEvent(ctx context.Context, req domain.CreateEventRequest) (*domain.ExternalEvent, error) {
	id := "local-" + uuid.NewString()
	c.log.Info("calendar event recorded locally",
		zap.String("event_id", id),
		zap.String("variant", string(req.Variant)),
		zap.Time("starts_at", req.StartsAt),
	)
	return &domain.ExternalEvent{EventID: id}, nil
}

func (c *LogCalendar) UpgradeToConfirmed(ctx context.Context, externalEventID string, attendees []string) (*domain.ExternalEvent, error) {
	c.log.Info("calendar event confirmed locally",
		zap.String("event_id", externalEventID),
		zap.Int("attendees", len(attendees)),
	)
	return &domain.ExternalEvent{EventID: externalEventID}, nil
}
