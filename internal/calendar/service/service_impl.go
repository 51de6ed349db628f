package service

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/praxisware/praxis/internal/calendar/domain"
	"github.com/praxisware/praxis/internal/clock"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	External domain.ExternalCalendar
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	external domain.ExternalCalendar
}

func NewService(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("calendar.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		external: p.External,
	}
}

func (s *Service) Stage(ctx context.Context, req domain.StageRequest) (*domain.CalendarEvent, error) {
	variant := domain.DecideVariant(req.Amount, req.StartInPast, req.SuppressEmail, req.LeadHours)
	if variant == domain.VariantNone {
		return nil, nil
	}

	attendees := []string{}
	if variant == domain.VariantConfirmed && req.ClientEmail != "" {
		attendees = append(attendees, req.ClientEmail)
	}

	external, err := s.external.CreateEvent(ctx, domain.CreateEventRequest{
		Variant:   variant,
		Title:     req.Title,
		Attendees: attendees,
		StartsAt:  req.StartsAt,
		EndsAt:    req.EndsAt,
		Notes:     req.Notes,
	})
	if err != nil {
		return nil, err
	}

	eventType := domain.EventTypeConfirmed
	if variant == domain.VariantPending {
		eventType = domain.EventTypePending
	}

	now := s.clock.Now()
	record := domain.CalendarEvent{
		ID:              s.genID.Generate(),
		BookingID:       req.BookingID,
		PractitionerID:  req.PractitionerID,
		ExternalEventID: external.EventID,
		EventType:       eventType,
		EventStatus:     domain.EventStatusCreated,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if external.MeetLink != "" {
		record.MeetLink = &external.MeetLink
	}

	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *Service) ConfirmPending(ctx context.Context, bookingID, practitionerID snowflake.ID, attendees []string) error {
	var record domain.CalendarEvent
	err := s.db.WithContext(ctx).
		Where("booking_id = ? AND practitioner_id = ? AND event_type = ?", bookingID, practitionerID, domain.EventTypePending).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// Zero-amount and suppressed bookings never staged a pending
		// event; nothing to upgrade.
		s.log.Warn("no pending calendar event for booking",
			zap.String("booking_id", bookingID.String()))
		return nil
	}
	if err != nil {
		return err
	}

	external, err := s.external.UpgradeToConfirmed(ctx, record.ExternalEventID, attendees)
	if err != nil {
		return err
	}

	updates := map[string]any{
		"event_type":   domain.EventTypeConfirmed,
		"event_status": domain.EventStatusUpdated,
		"updated_at":   s.clock.Now(),
	}
	if external != nil && external.MeetLink != "" {
		updates["meet_link"] = external.MeetLink
	}
	return s.db.WithContext(ctx).
		Model(&domain.CalendarEvent{}).
		Where("id = ? AND event_type = ?", record.ID, domain.EventTypePending).
		Updates(updates).Error
}

func (s *Service) CancelForBooking(ctx context.Context, bookingID snowflake.ID) error {
	return s.db.WithContext(ctx).
		Model(&domain.CalendarEvent{}).
		Where("booking_id = ? AND event_status <> ?", bookingID, domain.EventStatusCancelled).
		Updates(map[string]any{"event_status": domain.EventStatusCancelled, "updated_at": s.clock.Now()}).Error
}
