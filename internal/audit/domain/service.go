package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

// Service writes audit records. Callers treat failures as advisory.
type Service interface {
	AuditLog(
		ctx context.Context,
		practitionerID *snowflake.ID,
		actorType ActorType,
		action string,
		targetType string,
		targetID *string,
		metadata map[string]any,
	) error
}
