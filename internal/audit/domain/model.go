package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// ActorType represents who triggered an action.
type ActorType string

const (
	ActorTypePractitioner ActorType = "practitioner"
	ActorTypeSystem       ActorType = "system"
	ActorTypeWebhook      ActorType = "webhook"
)

// AuditLog captures an immutable record of a billing or communication
// action: payment emails sent, receipts attempted, refunds issued.
type AuditLog struct {
	ID             snowflake.ID      `gorm:"primaryKey"`
	PractitionerID *snowflake.ID     `gorm:"index"`
	ActorType      string            `gorm:"type:text;not null"`
	ActorID        *string           `gorm:"type:text"`
	Action         string            `gorm:"type:text;not null;index"`
	TargetType     string            `gorm:"type:text;not null"`
	TargetID       *string           `gorm:"type:text"`
	Metadata       datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'"`
	CreatedAt      time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (AuditLog) TableName() string { return "audit_logs" }
