package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/praxisware/praxis/internal/audit/domain"
	"github.com/praxisware/praxis/internal/clock"
	"github.com/praxisware/praxis/internal/observability/logger"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
}

func NewService(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
		clock: p.Clock,
	}
}

func (s *Service) AuditLog(
	ctx context.Context,
	practitionerID *snowflake.ID,
	actorType domain.ActorType,
	action string,
	targetType string,
	targetID *string,
	metadata map[string]any,
) error {
	action = strings.TrimSpace(action)
	if action == "" {
		return errors.New("missing_action")
	}
	if actorType == "" {
		actorType = domain.ActorTypeSystem
	}

	entry := domain.AuditLog{
		ID:             s.genID.Generate(),
		PractitionerID: practitionerID,
		ActorType:      string(actorType),
		Action:         action,
		TargetType:     targetType,
		TargetID:       targetID,
		Metadata:       datatypes.JSONMap(logger.MaskJSON(metadata)),
		CreatedAt:      s.clock.Now(),
	}
	if entry.Metadata == nil {
		entry.Metadata = datatypes.JSONMap{}
	}
	return s.db.WithContext(ctx).Create(&entry).Error
}
