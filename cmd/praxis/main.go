package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/praxisware/praxis/internal/audit"
	"github.com/praxisware/praxis/internal/bill"
	"github.com/praxisware/praxis/internal/bill/sweeper"
	"github.com/praxisware/praxis/internal/billingsettings"
	"github.com/praxisware/praxis/internal/booking"
	"github.com/praxisware/praxis/internal/calendar"
	"github.com/praxisware/praxis/internal/clock"
	"github.com/praxisware/praxis/internal/config"
	"github.com/praxisware/praxis/internal/events"
	"github.com/praxisware/praxis/internal/invoice"
	"github.com/praxisware/praxis/internal/ledger"
	"github.com/praxisware/praxis/internal/migration"
	"github.com/praxisware/praxis/internal/notification"
	"github.com/praxisware/praxis/internal/observability/logger"
	"github.com/praxisware/praxis/internal/observability/tracing"
	"github.com/praxisware/praxis/internal/payment"
	"github.com/praxisware/praxis/internal/refund"
	"github.com/praxisware/praxis/internal/server"
	"github.com/praxisware/praxis/pkg/db"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var version = "dev"

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		tracing.Module,
		clock.Module,
		fx.Provide(func() *snowflake.Node {
			node, err := snowflake.NewNode(1)
			if err != nil {
				panic(err)
			}
			return node
		}),
		db.Module,
		fx.Invoke(func(conn *gorm.DB) error {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			return migration.RunMigrations(sqlDB)
		}),

		events.Module,
		notification.Module,
		audit.Module,
		ledger.Module,
		billingsettings.Module,
		bill.Module,
		calendar.Module,
		invoice.Module,
		payment.Module,
		booking.Module,
		refund.Module,
		sweeper.Module,
		server.Module,
	)
	app.Run()
}
