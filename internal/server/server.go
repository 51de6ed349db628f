package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	bookingdomain "github.com/praxisware/praxis/internal/booking/domain"
	"github.com/praxisware/praxis/internal/config"
	invoicedomain "github.com/praxisware/praxis/internal/invoice/domain"
	"github.com/praxisware/praxis/internal/observability/logger"
	paymentdomain "github.com/praxisware/praxis/internal/payment/domain"
	"github.com/praxisware/praxis/internal/refund"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Cfg        config.Config
	Log        *zap.Logger
	BookingSvc bookingdomain.Service
	InvoiceSvc invoicedomain.Service
	PaymentSvc paymentdomain.Service
	RefundSvc  refund.Coordinator
}

type Server struct {
	cfg        config.Config
	log        *zap.Logger
	engine     *gin.Engine
	bookingSvc bookingdomain.Service
	invoiceSvc invoicedomain.Service
	paymentSvc paymentdomain.Service
	refundSvc  refund.Coordinator

	webhookLimiter *rateLimiter
}

func NewServer(p Params) *Server {
	if p.Cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		cfg:            p.Cfg,
		log:            p.Log.Named("http.server"),
		bookingSvc:     p.BookingSvc,
		invoiceSvc:     p.InvoiceSvc,
		paymentSvc:     p.PaymentSvc,
		refundSvc:      p.RefundSvc,
		webhookLimiter: newRateLimiter(120, time.Minute),
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(logger.GinMiddleware(logger.MiddlewareConfig{
		SkipPaths: []string{"/healthz"},
	}))
	s.engine = engine
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", s.Healthz)

	api := s.engine.Group("/api")
	{
		api.POST("/bookings", s.CreateBooking)
		api.GET("/bookings/:id", s.GetBooking)
		api.POST("/bookings/:id/cancel", s.CancelBooking)
		api.POST("/bookings/:id/refund", s.RefundBooking)
		api.POST("/bookings/:id/payments/manual", s.RecordManualPayment)

		api.POST("/invoices/monthly/ensure", s.EnsureMonthlyInvoice)
		api.POST("/invoices/:id/issue", s.IssueInvoice)
		api.GET("/invoices/:id", s.GetInvoice)
	}

	s.engine.POST("/webhooks/stripe", s.StripeWebhook)
}

// Handler exposes the engine for tests.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

var Module = fx.Module("http.server",
	fx.Provide(NewServer),
	fx.Invoke(runServer),
)

func runServer(lc fx.Lifecycle, s *Server, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}
