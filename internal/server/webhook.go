package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/praxisware/praxis/internal/observability/logger"
	paymentdomain "github.com/praxisware/praxis/internal/payment/domain"
	"go.uber.org/zap"
)

const maxWebhookBodyBytes = 64 * 1024

// StripeWebhook receives provider events. A bad signature is the only
// client-visible failure; any internal problem still acks 200 so the
// provider stops retrying an event we already have.
func (s *Server) StripeWebhook(c *gin.Context) {
	log := logger.FromContext(c.Request.Context()).Named("http.webhook")

	if !s.webhookLimiter.Allow(c.ClientIP()) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": gin.H{"code": "rate_limited"}})
		return
	}

	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	signature := c.GetHeader("Stripe-Signature")
	if err := s.paymentSvc.HandleWebhook(c.Request.Context(), payload, signature); err != nil {
		if errors.Is(err, paymentdomain.ErrInvalidSignature) {
			c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "invalid_signature"}})
			return
		}
		log.Error("webhook reconciliation failed", zap.Error(err))
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}
