package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	billdomain "github.com/praxisware/praxis/internal/bill/domain"
	bookingdomain "github.com/praxisware/praxis/internal/booking/domain"
	invoicedomain "github.com/praxisware/praxis/internal/invoice/domain"
	"github.com/praxisware/praxis/internal/observability/logger"
	paymentdomain "github.com/praxisware/praxis/internal/payment/domain"
	"github.com/praxisware/praxis/internal/refund"
	"go.uber.org/zap"
)

var (
	ErrNotFound     = errors.New("not_found")
	ErrUnauthorized = errors.New("unauthorized")
)

type apiError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *apiError) Error() string { return e.Message }

func newValidationError(message string) *apiError {
	return &apiError{Status: http.StatusBadRequest, Code: "validation_error", Message: message}
}

func invalidRequestError() *apiError {
	return newValidationError("invalid request body")
}

// AbortWithError maps domain errors onto HTTP statuses and writes the
// error envelope.
func AbortWithError(c *gin.Context, err error) {
	var api *apiError
	if errors.As(err, &api) {
		c.AbortWithStatusJSON(api.Status, gin.H{"error": api})
		return
	}

	status := http.StatusInternalServerError
	code := "internal_error"

	switch {
	case isValidationError(err):
		status = http.StatusBadRequest
		code = "validation_error"
	case errors.Is(err, ErrNotFound),
		errors.Is(err, bookingdomain.ErrBookingNotFound),
		errors.Is(err, bookingdomain.ErrNoBillForBooking),
		errors.Is(err, billdomain.ErrBillNotFound),
		errors.Is(err, invoicedomain.ErrInvoiceNotFound):
		status = http.StatusNotFound
		code = "not_found"
	case errors.Is(err, refund.ErrNoPaidBill),
		errors.Is(err, refund.ErrBillAlreadyRefunded),
		errors.Is(err, billdomain.ErrBillNotTransition),
		errors.Is(err, invoicedomain.ErrInvoiceNotDraft),
		errors.Is(err, invoicedomain.ErrInvalidTransition):
		status = http.StatusConflict
		code = "conflict"
	case errors.Is(err, ErrUnauthorized):
		status = http.StatusUnauthorized
		code = "unauthorized"
	case errors.Is(err, paymentdomain.ErrProviderUnavailable):
		status = http.StatusBadGateway
		code = "payment_provider_unavailable"
	}

	if status == http.StatusInternalServerError {
		logger.FromContext(c.Request.Context()).Error("request failed", zap.Error(err))
		c.AbortWithStatusJSON(status, gin.H{"error": gin.H{"code": code, "message": "internal error"}})
		return
	}
	c.AbortWithStatusJSON(status, gin.H{"error": gin.H{"code": code, "message": err.Error()}})
}

func isValidationError(err error) bool {
	validation := []error{
		bookingdomain.ErrInvalidTimeWindow,
		bookingdomain.ErrInvalidCadence,
		bookingdomain.ErrInvalidAmount,
		bookingdomain.ErrUnsupportedCurrency,
		bookingdomain.ErrInvalidLeadHours,
		bookingdomain.ErrMissingClientEmail,
		invoicedomain.ErrInvalidPeriod,
		invoicedomain.ErrBillNotLinkable,
	}
	for _, candidate := range validation {
		if errors.Is(err, candidate) {
			return true
		}
	}
	return false
}
