package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	billingdomain "github.com/praxisware/praxis/internal/billingsettings/domain"
	bookingdomain "github.com/praxisware/praxis/internal/booking/domain"
	"github.com/shopspring/decimal"
)

type bookingBillingRequest struct {
	Cadence   string `json:"cadence"`
	Amount    string `json:"amount"`
	Currency  string `json:"currency"`
	LeadHours *int   `json:"leadHours"`
}

type createBookingRequest struct {
	PractitionerID string                 `json:"practitionerId"`
	ClientID       string                 `json:"clientId"`
	ClientName     string                 `json:"clientName"`
	ClientEmail    string                 `json:"clientEmail"`
	StartTime      time.Time              `json:"startTime"`
	EndTime        time.Time              `json:"endTime"`
	Mode           string                 `json:"mode"`
	Location       *string                `json:"location"`
	SuppressEmail  bool                   `json:"suppressEmail"`
	Billing        *bookingBillingRequest `json:"billing"`
}

// @Summary      Create Booking
// @Description  Create a booking with its bill snapshot and payment flow
// @Tags         bookings
// @Accept       json
// @Produce      json
// @Param        request body createBookingRequest true "Create Booking Request"
// @Success      200  {object}  bookingdomain.CreateBookingResult
// @Router       /api/bookings [post]
func (s *Server) CreateBooking(c *gin.Context) {
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	practitionerID, err := snowflake.ParseString(strings.TrimSpace(req.PractitionerID))
	if err != nil {
		AbortWithError(c, newValidationError("invalid practitionerId"))
		return
	}
	clientID, err := snowflake.ParseString(strings.TrimSpace(req.ClientID))
	if err != nil {
		AbortWithError(c, newValidationError("invalid clientId"))
		return
	}

	createReq := bookingdomain.CreateBookingRequest{
		PractitionerID: practitionerID,
		ClientID:       clientID,
		ClientName:     strings.TrimSpace(req.ClientName),
		ClientEmail:    strings.TrimSpace(req.ClientEmail),
		StartsAt:       req.StartTime,
		EndsAt:         req.EndTime,
		Mode:           bookingdomain.ConsultationMode(req.Mode),
		Location:       req.Location,
		SuppressEmail:  req.SuppressEmail,
	}

	if req.Billing != nil {
		amount, err := decimal.NewFromString(strings.TrimSpace(req.Billing.Amount))
		if err != nil {
			AbortWithError(c, newValidationError("invalid billing amount"))
			return
		}
		createReq.Billing = &bookingdomain.BillingTerms{
			Cadence:   billingdomain.Cadence(req.Billing.Cadence),
			Amount:    amount,
			Currency:  strings.TrimSpace(req.Billing.Currency),
			LeadHours: req.Billing.LeadHours,
		}
	}

	result, err := s.bookingSvc.CreateBooking(c.Request.Context(), createReq)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}

// @Summary      Get Booking
// @Tags         bookings
// @Produce      json
// @Success      200  {object}  bookingdomain.Booking
// @Router       /api/bookings/{id} [get]
func (s *Server) GetBooking(c *gin.Context) {
	bookingID, err := parseIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	booking, err := s.bookingSvc.GetByID(c.Request.Context(), bookingID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": booking})
}

// @Summary      Cancel Booking
// @Tags         bookings
// @Produce      json
// @Router       /api/bookings/{id}/cancel [post]
func (s *Server) CancelBooking(c *gin.Context) {
	bookingID, err := parseIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.refundSvc.Cancel(c.Request.Context(), bookingID); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"status": "canceled"}})
}

type refundBookingRequest struct {
	Reason string `json:"reason"`
}

// @Summary      Refund Booking
// @Description  Refund the paid bill and issue a credit note
// @Tags         bookings
// @Accept       json
// @Produce      json
// @Router       /api/bookings/{id}/refund [post]
func (s *Server) RefundBooking(c *gin.Context) {
	bookingID, err := parseIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req refundBookingRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	if err := s.refundSvc.Refund(c.Request.Context(), bookingID, strings.TrimSpace(req.Reason)); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"status": "refunded"}})
}

// @Summary      Record Manual Payment
// @Description  Mark the booking's bill paid outside the payment provider
// @Tags         bookings
// @Produce      json
// @Router       /api/bookings/{id}/payments/manual [post]
func (s *Server) RecordManualPayment(c *gin.Context) {
	bookingID, err := parseIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.bookingSvc.RecordManualPayment(c.Request.Context(), bookingID); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"status": "paid"}})
}

func parseIDParam(c *gin.Context) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil {
		return 0, newValidationError("invalid id")
	}
	return id, nil
}
