package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

type ensureMonthlyInvoiceRequest struct {
	PractitionerID string    `json:"practitionerId"`
	ClientID       string    `json:"clientId"`
	PeriodStart    time.Time `json:"periodStart"`
	PeriodEnd      time.Time `json:"periodEnd"`
}

// @Summary      Ensure Monthly Invoice Draft
// @Description  Find or create the draft for the pair and period and reconcile its bills
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        request body ensureMonthlyInvoiceRequest true "Ensure Monthly Invoice Request"
// @Router       /api/invoices/monthly/ensure [post]
func (s *Server) EnsureMonthlyInvoice(c *gin.Context) {
	var req ensureMonthlyInvoiceRequest
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

	inv, err := s.invoiceSvc.EnsureMonthlyDraft(c.Request.Context(), practitionerID, clientID, req.PeriodStart, req.PeriodEnd)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": inv})
}

// @Summary      Issue Invoice
// @Tags         invoices
// @Produce      json
// @Router       /api/invoices/{id}/issue [post]
func (s *Server) IssueInvoice(c *gin.Context) {
	invoiceID, err := parseIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	inv, err := s.invoiceSvc.Issue(c.Request.Context(), invoiceID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": inv})
}

// @Summary      Get Invoice
// @Tags         invoices
// @Produce      json
// @Router       /api/invoices/{id} [get]
func (s *Server) GetInvoice(c *gin.Context) {
	invoiceID, err := parseIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	inv, err := s.invoiceSvc.GetByID(c.Request.Context(), invoiceID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": inv})
}
