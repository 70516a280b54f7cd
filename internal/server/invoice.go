package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	invoicedomain "github.com/smallbiznis/tapcoin/internal/invoice/domain"
	obscontext "github.com/smallbiznis/tapcoin/internal/observability/context"
	obslogger "github.com/smallbiznis/tapcoin/internal/observability/logger"
	reconciledomain "github.com/smallbiznis/tapcoin/internal/reconcile/domain"
)

type createInvoiceRequest struct {
	UserID    int64 `json:"user_id"`
	PackageID int64 `json:"package_id"`
}

type checkInvoiceRequest struct {
	UserID    int64           `json:"user_id"`
	InvoiceID json.RawMessage `json:"invoice_id"`
}

func (s *Server) CreateInvoice(c *gin.Context) {
	var req createInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	c.Set(contextUserIDKey, strconv.FormatInt(req.UserID, 10))

	resp, err := s.invoiceSvc.Create(c.Request.Context(), invoicedomain.CreateInvoiceRequest{
		UserID:    req.UserID,
		PackageID: req.PackageID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CheckInvoice(c *gin.Context) {
	var req checkInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	invoiceID, err := parseSnowflakeJSON(req.InvoiceID)
	if err != nil {
		AbortWithError(c, invoicedomain.ErrInvalidInvoiceID)
		return
	}
	c.Set(contextUserIDKey, strconv.FormatInt(req.UserID, 10))
	c.Set(obslogger.KeyInvoiceID, invoiceID.String())

	ctx := obscontext.WithInvoiceID(c.Request.Context(), invoiceID.String())
	ctx = reconciledomain.WithSource(ctx, "client")
	result, err := s.reconciler.Check(ctx, int64(invoiceID), req.UserID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) ListUserInvoices(c *gin.Context) {
	userID, err := parsePositiveInt64(c.Param("user_id"))
	if err != nil {
		AbortWithError(c, invoicedomain.ErrInvalidUser)
		return
	}
	limit, err := parseOptionalInt(c.Query("limit"))
	if err != nil {
		AbortWithError(c, newValidationError("limit", "invalid_limit", "invalid limit"))
		return
	}
	c.Set(contextUserIDKey, strconv.FormatInt(userID, 10))

	pageSize := 0
	if limit != nil {
		pageSize = *limit
	}
	invoices, err := s.invoiceSvc.History(c.Request.Context(), userID, pageSize)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": invoices})
}
