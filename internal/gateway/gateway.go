// Package gateway is the HTTP and WebSocket surface POS clients talk to.
// It translates requests into settlement operations and maps domain errors
// to status codes; no business rules live here.
package gateway

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/msxsistemas/quick-bite-craft-sub000/internal/auth"
	"github.com/msxsistemas/quick-bite-craft-sub000/internal/billing"
	"github.com/msxsistemas/quick-bite-craft-sub000/internal/config"
	"github.com/msxsistemas/quick-bite-craft-sub000/internal/paynet"
	"github.com/msxsistemas/quick-bite-craft-sub000/internal/settlement"
	"github.com/msxsistemas/quick-bite-craft-sub000/internal/storage/postgres"
	"github.com/msxsistemas/quick-bite-craft-sub000/pkg/pix"
)

// Gateway serves the settlement API.
type Gateway struct {
	router   *gin.Engine
	svc      *settlement.Service
	feed     settlement.ChangeFeed
	tokens   *auth.Manager
	merchant config.Merchant
	log      *slog.Logger
}

// New builds the gateway and its routes.
func New(svc *settlement.Service, feed settlement.ChangeFeed, tokens *auth.Manager, merchant config.Merchant, log *slog.Logger) *Gateway {
	g := &Gateway{
		router:   gin.New(),
		svc:      svc,
		feed:     feed,
		tokens:   tokens,
		merchant: merchant,
		log:      log,
	}
	g.router.Use(gin.Recovery())

	g.router.GET("/health", g.health)
	g.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := g.router.Group("/api/v1", tokens.Middleware())
	{
		v1.POST("/bills/:bill/payments", g.recordPayment)
		v1.PATCH("/bills/:bill/payments/:id", g.editPayment)
		v1.DELETE("/bills/:bill/payments/:id", g.deletePayment)
		v1.DELETE("/bills/:bill/payments", g.clearPayments)
		v1.GET("/bills/:bill/summary", g.billSummary)
		v1.GET("/bills/:bill/charge", g.billCharge)
		v1.GET("/bills/:bill/split", g.billSplit)
	}

	// WebSocket auth rides a query parameter: browsers cannot set headers
	// on upgrade requests.
	g.router.GET("/ws/bills/:bill", g.watchBill)

	return g
}

// Handler exposes the router for the HTTP server.
func (g *Gateway) Handler() http.Handler { return g.router }

func (g *Gateway) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

type termsPayload struct {
	Subtotal       string `json:"subtotal" form:"subtotal"`
	FeeRatePercent string `json:"fee_rate_percent" form:"fee_rate_percent"`
}

func (t termsPayload) parse() (billing.Terms, error) {
	subtotal, err := decimal.NewFromString(t.Subtotal)
	if err != nil {
		return billing.Terms{}, errors.New("invalid subtotal")
	}
	rate, err := decimal.NewFromString(t.FeeRatePercent)
	if err != nil {
		return billing.Terms{}, errors.New("invalid fee_rate_percent")
	}
	return billing.Terms{Subtotal: subtotal, FeeRatePercent: rate}, nil
}

// billRef resolves the bill scope from the URL and the caller's restaurant.
func (g *Gateway) billRef(c *gin.Context) (settlement.BillRef, *auth.Claims, bool) {
	claims, ok := auth.FromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return settlement.BillRef{}, nil, false
	}
	restaurantID, err := uuid.Parse(claims.RestaurantID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid restaurant scope"})
		return settlement.BillRef{}, nil, false
	}
	return settlement.BillRef{RestaurantID: restaurantID, BillID: c.Param("bill")}, claims, true
}

type recordPayload struct {
	termsPayload
	Method    string             `json:"method"`
	Amount    string             `json:"amount"`
	FeePolicy string             `json:"fee_policy"`
	Customers []billing.Customer `json:"customers"`
}

func (g *Gateway) recordPayment(c *gin.Context) {
	ref, claims, ok := g.billRef(c)
	if !ok {
		return
	}

	var body recordPayload
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	terms, err := body.parse()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	amount, err := decimal.NewFromString(body.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount"})
		return
	}

	p, err := g.svc.Record(c.Request.Context(), settlement.RecordRequest{
		Bill:      ref,
		Terms:     terms,
		Method:    billing.Method(body.Method),
		Amount:    amount,
		FeePolicy: billing.FeePolicy(body.FeePolicy),
		Customers: body.Customers,
		Terminal:  claims.Terminal,
	})
	if err != nil {
		g.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

type editPayload struct {
	termsPayload
	Amount    *string            `json:"amount"`
	Method    *string            `json:"method"`
	FeePolicy *string            `json:"fee_policy"`
	Customers []billing.Customer `json:"customers"`
}

func (g *Gateway) editPayment(c *gin.Context) {
	ref, _, ok := g.billRef(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payment id"})
		return
	}

	var body editPayload
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	terms, err := body.parse()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var req settlement.EditRequest
	if body.Amount != nil {
		amount, err := decimal.NewFromString(*body.Amount)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount"})
			return
		}
		req.Amount = &amount
	}
	if body.Method != nil {
		m := billing.Method(*body.Method)
		req.Method = &m
	}
	if body.FeePolicy != nil {
		fp := billing.FeePolicy(*body.FeePolicy)
		req.FeePolicy = &fp
	}
	req.Customers = body.Customers

	p, err := g.svc.Edit(c.Request.Context(), ref, terms, id, req)
	if err != nil {
		g.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (g *Gateway) deletePayment(c *gin.Context) {
	ref, _, ok := g.billRef(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payment id"})
		return
	}
	if err := g.svc.Delete(c.Request.Context(), ref, id); err != nil {
		g.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (g *Gateway) clearPayments(c *gin.Context) {
	ref, _, ok := g.billRef(c)
	if !ok {
		return
	}
	if err := g.svc.Clear(c.Request.Context(), ref); err != nil {
		g.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (g *Gateway) billSummary(c *gin.Context) {
	ref, _, ok := g.billRef(c)
	if !ok {
		return
	}
	terms, err := queryTerms(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	summary, payments, err := g.svc.Summary(c.Request.Context(), ref, terms)
	if err != nil {
		g.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": summary, "payments": payments})
}

// billCharge renders the instant-payment payload for the remaining balance,
// or for an explicit amount when the table is splitting.
func (g *Gateway) billCharge(c *gin.Context) {
	ref, _, ok := g.billRef(c)
	if !ok {
		return
	}
	terms, err := queryTerms(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	amount := decimal.Zero
	if raw := c.Query("amount"); raw != "" {
		amount, err = decimal.NewFromString(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount"})
			return
		}
	} else {
		summary, _, err := g.svc.Summary(c.Request.Context(), ref, terms)
		if err != nil {
			g.writeError(c, err)
			return
		}
		if summary.Remaining.IsPositive() {
			amount = summary.Remaining
		}
	}

	charge := pix.Charge{
		Key:          g.merchant.PixKey,
		KeyType:      g.merchant.PixKeyType,
		MerchantName: g.merchant.Name,
		MerchantCity: g.merchant.City,
		Amount:       amount,
		TxID:         c.DefaultQuery("txid", ref.BillID),
	}
	c.JSON(http.StatusOK, gin.H{"payload": charge.Encode(), "amount": amount.StringFixed(2)})
}

func (g *Gateway) billSplit(c *gin.Context) {
	ref, _, ok := g.billRef(c)
	if !ok {
		return
	}
	terms, err := queryTerms(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ways := 1
	if raw := c.Query("ways"); raw != "" {
		ways, err = strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ways"})
			return
		}
	}
	share, err := g.svc.Share(c.Request.Context(), ref, terms, ways)
	if err != nil {
		g.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ways": ways, "per_person": share.StringFixed(2)})
}

func queryTerms(c *gin.Context) (billing.Terms, error) {
	return termsPayload{
		Subtotal:       c.Query("subtotal"),
		FeeRatePercent: c.Query("fee_rate_percent"),
	}.parse()
}

// writeError maps domain errors to HTTP statuses.
func (g *Gateway) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, billing.ErrInvalidMethod),
		errors.Is(err, billing.ErrInvalidFeePolicy),
		errors.Is(err, billing.ErrNegativeAmount):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, billing.ErrNotPending):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, postgres.ErrPaymentNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, paynet.ErrReversalRejected):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		g.log.Error("settlement operation failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
