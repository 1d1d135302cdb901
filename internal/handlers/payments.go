package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/snapfetch/snapfetch/internal/payments"
	"github.com/snapfetch/snapfetch/internal/subscriptions"
)

// PaymentsHandler serves the public landing pages PayPal redirects the
// buyer to after approving or abandoning a checkout.
type PaymentsHandler struct {
	payments *payments.Service
	logger   *slog.Logger
}

func NewPaymentsHandler(log *slog.Logger, paymentsSvc *payments.Service) *PaymentsHandler {
	return &PaymentsHandler{
		payments: paymentsSvc,
		logger:   log.With(slog.String("handler", "payments")),
	}
}

// Register mounts the public landing pages and the admin checkout API.
func (h *PaymentsHandler) Register(e *echo.Echo) {
	e.GET("/pay/return", h.Return)
	e.GET("/pay/cancel", h.Cancel)
	e.POST("/api/checkout", h.StartCheckout)
	e.GET("/api/payments/:user_id", h.History)
}

// Return captures the approved order. PayPal passes the order id in the
// token query parameter.
func (h *PaymentsHandler) Return(c echo.Context) error {
	orderID := c.QueryParam("token")
	if orderID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing order token")
	}

	sub, err := h.payments.Complete(c.Request().Context(), orderID)
	if err != nil {
		if errors.Is(err, payments.ErrOrderNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "unknown order")
		}
		h.logger.Error("capture failed", slog.String("order_id", orderID), slog.Any("error", err))
		return c.HTML(http.StatusBadGateway,
			"<html><body><h2>Payment failed</h2><p>We could not complete your payment. Nothing was charged; please try again from the bot.</p></body></html>")
	}

	h.logger.Info("payment completed via return page",
		slog.String("order_id", orderID),
		slog.String("plan", string(sub.Plan)),
	)
	return c.HTML(http.StatusOK,
		"<html><body><h2>Payment complete</h2><p>Your <b>"+string(sub.Plan)+"</b> plan is active. You can close this page and return to Telegram.</p></body></html>")
}

type startCheckoutRequest struct {
	UserID     string `json:"user_id"`
	TelegramID int64  `json:"telegram_id"`
	Plan       string `json:"plan"`
}

// StartCheckout opens a checkout outside the bot flow, mainly for
// exercising the PayPal integration against the sandbox.
func (h *PaymentsHandler) StartCheckout(c echo.Context) error {
	var req startCheckoutRequest
	if err := c.Bind(&req); err != nil {
		return apiError(c, http.StatusBadRequest, "invalid body")
	}
	if req.UserID == "" || req.Plan == "" {
		return apiError(c, http.StatusBadRequest, "user_id and plan are required")
	}

	checkout, err := h.payments.StartCheckout(c.Request().Context(), req.UserID, req.TelegramID, subscriptions.Plan(req.Plan))
	if err != nil {
		if errors.Is(err, payments.ErrFreePlan) {
			return apiError(c, http.StatusBadRequest, "free plan needs no payment")
		}
		h.logger.Error("start checkout failed", slog.String("user_id", req.UserID), slog.Any("error", err))
		return apiError(c, http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusCreated, map[string]string{
		"order_id":    checkout.OrderID,
		"approve_url": checkout.ApproveURL,
		"plan":        string(checkout.Plan),
	})
}

// History lists a user's payments.
func (h *PaymentsHandler) History(c echo.Context) error {
	history, err := h.payments.History(c.Request().Context(), c.Param("user_id"))
	if err != nil {
		return apiError(c, http.StatusBadRequest, err.Error())
	}
	if history == nil {
		history = []payments.Payment{}
	}
	return c.JSON(http.StatusOK, history)
}

// Cancel marks the abandoned order so it never captures.
func (h *PaymentsHandler) Cancel(c echo.Context) error {
	orderID := c.QueryParam("token")
	if orderID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing order token")
	}

	if err := h.payments.Cancel(c.Request().Context(), orderID); err != nil && !errors.Is(err, payments.ErrOrderNotFound) {
		h.logger.Warn("cancel failed", slog.String("order_id", orderID), slog.Any("error", err))
	}
	return c.HTML(http.StatusOK,
		"<html><body><h2>Payment canceled</h2><p>No charge was made. You can pick a plan again from the bot at any time.</p></body></html>")
}
