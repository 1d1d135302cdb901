package handlers

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/snapfetch/snapfetch/internal/ads"
	"github.com/snapfetch/snapfetch/internal/payments"
	"github.com/snapfetch/snapfetch/internal/subscriptions"
	"github.com/snapfetch/snapfetch/internal/usage"
	"github.com/snapfetch/snapfetch/internal/users"
)

// StatsHandler serves the operator metrics endpoint.
type StatsHandler struct {
	users         *users.Service
	subscriptions *subscriptions.Service
	usage         *usage.Service
	payments      *payments.Service
	ads           *ads.Manager
	logger        *slog.Logger
}

func NewStatsHandler(log *slog.Logger, usersSvc *users.Service, subsSvc *subscriptions.Service,
	usageSvc *usage.Service, paymentsSvc *payments.Service, adsMgr *ads.Manager,
) *StatsHandler {
	return &StatsHandler{
		users:         usersSvc,
		subscriptions: subsSvc,
		usage:         usageSvc,
		payments:      paymentsSvc,
		ads:           adsMgr,
		logger:        log.With(slog.String("handler", "stats")),
	}
}

// Register mounts GET /api/stats.
func (h *StatsHandler) Register(e *echo.Echo) {
	e.GET("/api/stats", h.Stats)
}

type statsResponse struct {
	Users               int64               `json:"users"`
	ActiveSubscriptions int64               `json:"active_subscriptions"`
	Downloads           usage.Totals        `json:"downloads"`
	RevenueCents        int64               `json:"revenue_cents"`
	AdRevenueCents      int64               `json:"ad_revenue_cents"`
	Ads                 []ads.Advertisement `json:"ads"`
}

// Stats aggregates user, subscription, download, and revenue counters.
func (h *StatsHandler) Stats(c echo.Context) error {
	ctx := c.Request().Context()

	userCount, err := h.users.Count(ctx)
	if err != nil {
		return apiError(c, http.StatusInternalServerError, err.Error())
	}
	activeSubs, err := h.subscriptions.CountActive(ctx)
	if err != nil {
		return apiError(c, http.StatusInternalServerError, err.Error())
	}
	totals, err := h.usage.Stats(ctx)
	if err != nil {
		return apiError(c, http.StatusInternalServerError, err.Error())
	}
	revenue, err := h.payments.Revenue(ctx)
	if err != nil {
		return apiError(c, http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, statsResponse{
		Users:               userCount,
		ActiveSubscriptions: activeSubs,
		Downloads:           totals,
		RevenueCents:        revenue,
		AdRevenueCents:      h.ads.TotalRevenueCents(),
		Ads:                 h.ads.Ads(),
	})
}
