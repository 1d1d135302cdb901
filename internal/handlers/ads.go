package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/snapfetch/snapfetch/internal/ads"
)

// AdsHandler manages the sponsor inventory and serves the tracked
// redirect that counts clicks.
type AdsHandler struct {
	ads    *ads.Manager
	logger *slog.Logger
}

func NewAdsHandler(log *slog.Logger, adsMgr *ads.Manager) *AdsHandler {
	return &AdsHandler{
		ads:    adsMgr,
		logger: log.With(slog.String("handler", "ads")),
	}
}

// Register mounts the inventory API and the public click redirect.
func (h *AdsHandler) Register(e *echo.Echo) {
	e.GET("/api/ads", h.List)
	e.POST("/api/ads", h.Create)
	e.DELETE("/api/ads/:id", h.Deactivate)
	e.GET("/a/:id", h.Click)
}

type createAdRequest struct {
	Text     string `json:"text"`
	URL      string `json:"url"`
	CPMCents int64  `json:"cpm_cents"`
	CPCCents int64  `json:"cpc_cents"`
}

// List returns the inventory with its counters.
func (h *AdsHandler) List(c echo.Context) error {
	return c.JSON(http.StatusOK, h.ads.Ads())
}

// Create puts a new advertisement into rotation.
func (h *AdsHandler) Create(c echo.Context) error {
	var req createAdRequest
	if err := c.Bind(&req); err != nil {
		return apiError(c, http.StatusBadRequest, "invalid body")
	}
	if req.Text == "" || req.URL == "" {
		return apiError(c, http.StatusBadRequest, "text and url are required")
	}
	id := h.ads.AddAd(req.Text, req.URL, req.CPMCents, req.CPCCents)
	h.logger.Info("advertisement created", slog.String("ad_id", id))
	return c.JSON(http.StatusCreated, map[string]string{"id": id})
}

// Deactivate pulls an advertisement from rotation.
func (h *AdsHandler) Deactivate(c echo.Context) error {
	if err := h.ads.Deactivate(c.Param("id")); err != nil {
		if errors.Is(err, ads.ErrNotFound) {
			return apiError(c, http.StatusNotFound, "advertisement not found")
		}
		return apiError(c, http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// Click counts the click and forwards the visitor to the sponsor. This
// is the URL embedded under sponsor messages in the bot.
func (h *AdsHandler) Click(c echo.Context) error {
	id := c.Param("id")
	for _, ad := range h.ads.Ads() {
		if ad.ID == id {
			if err := h.ads.RecordClick(id); err != nil {
				h.logger.Warn("record click failed", slog.String("ad_id", id), slog.Any("error", err))
			}
			return c.Redirect(http.StatusFound, ad.URL)
		}
	}
	return apiError(c, http.StatusNotFound, "advertisement not found")
}
