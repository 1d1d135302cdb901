// Package ads rotates sponsor messages shown to free-tier users and
// keeps the revenue bookkeeping for them. State is in-memory; the
// inventory is small and reloading it on restart is acceptable.
package ads

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("advertisement not found")

// Advertisement is one sponsor message. CPMCents is revenue per
// thousand impressions; CPCCents per click.
type Advertisement struct {
	ID          string `json:"id"`
	Text        string `json:"text"`
	URL         string `json:"url"`
	CPMCents    int64  `json:"cpm_cents"`
	CPCCents    int64  `json:"cpc_cents"`
	Impressions int64  `json:"impressions"`
	Clicks      int64  `json:"clicks"`
	Active      bool   `json:"active"`
}

// CTR is the click-through rate in percent.
func (a Advertisement) CTR() float64 {
	if a.Impressions == 0 {
		return 0
	}
	return float64(a.Clicks) / float64(a.Impressions) * 100
}

// RevenueCents combines impression and click revenue.
func (a Advertisement) RevenueCents() int64 {
	return a.Impressions*a.CPMCents/1000 + a.Clicks*a.CPCCents
}

// AffiliateLink is a partner link appended to bot replies.
type AffiliateLink struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	URL         string `json:"url"`
	Clicks      int64  `json:"clicks"`
	Conversions int64  `json:"conversions"`
}

// Manager owns the ad inventory and rotation cursor.
type Manager struct {
	mu     sync.Mutex
	ads    []*Advertisement
	links  []*AffiliateLink
	cursor int
	logger *slog.Logger
}

func NewManager(log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{logger: log.With(slog.String("service", "ads"))}
}

// AddAd puts a new advertisement into rotation and returns its id.
func (m *Manager) AddAd(text, url string, cpmCents, cpcCents int64) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ad := &Advertisement{
		ID:       uuid.NewString(),
		Text:     text,
		URL:      url,
		CPMCents: cpmCents,
		CPCCents: cpcCents,
		Active:   true,
	}
	m.ads = append(m.ads, ad)
	return ad.ID
}

// Next returns the next active advertisement in round-robin order and
// counts the impression. Returns false when nothing is in rotation.
func (m *Manager) Next() (Advertisement, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.ads) == 0 {
		return Advertisement{}, false
	}
	for range m.ads {
		ad := m.ads[m.cursor%len(m.ads)]
		m.cursor++
		if !ad.Active {
			continue
		}
		ad.Impressions++
		return *ad, true
	}
	return Advertisement{}, false
}

// RecordClick counts a click on the advertisement.
func (m *Manager) RecordClick(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ad := range m.ads {
		if ad.ID == id {
			ad.Clicks++
			return nil
		}
	}
	return ErrNotFound
}

// Deactivate pulls an advertisement from rotation, keeping its stats.
func (m *Manager) Deactivate(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ad := range m.ads {
		if ad.ID == id {
			ad.Active = false
			return nil
		}
	}
	return ErrNotFound
}

// Ads returns a snapshot of the inventory.
func (m *Manager) Ads() []Advertisement {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Advertisement, 0, len(m.ads))
	for _, ad := range m.ads {
		out = append(out, *ad)
	}
	return out
}

// TotalRevenueCents sums revenue across the inventory.
func (m *Manager) TotalRevenueCents() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total int64
	for _, ad := range m.ads {
		total += ad.RevenueCents()
	}
	return total
}

// AddLink registers an affiliate link and returns its id.
func (m *Manager) AddLink(label, url string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	link := &AffiliateLink{ID: uuid.NewString(), Label: label, URL: url}
	m.links = append(m.links, link)
	return link.ID
}

// RecordLinkClick counts a click; RecordConversion counts a completed
// signup attributed to the link.
func (m *Manager) RecordLinkClick(id string) error {
	return m.updateLink(id, func(l *AffiliateLink) { l.Clicks++ })
}

func (m *Manager) RecordConversion(id string) error {
	return m.updateLink(id, func(l *AffiliateLink) { l.Conversions++ })
}

// Links returns a snapshot of the affiliate links.
func (m *Manager) Links() []AffiliateLink {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]AffiliateLink, 0, len(m.links))
	for _, link := range m.links {
		out = append(out, *link)
	}
	return out
}

func (m *Manager) updateLink(id string, apply func(*AffiliateLink)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, link := range m.links {
		if link.ID == id {
			apply(link)
			return nil
		}
	}
	return ErrNotFound
}
