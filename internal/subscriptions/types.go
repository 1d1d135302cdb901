package subscriptions

import (
	"fmt"
	"time"
)

// Plan is a subscription tier name.
type Plan string

const (
	PlanFree    Plan = "free"
	PlanBasic   Plan = "basic"
	PlanPro     Plan = "pro"
	PlanPremium Plan = "premium"
)

// Spec describes what a plan costs and permits. DailyDownloads of 0
// means unlimited; DurationDays of 0 means the plan never expires.
type Spec struct {
	Plan           Plan
	Title          string
	PriceCents     int64
	DailyDownloads int
	MaxFileMB      int64
	DurationDays   int
}

// specs is the plan catalog, ordered cheapest first.
var specs = []Spec{
	{Plan: PlanFree, Title: "Free", PriceCents: 0, DailyDownloads: 5, MaxFileMB: 50, DurationDays: 0},
	{Plan: PlanBasic, Title: "Basic", PriceCents: 299, DailyDownloads: 0, MaxFileMB: 100, DurationDays: 30},
	{Plan: PlanPro, Title: "Pro", PriceCents: 499, DailyDownloads: 0, MaxFileMB: 200, DurationDays: 30},
	{Plan: PlanPremium, Title: "Premium", PriceCents: 999, DailyDownloads: 0, MaxFileMB: 500, DurationDays: 30},
}

// SpecFor returns the catalog entry for the plan, falling back to the
// free tier for unknown names.
func SpecFor(plan Plan) Spec {
	for _, s := range specs {
		if s.Plan == plan {
			return s
		}
	}
	return specs[0]
}

// Catalog returns every plan, cheapest first.
func Catalog() []Spec {
	out := make([]Spec, len(specs))
	copy(out, specs)
	return out
}

// Paid reports whether the plan costs money.
func (s Spec) Paid() bool { return s.PriceCents > 0 }

// MaxFileBytes is the per-download size ceiling.
func (s Spec) MaxFileBytes() int64 { return s.MaxFileMB << 20 }

// Price formats the plan price in dollars.
func (s Spec) Price() string {
	if s.PriceCents == 0 {
		return "free"
	}
	return fmt.Sprintf("$%d.%02d", s.PriceCents/100, s.PriceCents%100)
}

// Subscription is one granted tier for a user. A zero ExpiresAt means
// the subscription never lapses.
type Subscription struct {
	ID        string
	UserID    string
	Plan      Plan
	StartedAt time.Time
	ExpiresAt time.Time
	Active    bool
}

// Expired reports whether the subscription has lapsed at the given time.
func (s Subscription) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}
