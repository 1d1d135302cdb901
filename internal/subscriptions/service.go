// Package subscriptions manages the tier each user is entitled to.
package subscriptions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/snapfetch/snapfetch/internal/db"
)

var (
	ErrUnknownPlan  = errors.New("unknown plan")
	ErrPromoInvalid = errors.New("promo code is invalid or exhausted")
)

type Service struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
	now    func() time.Time
}

func NewService(log *slog.Logger, pool *pgxpool.Pool) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		pool:   pool,
		logger: log.With(slog.String("service", "subscriptions")),
		now:    time.Now,
	}
}

// Current returns the user's effective subscription. A missing or
// lapsed subscription degrades to the free tier rather than erroring;
// lapsed rows are deactivated on sight.
func (s *Service) Current(ctx context.Context, userID string) (Subscription, error) {
	if s.pool == nil {
		return Subscription{}, fmt.Errorf("subscription store not configured")
	}
	pgID, err := db.ParseUUID(userID)
	if err != nil {
		return Subscription{}, err
	}

	row := s.pool.QueryRow(ctx, `
		SELECT id, user_id, plan, started_at, expires_at, active
		FROM subscriptions
		WHERE user_id = $1 AND active
		ORDER BY started_at DESC
		LIMIT 1`, pgID,
	)
	sub, err := scanSubscription(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return freeSubscription(userID), nil
	}
	if err != nil {
		return Subscription{}, err
	}
	if sub.Expired(s.now()) {
		if _, err := s.pool.Exec(ctx, `UPDATE subscriptions SET active = false WHERE id = $1`, sub.ID); err != nil {
			s.logger.Warn("deactivate lapsed subscription failed",
				slog.String("subscription_id", sub.ID), slog.Any("error", err))
		}
		return freeSubscription(userID), nil
	}
	return sub, nil
}

// Grant activates plan for the user, replacing any previous
// subscription. The expiry comes from the plan catalog.
func (s *Service) Grant(ctx context.Context, userID string, plan Plan) (Subscription, error) {
	spec := SpecFor(plan)
	if spec.Plan != plan {
		return Subscription{}, ErrUnknownPlan
	}
	return s.grant(ctx, userID, spec, spec.DurationDays)
}

func (s *Service) grant(ctx context.Context, userID string, spec Spec, durationDays int) (Subscription, error) {
	if s.pool == nil {
		return Subscription{}, fmt.Errorf("subscription store not configured")
	}
	pgID, err := db.ParseUUID(userID)
	if err != nil {
		return Subscription{}, err
	}

	var expires *time.Time
	if durationDays > 0 {
		t := s.now().AddDate(0, 0, durationDays)
		expires = &t
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Subscription{}, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `UPDATE subscriptions SET active = false WHERE user_id = $1 AND active`, pgID); err != nil {
		return Subscription{}, err
	}
	row := tx.QueryRow(ctx, `
		INSERT INTO subscriptions (user_id, plan, started_at, expires_at, active)
		VALUES ($1, $2, now(), $3, true)
		RETURNING id, user_id, plan, started_at, expires_at, active`,
		pgID, string(spec.Plan), expires,
	)
	sub, err := scanSubscription(row)
	if err != nil {
		return Subscription{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Subscription{}, err
	}

	s.logger.Info("subscription granted",
		slog.String("user_id", userID),
		slog.String("plan", string(spec.Plan)),
	)
	return sub, nil
}

// RedeemPromo grants the plan attached to a promo code, consuming one
// use. Exhausted, expired, and unknown codes all answer ErrPromoInvalid
// so the bot does not leak which codes exist.
func (s *Service) RedeemPromo(ctx context.Context, userID, code string) (Subscription, error) {
	if s.pool == nil {
		return Subscription{}, fmt.Errorf("subscription store not configured")
	}

	var (
		plan         string
		durationDays int
	)
	err := s.pool.QueryRow(ctx, `
		UPDATE promo_codes
		SET used_count = used_count + 1
		WHERE code = $1
		  AND (max_uses = 0 OR used_count < max_uses)
		  AND (expires_at IS NULL OR expires_at > now())
		RETURNING plan, duration_days`, code,
	).Scan(&plan, &durationDays)
	if errors.Is(err, pgx.ErrNoRows) {
		return Subscription{}, ErrPromoInvalid
	}
	if err != nil {
		return Subscription{}, err
	}
	return s.grant(ctx, userID, SpecFor(Plan(plan)), durationDays)
}

// CountActive returns the number of active paid subscriptions.
func (s *Service) CountActive(ctx context.Context) (int64, error) {
	if s.pool == nil {
		return 0, fmt.Errorf("subscription store not configured")
	}
	var count int64
	err := s.pool.QueryRow(ctx, `
		SELECT count(*) FROM subscriptions
		WHERE active AND (expires_at IS NULL OR expires_at > now())`,
	).Scan(&count)
	return count, err
}

func freeSubscription(userID string) Subscription {
	return Subscription{UserID: userID, Plan: PlanFree, Active: true}
}

func scanSubscription(row pgx.Row) (Subscription, error) {
	var (
		sub     Subscription
		id      pgtype.UUID
		userID  pgtype.UUID
		expires pgtype.Timestamptz
	)
	if err := row.Scan(&id, &userID, &sub.Plan, &sub.StartedAt, &expires, &sub.Active); err != nil {
		return Subscription{}, err
	}
	sub.ID = db.UUIDToString(id)
	sub.UserID = db.UUIDToString(userID)
	sub.ExpiresAt = db.TimeFromPg(expires)
	return sub, nil
}
