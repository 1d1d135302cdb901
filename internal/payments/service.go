// Package payments handles PayPal checkout for subscription purchases.
package payments

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
	"github.com/snapfetch/snapfetch/internal/subscriptions"
)

// Payment statuses.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusCanceled  = "canceled"
)

var (
	ErrFreePlan        = errors.New("free plan needs no payment")
	ErrOrderNotFound   = errors.New("order not found")
	ErrCaptureDeclined = errors.New("paypal did not complete the capture")
)

// Checkout is a pending purchase awaiting buyer approval.
type Checkout struct {
	OrderID    string
	ApproveURL string
	Plan       subscriptions.Plan
}

// Granter resolves and activates subscription plans as payments settle.
type Granter interface {
	Grant(ctx context.Context, userID string, plan subscriptions.Plan) (subscriptions.Subscription, error)
	Current(ctx context.Context, userID string) (subscriptions.Subscription, error)
}

type Service struct {
	pool      *pgxpool.Pool
	paypal    *PayPalClient
	granter   Granter
	returnURL string
	cancelURL string
	logger    *slog.Logger

	// loadOrder is swappable in tests.
	loadOrder func(ctx context.Context, orderID string) (orderRow, error)
}

// NewService wires the payment flow. returnURL and cancelURL are the
// public landing endpoints PayPal redirects the buyer to.
func NewService(log *slog.Logger, pool *pgxpool.Pool, paypal *PayPalClient, granter Granter, returnURL, cancelURL string) *Service {
	if log == nil {
		log = slog.Default()
	}
	s := &Service{
		pool:      pool,
		paypal:    paypal,
		granter:   granter,
		returnURL: returnURL,
		cancelURL: cancelURL,
		logger:    log.With(slog.String("service", "payments")),
	}
	s.loadOrder = s.queryOrder
	return s
}

type orderRow struct {
	userID string
	plan   string
	status string
}

func (s *Service) queryOrder(ctx context.Context, orderID string) (orderRow, error) {
	var row orderRow
	err := s.pool.QueryRow(ctx, `
		SELECT user_id::text, plan, status FROM payments WHERE order_id = $1`, orderID,
	).Scan(&row.userID, &row.plan, &row.status)
	if errors.Is(err, pgx.ErrNoRows) {
		return orderRow{}, ErrOrderNotFound
	}
	return row, err
}

// StartCheckout opens a PayPal order for the plan and records the
// pending payment. The caller forwards the approval URL to the buyer.
func (s *Service) StartCheckout(ctx context.Context, userID string, telegramID int64, plan subscriptions.Plan) (Checkout, error) {
	if s.pool == nil || s.paypal == nil {
		return Checkout{}, fmt.Errorf("payment flow not configured")
	}
	spec := subscriptions.SpecFor(plan)
	if !spec.Paid() {
		return Checkout{}, ErrFreePlan
	}
	pgID, err := db.ParseUUID(userID)
	if err != nil {
		return Checkout{}, err
	}

	referenceID := fmt.Sprintf("telegram_%d_%s", telegramID, spec.Plan)
	amount := fmt.Sprintf("%d.%02d", spec.PriceCents/100, spec.PriceCents%100)
	description := fmt.Sprintf("%s plan, 30 days", spec.Title)

	order, err := s.paypal.CreateOrder(ctx, referenceID, userID, description, amount, s.returnURL, s.cancelURL)
	if err != nil {
		return Checkout{}, fmt.Errorf("create paypal order: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO payments (user_id, order_id, plan, amount_cents, currency, status)
		VALUES ($1, $2, $3, $4, 'USD', $5)`,
		pgID, order.ID, string(spec.Plan), spec.PriceCents, StatusPending,
	)
	if err != nil {
		return Checkout{}, fmt.Errorf("record pending payment: %w", err)
	}

	s.logger.Info("checkout started",
		slog.String("user_id", userID),
		slog.String("order_id", order.ID),
		slog.String("plan", string(spec.Plan)),
	)
	return Checkout{OrderID: order.ID, ApproveURL: order.ApproveURL, Plan: spec.Plan}, nil
}

// Complete captures an approved order and activates the purchased plan.
// Called from the PayPal return redirect.
func (s *Service) Complete(ctx context.Context, orderID string) (subscriptions.Subscription, error) {
	if s.pool == nil || s.paypal == nil {
		return subscriptions.Subscription{}, fmt.Errorf("payment flow not configured")
	}

	row, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return subscriptions.Subscription{}, err
	}
	if row.status == StatusCompleted {
		// The buyer reloaded the return page; the plan is already
		// active and granting again would extend the paid window.
		return s.granter.Current(ctx, row.userID)
	}

	captured, err := s.paypal.CaptureOrder(ctx, orderID)
	if err != nil {
		// The buyer may have submitted the return page twice and the
		// first capture won the race. Only a COMPLETED order rescues
		// the failed call.
		order, detailsErr := s.paypal.GetOrder(ctx, orderID)
		if detailsErr != nil || order.Status != "COMPLETED" {
			return subscriptions.Subscription{}, fmt.Errorf("capture order %s: %w", orderID, err)
		}
		captured = order
	}
	if captured.Status != "COMPLETED" {
		return subscriptions.Subscription{}, fmt.Errorf("%w: status %s", ErrCaptureDeclined, captured.Status)
	}

	if _, err := s.pool.Exec(ctx, `
		UPDATE payments SET status = $1, captured_at = now() WHERE order_id = $2`,
		StatusCompleted, orderID,
	); err != nil {
		return subscriptions.Subscription{}, err
	}

	sub, err := s.granter.Grant(ctx, row.userID, subscriptions.Plan(row.plan))
	if err != nil {
		return subscriptions.Subscription{}, fmt.Errorf("activate plan after capture: %w", err)
	}
	s.logger.Info("payment captured",
		slog.String("order_id", orderID),
		slog.String("plan", row.plan),
	)
	return sub, nil
}

// Cancel marks a pending payment as abandoned. Called from the PayPal
// cancel redirect.
func (s *Service) Cancel(ctx context.Context, orderID string) error {
	if s.pool == nil {
		return fmt.Errorf("payment flow not configured")
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE payments SET status = $1 WHERE order_id = $2 AND status = $3`,
		StatusCanceled, orderID, StatusPending,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// Payment is one recorded purchase attempt.
type Payment struct {
	OrderID     string             `json:"order_id"`
	UserID      string             `json:"user_id"`
	Plan        subscriptions.Plan `json:"plan"`
	AmountCents int64              `json:"amount_cents"`
	Status      string             `json:"status"`
	CreatedAt   time.Time          `json:"created_at"`
}

// History lists a user's payments, newest first.
func (s *Service) History(ctx context.Context, userID string) ([]Payment, error) {
	if s.pool == nil {
		return nil, fmt.Errorf("payment flow not configured")
	}
	pgID, err := db.ParseUUID(userID)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, `
		SELECT order_id, user_id::text, plan, amount_cents, status, created_at
		FROM payments WHERE user_id = $1 ORDER BY created_at DESC`, pgID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []Payment
	for rows.Next() {
		var p Payment
		var created pgtype.Timestamptz
		if err := rows.Scan(&p.OrderID, &p.UserID, &p.Plan, &p.AmountCents, &p.Status, &created); err != nil {
			return nil, err
		}
		p.CreatedAt = db.TimeFromPg(created)
		history = append(history, p)
	}
	return history, rows.Err()
}

// Revenue sums completed payments in cents.
func (s *Service) Revenue(ctx context.Context) (int64, error) {
	if s.pool == nil {
		return 0, fmt.Errorf("payment flow not configured")
	}
	var cents int64
	err := s.pool.QueryRow(ctx, `
		SELECT coalesce(sum(amount_cents), 0) FROM payments WHERE status = $1`,
		StatusCompleted,
	).Scan(&cents)
	return cents, err
}
