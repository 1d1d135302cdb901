// Package usage records completed downloads for quota enforcement and
// statistics.
package usage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/snapfetch/snapfetch/internal/db"
	"github.com/snapfetch/snapfetch/internal/media"
)

// Record is one completed download.
type Record struct {
	UserID      string
	Platform    media.Platform
	ContentType media.ContentType
	Strategy    string
	SizeBytes   int64
}

// Totals aggregates downloads for the stats surface.
type Totals struct {
	Downloads  int64            `json:"downloads"`
	Bytes      int64            `json:"bytes"`
	ByPlatform map[string]int64 `json:"by_platform"`
}

type Service struct {
	pool          *pgxpool.Pool
	logger        *slog.Logger
	retentionDays int
}

func NewService(log *slog.Logger, pool *pgxpool.Pool, retentionDays int) *Service {
	if log == nil {
		log = slog.Default()
	}
	if retentionDays <= 0 {
		retentionDays = 90
	}
	return &Service{
		pool:          pool,
		logger:        log.With(slog.String("service", "usage")),
		retentionDays: retentionDays,
	}
}

// Add stores one completed download.
func (s *Service) Add(ctx context.Context, rec Record) error {
	if s.pool == nil {
		return fmt.Errorf("usage store not configured")
	}
	pgID, err := db.ParseUUID(rec.UserID)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO usage (user_id, platform, content_type, strategy, size_bytes)
		VALUES ($1, $2, $3, $4, $5)`,
		pgID, string(rec.Platform), string(rec.ContentType), rec.Strategy, rec.SizeBytes,
	)
	return err
}

// CountToday returns the user's downloads since UTC midnight. The free
// tier quota resets on that boundary.
func (s *Service) CountToday(ctx context.Context, userID string) (int, error) {
	if s.pool == nil {
		return 0, fmt.Errorf("usage store not configured")
	}
	pgID, err := db.ParseUUID(userID)
	if err != nil {
		return 0, err
	}
	var count int
	err = s.pool.QueryRow(ctx, `
		SELECT count(*) FROM usage
		WHERE user_id = $1 AND created_at >= date_trunc('day', now() AT TIME ZONE 'utc')`,
		pgID,
	).Scan(&count)
	return count, err
}

// Stats aggregates all recorded downloads.
func (s *Service) Stats(ctx context.Context) (Totals, error) {
	if s.pool == nil {
		return Totals{}, fmt.Errorf("usage store not configured")
	}
	totals := Totals{ByPlatform: map[string]int64{}}
	rows, err := s.pool.Query(ctx, `
		SELECT platform, count(*), coalesce(sum(size_bytes), 0)
		FROM usage GROUP BY platform`,
	)
	if err != nil {
		return Totals{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			platform string
			count    int64
			bytes    int64
		)
		if err := rows.Scan(&platform, &count, &bytes); err != nil {
			return Totals{}, err
		}
		totals.ByPlatform[platform] = count
		totals.Downloads += count
		totals.Bytes += bytes
	}
	return totals, rows.Err()
}

// Purge drops usage rows older than the retention window. Run nightly.
func (s *Service) Purge(ctx context.Context) error {
	if s.pool == nil {
		return fmt.Errorf("usage store not configured")
	}
	cutoff := time.Now().AddDate(0, 0, -s.retentionDays)
	tag, err := s.pool.Exec(ctx, `DELETE FROM usage WHERE created_at < $1`, cutoff)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		s.logger.Info("purged usage records",
			slog.Int64("rows", tag.RowsAffected()),
			slog.Time("cutoff", cutoff),
		)
	}
	return nil
}
