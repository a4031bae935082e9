package reviews

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"rental_marketplace/pkg/models"
)

type reservationResolver interface {
	Resolve(ctx context.Context, reservationID uint) (Outcome, error)
}

type SweepReport struct {
	Checked  int
	Resolved int
	Failed   int
}

// Sweeper reveals reviews of reservations that ended more than a week ago,
// whether or not anybody submits another review.
type Sweeper struct {
	db       *gorm.DB
	resolver reservationResolver
	clock    Clock
	logger   *slog.Logger
}

func NewSweeper(db *gorm.DB, resolver reservationResolver, clock Clock, logger *slog.Logger) *Sweeper {
	return &Sweeper{db: db, resolver: resolver, clock: clock, logger: logger}
}

// RunOnce resolves every eligible reservation. A failing reservation is logged
// and skipped; only failing to list the candidates aborts the run.
func (s *Sweeper) RunOnce(ctx context.Context) (SweepReport, error) {
	var report SweepReport
	cutoff := s.clock.Now().AddDate(0, 0, -7)

	var ids []uint
	err := s.db.WithContext(ctx).Model(&models.Reservation{}).
		Where("status = ? AND end_date <= ?", models.ReservationCompleted, cutoff).
		Order("id").
		Pluck("id", &ids).Error
	if err != nil {
		return report, fmt.Errorf("select reservations to sweep: %w", err)
	}

	for _, id := range ids {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		report.Checked++
		out, err := s.resolver.Resolve(ctx, id)
		if err != nil {
			report.Failed++
			s.logger.ErrorContext(ctx, "Sweep failed for reservation",
				slog.Uint64("reservation_id", uint64(id)), slog.String("error", err.Error()))
			continue
		}
		if len(out.Revealed) > 0 {
			report.Resolved++
		}
	}

	s.logger.InfoContext(ctx, "Visibility sweep finished",
		slog.Int("checked", report.Checked),
		slog.Int("resolved", report.Resolved),
		slog.Int("failed", report.Failed))
	return report, nil
}

// Run sweeps immediately and then every interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
			s.logger.ErrorContext(ctx, "Visibility sweep failed", slog.String("error", err.Error()))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
