package reviews

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"rental_marketplace/pkg/models"
)

type TargetKind int

const (
	TargetPartner TargetKind = iota + 1
	TargetClient
	TargetListing
)

func (k TargetKind) String() string {
	switch k {
	case TargetPartner:
		return "partner"
	case TargetClient:
		return "client"
	case TargetListing:
		return "listing"
	}
	return "unknown"
}

// Target is an entity carrying a rating cache: a user rated as partner or as
// client, or a listing.
type Target struct {
	Kind TargetKind
	ID   uint
}

// Aggregate is the cached mean rating and count of a target.
type Aggregate struct {
	Average *float64
	Count   int64
}

// targetSpec describes where a target's reviews and cache columns live.
type targetSpec struct {
	model        func() interface{}
	reviewType   string
	matchColumn  string
	ratingColumn string
	countColumn  string
}

var targetSpecs = map[TargetKind]targetSpec{
	TargetPartner: {newUser, models.ReviewForPartner, "reviewee_id", "partner_rating", "partner_reviews"},
	TargetClient:  {newUser, models.ReviewForClient, "reviewee_id", "client_rating", "client_reviews"},
	TargetListing: {newListing, models.ReviewForObject, "listing_id", "equipment_rating", "equipment_reviews"},
}

func newUser() interface{}    { return &models.User{} }
func newListing() interface{} { return &models.Listing{} }

// TargetOf returns the entity whose rating a review contributes to.
func TargetOf(review models.Review) (Target, bool) {
	switch review.Type {
	case models.ReviewForPartner:
		if review.RevieweeID != nil {
			return Target{Kind: TargetPartner, ID: *review.RevieweeID}, true
		}
	case models.ReviewForClient:
		if review.RevieweeID != nil {
			return Target{Kind: TargetClient, ID: *review.RevieweeID}, true
		}
	case models.ReviewForObject:
		if review.ListingID != nil {
			return Target{Kind: TargetListing, ID: *review.ListingID}, true
		}
	}
	return Target{}, false
}

// sortTargets orders targets users first, then listings, by id, so concurrent
// resolvers always take row locks in the same order.
func sortTargets(targets []Target) {
	table := func(k TargetKind) int {
		if k == TargetListing {
			return 1
		}
		return 0
	}
	sort.Slice(targets, func(i, j int) bool {
		a, b := targets[i], targets[j]
		if table(a.Kind) != table(b.Kind) {
			return table(a.Kind) < table(b.Kind)
		}
		if a.ID != b.ID {
			return a.ID < b.ID
		}
		return a.Kind < b.Kind
	})
}

// RoundRating rounds a mean rating to one decimal place.
func RoundRating(avg float64) float64 {
	return math.Round(avg*10) / 10
}

// Aggregator recomputes rating caches from the full visible review set. It
// never adjusts a running average.
type Aggregator struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewAggregator(db *gorm.DB, logger *slog.Logger) *Aggregator {
	return &Aggregator{db: db, logger: logger}
}

// Recompute refreshes the cache of target in its own transaction.
func (a *Aggregator) Recompute(ctx context.Context, target Target) (Aggregate, error) {
	var agg Aggregate
	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		agg, err = a.recompute(tx, target)
		return err
	})
	return agg, err
}

// recompute runs inside tx. The target row is locked first so that two
// transactions revealing reviews for the same target serialize, and the second
// one counts the first one's reviews.
func (a *Aggregator) recompute(tx *gorm.DB, target Target) (Aggregate, error) {
	spec, ok := targetSpecs[target.Kind]
	if !ok {
		return Aggregate{}, fmt.Errorf("unknown rating target kind %d", target.Kind)
	}

	var locked []uint
	err := tx.Model(spec.model()).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", target.ID).
		Pluck("id", &locked).Error
	if err != nil {
		return Aggregate{}, fmt.Errorf("lock %s %d: %w", target.Kind, target.ID, err)
	}
	if len(locked) == 0 {
		a.logger.WarnContext(tx.Statement.Context, "Rating target not found, cache not updated",
			slog.String("kind", target.Kind.String()), slog.Uint64("id", uint64(target.ID)))
		return Aggregate{}, nil
	}

	var row struct {
		Count   int64
		Average sql.NullFloat64
	}
	err = tx.Model(&models.Review{}).
		Select("COUNT(*) AS count, AVG(rating) AS average").
		Where(spec.matchColumn+" = ? AND type = ? AND is_visible = ?", target.ID, spec.reviewType, true).
		Scan(&row).Error
	if err != nil {
		return Aggregate{}, fmt.Errorf("aggregate %s %d: %w", target.Kind, target.ID, err)
	}

	agg := Aggregate{Count: row.Count}
	if row.Count > 0 && row.Average.Valid {
		avg := RoundRating(row.Average.Float64)
		agg.Average = &avg
	}

	err = tx.Model(spec.model()).
		Where("id = ?", target.ID).
		Updates(map[string]interface{}{
			spec.ratingColumn: agg.Average,
			spec.countColumn:  agg.Count,
		}).Error
	if err != nil {
		return Aggregate{}, fmt.Errorf("update %s %d rating: %w", target.Kind, target.ID, err)
	}

	a.logger.InfoContext(tx.Statement.Context, "Rating recomputed",
		slog.String("kind", target.Kind.String()), slog.Uint64("id", uint64(target.ID)),
		slog.Int64("count", agg.Count))
	return agg, nil
}
