package reviews

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"rental_marketplace/pkg/models"
)

type Rule int

const (
	RuleNone Rule = iota
	RuleReciprocity
	RuleTimeout
)

func (r Rule) String() string {
	switch r {
	case RuleReciprocity:
		return "reciprocity"
	case RuleTimeout:
		return "timeout"
	}
	return "none"
}

// Decision is the outcome of evaluating the visibility rules once.
type Decision struct {
	Rule   Rule
	Reveal []models.Review
}

// RevealDeadline returns the instant at which the timeout rule starts to apply:
// one week after the reservation ends.
func RevealDeadline(end time.Time) time.Time {
	return end.AddDate(0, 0, 7)
}

// Decide picks the rule that applies to reservation and lists the hidden
// reviews it reveals. Reviews must be ordered by id.
func Decide(reservation models.Reservation, reviews []models.Review, now time.Time) Decision {
	var fromClient, fromPartner, object *models.Review
	for i := range reviews {
		r := &reviews[i]
		switch {
		case r.Type == models.ReviewForPartner && r.ReviewerID == reservation.ClientID && fromClient == nil:
			fromClient = r
		case r.Type == models.ReviewForClient && r.ReviewerID == reservation.PartnerID && fromPartner == nil:
			fromPartner = r
		case r.Type == models.ReviewForObject && object == nil:
			object = r
		}
	}

	expired := !now.Before(RevealDeadline(reservation.EndDate))

	if fromClient != nil && fromPartner != nil && object != nil {
		reveal := hidden(*fromClient, *fromPartner, *object)
		// reviews outside the reciprocal three still open at the deadline
		if all := hidden(reviews...); expired && len(all) > len(reveal) {
			return Decision{Rule: RuleTimeout, Reveal: all}
		}
		return Decision{Rule: RuleReciprocity, Reveal: reveal}
	}

	if expired {
		return Decision{Rule: RuleTimeout, Reveal: hidden(reviews...)}
	}
	return Decision{Rule: RuleNone}
}

func hidden(reviews ...models.Review) []models.Review {
	var out []models.Review
	for _, r := range reviews {
		if !r.IsVisible {
			out = append(out, r)
		}
	}
	return out
}

// Outcome reports what one resolver call changed.
type Outcome struct {
	ReservationID uint
	Rule          Rule
	Revealed      []uint
	Recomputed    []Target
}

// Resolver applies the visibility rules to a reservation and refreshes the
// ratings of every target whose visible set changed.
type Resolver struct {
	db         *gorm.DB
	aggregator *Aggregator
	clock      Clock
	logger     *slog.Logger
}

func NewResolver(db *gorm.DB, aggregator *Aggregator, clock Clock, logger *slog.Logger) *Resolver {
	return &Resolver{db: db, aggregator: aggregator, clock: clock, logger: logger}
}

// Resolve evaluates reservationID in its own transaction.
func (r *Resolver) Resolve(ctx context.Context, reservationID uint) (Outcome, error) {
	var out Outcome
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		reservation, err := lockReservation(tx, reservationID)
		if err != nil {
			return err
		}
		out, err = r.resolve(tx, reservation)
		return err
	})
	return out, err
}

// lockReservation loads the reservation with a row lock held until the
// surrounding transaction ends; every resolver call for the same reservation
// waits on it.
func lockReservation(tx *gorm.DB, id uint) (models.Reservation, error) {
	var reservation models.Reservation
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&reservation, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return reservation, ErrReservationNotFound
	}
	if err != nil {
		return reservation, fmt.Errorf("load reservation %d: %w", id, err)
	}
	return reservation, nil
}

// resolve runs inside tx with the reservation row already locked.
func (r *Resolver) resolve(tx *gorm.DB, reservation models.Reservation) (Outcome, error) {
	ctx := tx.Statement.Context
	out := Outcome{ReservationID: reservation.ID}

	var reviews []models.Review
	if err := tx.Where("reservation_id = ?", reservation.ID).Order("id").Find(&reviews).Error; err != nil {
		return out, fmt.Errorf("load reviews of reservation %d: %w", reservation.ID, err)
	}

	decision := Decide(reservation, reviews, r.clock.Now())
	out.Rule = decision.Rule
	if len(decision.Reveal) == 0 {
		return out, nil
	}

	seen := make(map[Target]bool)
	var targets []Target
	for _, review := range decision.Reveal {
		res := tx.Model(&models.Review{}).
			Where("id = ? AND is_visible = ?", review.ID, false).
			Update("is_visible", true)
		if res.Error != nil {
			return out, fmt.Errorf("reveal review %d: %w", review.ID, res.Error)
		}
		if res.RowsAffected == 0 {
			continue
		}
		out.Revealed = append(out.Revealed, review.ID)

		target, ok := TargetOf(review)
		if !ok || seen[target] {
			continue
		}
		seen[target] = true
		targets = append(targets, target)
	}

	sortTargets(targets)
	for _, target := range targets {
		if _, err := r.aggregator.recompute(tx, target); err != nil {
			return out, err
		}
		out.Recomputed = append(out.Recomputed, target)
	}

	if len(out.Revealed) > 0 {
		r.logger.InfoContext(ctx, "Reviews revealed",
			slog.Uint64("reservation_id", uint64(reservation.ID)),
			slog.String("rule", decision.Rule.String()),
			slog.Int("count", len(out.Revealed)))
	}
	return out, nil
}
