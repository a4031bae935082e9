package reviews

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"rental_marketplace/pkg/models"
	"rental_marketplace/pkg/notify"
)

// Notifier dispatches mail without waiting for delivery.
type Notifier interface {
	Dispatch(ctx context.Context, msg notify.Message) error
}

type SubmitInput struct {
	ReviewerID    uint   `json:"reviewer_id" validate:"required"`
	RevieweeID    *uint  `json:"reviewee_id" validate:"required_unless=Type forObject,omitempty,min=1"`
	ReservationID uint   `json:"reservation_id" validate:"required"`
	ListingID     *uint  `json:"listing_id" validate:"omitempty,min=1"`
	Rating        int    `json:"rating" validate:"required,min=1,max=5"`
	Comment       string `json:"comment" validate:"required,min=5,max=500"`
	Type          string `json:"type" validate:"required,oneof=forPartner forClient forObject"`
}

// NewValidator returns a validator reporting fields by their json names.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type Service struct {
	db       *gorm.DB
	resolver *Resolver
	notifier Notifier
	validate *validator.Validate
	clock    Clock
	logger   *slog.Logger
}

func NewService(db *gorm.DB, resolver *Resolver, notifier Notifier, clock Clock, logger *slog.Logger) *Service {
	return &Service{
		db:       db,
		resolver: resolver,
		notifier: notifier,
		validate: NewValidator(),
		clock:    clock,
		logger:   logger,
	}
}

// Submit records a hidden review, runs the visibility rules for its
// reservation and returns the review with its resulting visibility. Nothing is
// written when an error is returned.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*models.Review, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, validationError(err)
	}

	review := &models.Review{
		ReservationID: in.ReservationID,
		ReviewerID:    in.ReviewerID,
		Rating:        in.Rating,
		Comment:       in.Comment,
		Type:          in.Type,
		IsVisible:     false,
		CreatedAt:     s.clock.Now(),
	}

	var reservation models.Reservation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		reservation, err = lockReservation(tx, in.ReservationID)
		if err != nil {
			return err
		}
		if err := checkEligibility(reservation, in); err != nil {
			return err
		}
		if in.Type == models.ReviewForObject {
			review.ListingID = in.ListingID
		} else {
			review.RevieweeID = in.RevieweeID
		}

		var existing int64
		err = tx.Model(&models.Review{}).
			Where("reservation_id = ? AND reviewer_id = ? AND type = ?", in.ReservationID, in.ReviewerID, in.Type).
			Count(&existing).Error
		if err != nil {
			return fmt.Errorf("check existing review: %w", err)
		}
		if existing > 0 {
			return ErrDuplicateReview
		}

		if err := tx.Omit(clause.Associations).Create(review).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateReview
			}
			return fmt.Errorf("insert review: %w", err)
		}

		out, err := s.resolver.resolve(tx, reservation)
		if err != nil {
			return err
		}
		for _, id := range out.Revealed {
			if id == review.ID {
				review.IsVisible = true
			}
		}
		return nil
	})
	if err != nil {
		var e *Error
		if errors.As(err, &e) {
			return nil, e
		}
		s.logger.ErrorContext(ctx, "Review submission failed",
			slog.Uint64("reservation_id", uint64(in.ReservationID)), slog.String("error", err.Error()))
		return nil, persistenceError("submit review", err)
	}

	s.logger.InfoContext(ctx, "Review submitted",
		slog.Uint64("review_id", uint64(review.ID)),
		slog.Uint64("reservation_id", uint64(review.ReservationID)),
		slog.String("type", review.Type),
		slog.Bool("visible", review.IsVisible))

	s.notify(ctx, reservation, review)
	return review, nil
}

// checkEligibility applies the business rules in the order callers see them.
func checkEligibility(reservation models.Reservation, in SubmitInput) error {
	if reservation.Status != models.ReservationCompleted {
		return ErrIncompleteReservation
	}
	if !reservation.IsParty(in.ReviewerID) {
		return ErrNotAuthorized
	}

	switch in.Type {
	case models.ReviewForObject:
		if in.ListingID == nil || *in.ListingID == 0 {
			return ErrListingIDRequired
		}
		if *in.ListingID != reservation.ListingID {
			return ErrListingNotInReservation
		}
	default:
		reviewee := *in.RevieweeID
		if reviewee != reservation.OtherParty(in.ReviewerID) {
			return ErrRevieweeNotInReservation
		}
		// a partner review rates the partner, a client review rates the client
		if in.Type == models.ReviewForPartner && reviewee != reservation.PartnerID ||
			in.Type == models.ReviewForClient && reviewee != reservation.ClientID {
			return ErrRevieweeNotInReservation
		}
	}
	return nil
}

// notify mails the reviewed party, or the listing owner for object reviews.
// Failures are logged only.
func (s *Service) notify(ctx context.Context, reservation models.Reservation, review *models.Review) {
	if s.notifier == nil {
		return
	}

	recipientID := reservation.PartnerID
	if review.RevieweeID != nil {
		recipientID = *review.RevieweeID
	}

	var recipient models.User
	if err := s.db.WithContext(ctx).First(&recipient, recipientID).Error; err != nil {
		s.logger.WarnContext(ctx, "Review notification skipped, recipient not found",
			slog.Uint64("user_id", uint64(recipientID)), slog.String("error", err.Error()))
		return
	}
	if err := s.validate.Var(recipient.Email, "required,email"); err != nil {
		s.logger.WarnContext(ctx, "Review notification skipped, invalid email",
			slog.Uint64("user_id", uint64(recipientID)))
		return
	}

	msg := notify.Message{
		To:      recipient.Email,
		Subject: "You received a new review",
		Body: fmt.Sprintf("Hello %s,\n\nA new %d-star review was submitted for reservation #%d. "+
			"It will be published once both sides have reviewed or one week after the rental ended.\n",
			recipient.Firstname, review.Rating, review.ReservationID),
	}
	if err := s.notifier.Dispatch(ctx, msg); err != nil {
		s.logger.ErrorContext(ctx, "Review notification failed",
			slog.Uint64("review_id", uint64(review.ID)), slog.String("error", err.Error()))
	}
}
