package reviews

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

type Kind int

const (
	KindValidation Kind = iota + 1
	KindBusinessRule
	KindNotFound
	KindPersistence
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindBusinessRule:
		return "business_rule"
	case KindNotFound:
		return "not_found"
	case KindPersistence:
		return "persistence"
	}
	return "unknown"
}

// Reason is the machine-readable rejection code returned to callers.
type Reason string

const (
	ReasonInvalidInput             Reason = "invalid_input"
	ReasonListingIDRequired        Reason = "listing_id_required"
	ReasonReservationNotFound      Reason = "reservation_not_found"
	ReasonIncompleteReservation    Reason = "incomplete_reservation"
	ReasonNotAuthorized            Reason = "not_authorized"
	ReasonRevieweeNotInReservation Reason = "reviewee_not_in_reservation"
	ReasonListingNotInReservation  Reason = "listing_not_in_reservation"
	ReasonDuplicateReview          Reason = "duplicate_review"
	ReasonPersistenceFailure       Reason = "persistence_failure"
)

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type Error struct {
	Kind    Kind
	Reason  Reason
	Message string
	Fields  []FieldError
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error carrying the same reason.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Reason == e.Reason
}

var (
	ErrListingIDRequired = &Error{Kind: KindValidation, Reason: ReasonListingIDRequired,
		Message: "Listing ID is required for object reviews"}
	ErrReservationNotFound = &Error{Kind: KindNotFound, Reason: ReasonReservationNotFound,
		Message: "Reservation not found"}
	ErrIncompleteReservation = &Error{Kind: KindBusinessRule, Reason: ReasonIncompleteReservation,
		Message: "Cannot review an incomplete reservation"}
	ErrNotAuthorized = &Error{Kind: KindBusinessRule, Reason: ReasonNotAuthorized,
		Message: "User is not authorized to review this reservation"}
	ErrRevieweeNotInReservation = &Error{Kind: KindBusinessRule, Reason: ReasonRevieweeNotInReservation,
		Message: "Reviewee is not part of this reservation"}
	ErrListingNotInReservation = &Error{Kind: KindBusinessRule, Reason: ReasonListingNotInReservation,
		Message: "Listing is not part of this reservation"}
	ErrDuplicateReview = &Error{Kind: KindBusinessRule, Reason: ReasonDuplicateReview,
		Message: "You have already submitted a review for this reservation"}
)

func persistenceError(op string, err error) *Error {
	return &Error{
		Kind:    KindPersistence,
		Reason:  ReasonPersistenceFailure,
		Message: "An error occurred while saving the review",
		Err:     fmt.Errorf("%s: %w", op, err),
	}
}

func validationError(err error) *Error {
	e := &Error{Kind: KindValidation, Reason: ReasonInvalidInput, Message: "Invalid review data", Err: err}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			e.Fields = append(e.Fields, FieldError{Field: fe.Field(), Message: fieldMessage(fe)})
		}
	}
	return e
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_unless":
		return fmt.Sprintf("The %s field is required.", fe.Field())
	case "min":
		return fmt.Sprintf("The %s field must be at least %s.", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("The %s field must not be greater than %s.", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("The %s field must be one of: %s.", fe.Field(), fe.Param())
	}
	return fmt.Sprintf("The %s field is invalid.", fe.Field())
}

// KindOf classifies err; unknown errors count as persistence failures.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindPersistence
}
