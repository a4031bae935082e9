package models

import (
	"time"
)

const (
	ReservationPending   = "pending"
	ReservationConfirmed = "confirmed"
	ReservationOngoing   = "ongoing"
	ReservationCompleted = "completed"
	ReservationCanceled  = "canceled"
	ReservationDeclined  = "declined"
)

const (
	ReviewForPartner = "forPartner"
	ReviewForClient  = "forClient"
	ReviewForObject  = "forObject"
)

const (
	ListingActive   = "active"
	ListingArchived = "archived"
	ListingInactive = "inactive"
)

type User struct {
	ID        uint   `gorm:"primaryKey"`
	Username  string `gorm:"size:80;not null"`
	Firstname string `gorm:"size:80"`
	Lastname  string `gorm:"size:80"`
	Email     string `gorm:"size:255;not null;uniqueIndex"`
	AvatarURL *string
	IsPartner bool `gorm:"not null;default:false"`

	// Rating caches, written only by the aggregator.
	ClientRating   *float64 `gorm:"type:decimal(3,1)"`
	ClientReviews  int      `gorm:"not null;default:0"`
	PartnerRating  *float64 `gorm:"type:decimal(3,1)"`
	PartnerReviews int      `gorm:"not null;default:0"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

type Listing struct {
	ID          uint    `gorm:"primaryKey"`
	PartnerID   uint    `gorm:"not null;index"`
	Title       string  `gorm:"not null"`
	PricePerDay float64 `gorm:"type:decimal(8,2);not null"`
	Status      string  `gorm:"size:20;not null;default:'active'"`

	EquipmentRating  *float64 `gorm:"type:decimal(3,1)"`
	EquipmentReviews int      `gorm:"not null;default:0"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

type Reservation struct {
	ID             uint      `gorm:"primaryKey"`
	ClientID       uint      `gorm:"not null;index"`
	PartnerID      uint      `gorm:"not null;index"`
	ListingID      uint      `gorm:"not null;index"`
	StartDate      time.Time `gorm:"not null"`
	EndDate        time.Time `gorm:"not null;index:idx_reservation_status_end,priority:2"`
	Status         string    `gorm:"size:20;not null;index:idx_reservation_status_end,priority:1"`
	TotalCost      float64   `gorm:"type:decimal(8,2)"`
	DeliveryOption bool      `gorm:"not null;default:false"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsParty reports whether userID is the client or the partner of the reservation.
func (r Reservation) IsParty(userID uint) bool {
	return userID == r.ClientID || userID == r.PartnerID
}

// OtherParty returns the counterpart of userID, or 0 if userID is not a party.
func (r Reservation) OtherParty(userID uint) uint {
	switch userID {
	case r.ClientID:
		return r.PartnerID
	case r.PartnerID:
		return r.ClientID
	}
	return 0
}

type Review struct {
	ID            uint   `gorm:"primaryKey"`
	ReservationID uint   `gorm:"not null;index;uniqueIndex:uq_review_reservation_reviewer_type,priority:1"`
	ReviewerID    uint   `gorm:"not null;uniqueIndex:uq_review_reservation_reviewer_type,priority:2"`
	RevieweeID    *uint  `gorm:"index:idx_review_reviewee,priority:1"`
	ListingID     *uint  `gorm:"index:idx_review_listing,priority:1"`
	Type          string `gorm:"size:20;not null;uniqueIndex:uq_review_reservation_reviewer_type,priority:3;index:idx_review_reviewee,priority:2;index:idx_review_listing,priority:2"`
	Rating        int    `gorm:"not null;check:rating >= 1 AND rating <= 5"`
	Comment       string `gorm:"type:text;not null"`
	IsVisible     bool   `gorm:"not null;default:false;index:idx_review_reviewee,priority:3;index:idx_review_listing,priority:3"`
	CreatedAt     time.Time

	Reservation Reservation `gorm:"foreignKey:ReservationID;constraint:OnDelete:CASCADE"`
}

var reservationTransitions = map[string][]string{
	ReservationPending:   {ReservationConfirmed, ReservationDeclined, ReservationCanceled},
	ReservationConfirmed: {ReservationOngoing, ReservationCompleted, ReservationCanceled},
	ReservationOngoing:   {ReservationCompleted},
}

// CanTransition reports whether a reservation may move from one status to
// another. Completed, canceled and declined reservations are final.
func CanTransition(from, to string) bool {
	for _, next := range reservationTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ActiveReservationStatuses block the listing for their dates.
var ActiveReservationStatuses = []string{ReservationPending, ReservationConfirmed, ReservationOngoing}
