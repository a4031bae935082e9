package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"rental_marketplace/pkg/models"
)

var (
	errListingBooked     = errors.New("listing already booked for the requested period")
	errSelfBooking       = errors.New("partners cannot book their own listing")
	errInvalidTransition = errors.New("invalid status transition")
)

type createReservationRequest struct {
	ClientID       uint   `json:"client_id" binding:"required"`
	ListingID      uint   `json:"listing_id" binding:"required"`
	StartDate      string `json:"start_date" binding:"required"`
	EndDate        string `json:"end_date" binding:"required"`
	DeliveryOption bool   `json:"delivery_option"`
}

type updateStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=pending confirmed ongoing completed canceled declined"`
}

func reservationJSON(r models.Reservation) gin.H {
	return gin.H{
		"id":              r.ID,
		"client_id":       r.ClientID,
		"partner_id":      r.PartnerID,
		"listing_id":      r.ListingID,
		"start_date":      r.StartDate.Format(time.DateOnly),
		"end_date":        r.EndDate.Format(time.DateOnly),
		"status":          r.Status,
		"total_cost":      r.TotalCost,
		"delivery_option": r.DeliveryOption,
		"created_at":      r.CreatedAt,
	}
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"status": http.StatusBadRequest, "message": message})
}

// rentalDays counts the billed days between two dates, at least one.
func rentalDays(start, end time.Time) int {
	days := int(math.Round(end.Sub(start).Hours() / 24))
	if days < 1 {
		return 1
	}
	return days
}

func (h *Handler) CreateReservation(c *gin.Context) {
	var req createReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request format")
		return
	}
	start, err := time.Parse(time.DateOnly, req.StartDate)
	if err != nil {
		badRequest(c, "start_date must be a YYYY-MM-DD date")
		return
	}
	end, err := time.Parse(time.DateOnly, req.EndDate)
	if err != nil {
		badRequest(c, "end_date must be a YYYY-MM-DD date")
		return
	}
	now := h.clock.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if start.Before(today) {
		badRequest(c, "start_date must be today or later")
		return
	}
	if !end.After(start) {
		badRequest(c, "end_date must be after start_date")
		return
	}

	ctx := c.Request.Context()
	var client models.User
	found, err := h.exists(c, &client, req.ClientID)
	if err != nil {
		internalError(c, "failed to load client")
		return
	}
	if !found {
		notFound(c, fmt.Sprintf("User with ID %d not found", req.ClientID))
		return
	}

	var reservation models.Reservation
	err = h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var listing models.Listing
		// the listing row lock serializes bookings of the same listing
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&listing, req.ListingID).Error; err != nil {
			return err
		}
		if listing.PartnerID == client.ID {
			return errSelfBooking
		}

		var overlapping int64
		err := tx.Model(&models.Reservation{}).
			Where("listing_id = ? AND status IN ?", listing.ID, models.ActiveReservationStatuses).
			Where("start_date <= ? AND end_date >= ?", end, start).
			Count(&overlapping).Error
		if err != nil {
			return err
		}
		if overlapping > 0 {
			return errListingBooked
		}

		reservation = models.Reservation{
			ClientID:       client.ID,
			PartnerID:      listing.PartnerID,
			ListingID:      listing.ID,
			StartDate:      start,
			EndDate:        end,
			Status:         models.ReservationPending,
			TotalCost:      float64(rentalDays(start, end)) * listing.PricePerDay,
			DeliveryOption: req.DeliveryOption,
		}
		return tx.Create(&reservation).Error
	})

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"status": http.StatusNotFound, "message": "Listing not found.", "available": false})
	case errors.Is(err, errListingBooked):
		c.JSON(http.StatusConflict, gin.H{"status": http.StatusConflict, "message": errListingBooked.Error(), "available": false})
	case errors.Is(err, errSelfBooking):
		badRequest(c, errSelfBooking.Error())
	case err != nil:
		h.logger.ErrorContext(ctx, "Failed to create reservation", slog.String("error", err.Error()))
		internalError(c, "failed to create reservation")
	default:
		h.logger.InfoContext(ctx, "Reservation created",
			slog.Uint64("reservation_id", uint64(reservation.ID)), slog.Uint64("listing_id", uint64(reservation.ListingID)))
		c.JSON(http.StatusCreated, gin.H{"status": http.StatusCreated, "data": reservationJSON(reservation), "available": true})
	}
}

func (h *Handler) GetReservation(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var reservation models.Reservation
	found, err := h.exists(c, &reservation, id)
	if err != nil {
		internalError(c, "failed to load reservation")
		return
	}
	if !found {
		notFound(c, fmt.Sprintf("Reservation with ID %d not found", id))
		return
	}
	c.JSON(http.StatusOK, reservationJSON(reservation))
}

func (h *Handler) ClientReservations(c *gin.Context) {
	h.reservationsOf(c, "client_id")
}

func (h *Handler) PartnerReservations(c *gin.Context) {
	h.reservationsOf(c, "partner_id")
}

func (h *Handler) reservationsOf(c *gin.Context, column string) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	found, err := h.exists(c, &models.User{}, id)
	if err != nil {
		internalError(c, "failed to load user")
		return
	}
	if !found {
		notFound(c, fmt.Sprintf("User with ID %d not found", id))
		return
	}

	var list []models.Reservation
	err = h.db.WithContext(c.Request.Context()).
		Where(column+" = ?", id).
		Order("start_date DESC, id DESC").
		Find(&list).Error
	if err != nil {
		internalError(c, "failed to load reservations")
		return
	}

	data := make([]gin.H, 0, len(list))
	for _, r := range list {
		data = append(data, reservationJSON(r))
	}
	c.JSON(http.StatusOK, gin.H{"total": len(data), "data": data})
}

func (h *Handler) UpdateReservationStatus(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid status")
		return
	}

	ctx := c.Request.Context()
	var reservation models.Reservation
	var from string
	err := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&reservation, id).Error; err != nil {
			return err
		}
		from = reservation.Status
		if !models.CanTransition(from, req.Status) {
			return errInvalidTransition
		}
		reservation.Status = req.Status
		return tx.Model(&reservation).Update("status", req.Status).Error
	})

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		notFound(c, fmt.Sprintf("Reservation with ID %d not found", id))
	case errors.Is(err, errInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{
			"status":  http.StatusConflict,
			"message": fmt.Sprintf("Reservation cannot move from %s to %s", from, req.Status),
		})
	case err != nil:
		h.logger.ErrorContext(ctx, "Failed to update reservation", slog.String("error", err.Error()))
		internalError(c, "failed to update reservation")
	default:
		h.logger.InfoContext(ctx, "Reservation status changed",
			slog.Uint64("reservation_id", uint64(id)), slog.String("from", from), slog.String("to", req.Status))
		c.JSON(http.StatusOK, reservationJSON(reservation))
	}
}
