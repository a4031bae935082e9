package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"rental_marketplace/pkg/middleware"
	"rental_marketplace/pkg/models"
	"rental_marketplace/pkg/reviews"
)

func (h *Handler) SubmitReview(c *gin.Context) {
	var input reviews.SubmitInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status":  http.StatusBadRequest,
			"reason":  reviews.ReasonInvalidInput,
			"message": "Invalid review data",
		})
		return
	}

	review, err := h.reviews.Submit(c.Request.Context(), input)
	if err != nil {
		reviewError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"status":  http.StatusCreated,
		"message": "Review submitted successfully",
		"review": gin.H{
			"id":             review.ID,
			"reviewer_id":    review.ReviewerID,
			"reviewee_id":    review.RevieweeID,
			"reservation_id": review.ReservationID,
			"listing_id":     review.ListingID,
			"rating":         review.Rating,
			"comment":        review.Comment,
			"type":           review.Type,
			"is_visible":     review.IsVisible,
			"created_at":     review.CreatedAt,
		},
	})
}

func (h *Handler) PartnerReviews(c *gin.Context) {
	h.userReviewsOfType(c, "Partner", models.ReviewForPartner)
}

func (h *Handler) ClientReviews(c *gin.Context) {
	h.userReviewsOfType(c, "Client", models.ReviewForClient)
}

func (h *Handler) userReviewsOfType(c *gin.Context, role, reviewType string) {
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
		notFound(c, fmt.Sprintf("%s with ID %d not found", role, id))
		return
	}

	list, err := h.queries.ForUser(c.Request.Context(), id, reviewType)
	if err != nil {
		h.logger.ErrorContext(c.Request.Context(), "Failed to list reviews", slog.String("error", err.Error()))
		internalError(c, "failed to load reviews")
		return
	}
	c.JSON(http.StatusOK, gin.H{"total": len(list), "data": list})
}

func (h *Handler) ListingReviews(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	found, err := h.exists(c, &models.Listing{}, id)
	if err != nil {
		internalError(c, "failed to load listing")
		return
	}
	if !found {
		notFound(c, fmt.Sprintf("Listing with ID %d not found", id))
		return
	}

	list, err := h.queries.ForListing(c.Request.Context(), id)
	if err != nil {
		h.logger.ErrorContext(c.Request.Context(), "Failed to list listing reviews", slog.String("error", err.Error()))
		internalError(c, "failed to load reviews")
		return
	}
	c.JSON(http.StatusOK, gin.H{"total": len(list), "data": list})
}

// UserReviews returns everything a user received and gave, split by role.
func (h *Handler) UserReviews(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if !sameUser(c, id) {
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

	ctx := c.Request.Context()
	asPartner, err := h.queries.ForUser(ctx, id, models.ReviewForPartner)
	if err != nil {
		internalError(c, "failed to load reviews")
		return
	}
	asClient, err := h.queries.ForUser(ctx, id, models.ReviewForClient)
	if err != nil {
		internalError(c, "failed to load reviews")
		return
	}
	given, err := h.queries.GivenBy(ctx, id)
	if err != nil {
		internalError(c, "failed to load reviews")
		return
	}

	givenAsClient := []reviews.ReviewView{}
	givenAsPartner := []reviews.ReviewView{}
	for _, r := range given {
		switch r.Type {
		case models.ReviewForPartner:
			givenAsClient = append(givenAsClient, r)
		case models.ReviewForClient:
			givenAsPartner = append(givenAsPartner, r)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"received_reviews_as_partner": asPartner,
		"received_reviews_as_client":  asClient,
		"given_reviews_as_client":     givenAsClient,
		"given_reviews_as_partner":    givenAsPartner,
	})
}

// sameUser rejects requests whose token belongs to someone other than userID.
func sameUser(c *gin.Context, userID uint) bool {
	authID, ok := middleware.UserID(c)
	if !ok || authID != userID {
		c.JSON(http.StatusForbidden, gin.H{"status": http.StatusForbidden, "message": "You can only access your own reviews."})
		return false
	}
	return true
}

// CheckReview answers whether userId already reviewed reservation_id.
func (h *Handler) CheckReview(c *gin.Context) {
	userID, err := strconv.ParseUint(c.Query("userId"), 10, 64)
	if err != nil || userID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"status": http.StatusBadRequest, "message": "The user id field is required."})
		return
	}
	reservationID, err := strconv.ParseUint(c.Query("reservation_id"), 10, 64)
	if err != nil || reservationID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"status": http.StatusBadRequest, "message": "The reservation id field is required."})
		return
	}
	if !sameUser(c, uint(userID)) {
		return
	}

	reviewed, err := h.queries.HasReviewed(c.Request.Context(), uint(userID), uint(reservationID))
	if err != nil {
		internalError(c, "failed to check review")
		return
	}
	c.JSON(http.StatusOK, reviewed)
}
