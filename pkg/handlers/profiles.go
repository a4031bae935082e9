package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"rental_marketplace/pkg/models"
	"rental_marketplace/pkg/reviews"
)

// GetUser returns a public profile with the cached ratings.
func (h *Handler) GetUser(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var user models.User
	found, err := h.exists(c, &user, id)
	if err != nil {
		internalError(c, "failed to load user")
		return
	}
	if !found {
		notFound(c, fmt.Sprintf("User with ID %d not found", id))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":              user.ID,
		"username":        user.Username,
		"firstname":       user.Firstname,
		"lastname":        user.Lastname,
		"avatar_url":      reviews.AvatarURL(user.AvatarURL, user.Firstname, user.Lastname),
		"is_partner":      user.IsPartner,
		"client_rating":   user.ClientRating,
		"client_reviews":  user.ClientReviews,
		"partner_rating":  user.PartnerRating,
		"partner_reviews": user.PartnerReviews,
	})
}

func (h *Handler) GetListing(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var listing models.Listing
	found, err := h.exists(c, &listing, id)
	if err != nil {
		internalError(c, "failed to load listing")
		return
	}
	if !found {
		notFound(c, fmt.Sprintf("Listing with ID %d not found", id))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":                listing.ID,
		"partner_id":        listing.PartnerID,
		"title":             listing.Title,
		"price_per_day":     listing.PricePerDay,
		"status":            listing.Status,
		"equipment_rating":  listing.EquipmentRating,
		"equipment_reviews": listing.EquipmentReviews,
	})
}
