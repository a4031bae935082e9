package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"rental_marketplace/pkg/middleware"
	"rental_marketplace/pkg/reviews"
)

type Handler struct {
	db      *gorm.DB
	reviews *reviews.Service
	queries *reviews.Queries
	clock   reviews.Clock
	logger  *slog.Logger
}

func New(db *gorm.DB, service *reviews.Service, queries *reviews.Queries, clock reviews.Clock, logger *slog.Logger) *Handler {
	return &Handler{db: db, reviews: service, queries: queries, clock: clock, logger: logger}
}

// Register mounts every route on r.
func (h *Handler) Register(r *gin.Engine, jwtSecret string) {
	api := r.Group("/api/v1")

	api.POST("/reviews", h.SubmitReview)
	api.GET("/reviews/partners/:id", h.PartnerReviews)
	api.GET("/reviews/clients/:id", h.ClientReviews)
	api.GET("/listings/:id/reviews", h.ListingReviews)
	api.GET("/listings/:id", h.GetListing)
	api.GET("/users/:id", h.GetUser)

	api.POST("/reservations", h.CreateReservation)
	api.GET("/reservations/:id", h.GetReservation)
	api.GET("/reservations/client/:id", h.ClientReservations)
	api.GET("/reservations/partner/:id", h.PartnerReservations)
	api.PATCH("/reservations/:id/status", h.UpdateReservationStatus)

	auth := api.Group("", middleware.JWTAuth(jwtSecret))
	auth.GET("/users/:id/reviews", h.UserReviews)
	auth.GET("/reviews/check", h.CheckReview)

	r.GET("/manage/health", h.HealthCheck)
}

func parseID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"status": http.StatusBadRequest, "message": "invalid " + name})
		return 0, false
	}
	return uint(id), true
}

func notFound(c *gin.Context, message string) {
	c.JSON(http.StatusNotFound, gin.H{"status": http.StatusNotFound, "message": message})
}

func internalError(c *gin.Context, message string) {
	c.JSON(http.StatusInternalServerError, gin.H{"status": http.StatusInternalServerError, "message": message})
}

// exists reports whether a row with id is present in model's table.
func (h *Handler) exists(c *gin.Context, model interface{}, id uint) (bool, error) {
	err := h.db.WithContext(c.Request.Context()).First(model, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	return err == nil, err
}

// statusFor maps a review error to its HTTP status.
func statusFor(e *reviews.Error) int {
	switch e.Reason {
	case reviews.ReasonNotAuthorized:
		return http.StatusForbidden
	case reviews.ReasonDuplicateReview:
		return http.StatusConflict
	case reviews.ReasonReservationNotFound:
		return http.StatusNotFound
	}
	switch e.Kind {
	case reviews.KindValidation, reviews.KindBusinessRule:
		return http.StatusBadRequest
	case reviews.KindNotFound:
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func reviewError(c *gin.Context, err error) {
	var e *reviews.Error
	if !errors.As(err, &e) {
		internalError(c, "An error occurred while saving the review")
		return
	}
	status := statusFor(e)
	body := gin.H{"status": status, "reason": e.Reason, "message": e.Message}
	if len(e.Fields) > 0 {
		body["errors"] = e.Fields
	}
	c.JSON(status, body)
}
