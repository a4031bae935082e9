package reviews

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	"github.com/jmoiron/sqlx"

	"rental_marketplace/pkg/models"
)

type Person struct {
	ID        uint   `json:"id"`
	Username  string `json:"username"`
	Firstname string `json:"firstname"`
	Lastname  string `json:"lastname"`
	AvatarURL string `json:"avatar_url"`
}

// ReviewView is a published review with the display data of both parties.
type ReviewView struct {
	ID            uint      `json:"id"`
	ReservationID uint      `json:"reservation_id"`
	ListingID     *uint     `json:"listing_id,omitempty"`
	Reviewer      Person    `json:"reviewer"`
	Reviewee      *Person   `json:"reviewee,omitempty"`
	Rating        int       `json:"rating"`
	Comment       string    `json:"comment"`
	Type          string    `json:"type"`
	CreatedAt     time.Time `json:"created_at"`
}

type reviewRow struct {
	ID                uint           `db:"id"`
	ReservationID     uint           `db:"reservation_id"`
	ListingID         sql.NullInt64  `db:"listing_id"`
	Rating            int            `db:"rating"`
	Comment           string         `db:"comment"`
	Type              string         `db:"type"`
	CreatedAt         time.Time      `db:"created_at"`
	ReviewerID        uint           `db:"reviewer_id"`
	ReviewerUsername  string         `db:"reviewer_username"`
	ReviewerFirstname string         `db:"reviewer_firstname"`
	ReviewerLastname  string         `db:"reviewer_lastname"`
	ReviewerAvatar    sql.NullString `db:"reviewer_avatar"`
	RevieweeID        sql.NullInt64  `db:"reviewee_id"`
	RevieweeUsername  sql.NullString `db:"reviewee_username"`
	RevieweeFirstname sql.NullString `db:"reviewee_firstname"`
	RevieweeLastname  sql.NullString `db:"reviewee_lastname"`
	RevieweeAvatar    sql.NullString `db:"reviewee_avatar"`
}

const selectVisibleReviews = `
	SELECT r.id, r.reservation_id, r.listing_id, r.rating, r.comment, r.type, r.created_at,
		rv.id AS reviewer_id, rv.username AS reviewer_username,
		rv.firstname AS reviewer_firstname, rv.lastname AS reviewer_lastname,
		rv.avatar_url AS reviewer_avatar,
		re.id AS reviewee_id, re.username AS reviewee_username,
		re.firstname AS reviewee_firstname, re.lastname AS reviewee_lastname,
		re.avatar_url AS reviewee_avatar
	FROM reviews r
	JOIN users rv ON rv.id = r.reviewer_id
	LEFT JOIN users re ON re.id = r.reviewee_id
	WHERE r.is_visible = ?`

const newestFirst = ` ORDER BY r.created_at DESC, r.id DESC`

// Queries is the read side. Hidden reviews never leave it.
type Queries struct {
	db *sqlx.DB
}

func NewQueries(db *sqlx.DB) *Queries {
	return &Queries{db: db}
}

// ForUser returns the visible reviews a user received as partner
// (forPartner) or as client (forClient).
func (q *Queries) ForUser(ctx context.Context, userID uint, reviewType string) ([]ReviewView, error) {
	return q.list(ctx, " AND r.reviewee_id = ? AND r.type = ?", userID, reviewType)
}

// ForListing returns the visible object reviews of a listing.
func (q *Queries) ForListing(ctx context.Context, listingID uint) ([]ReviewView, error) {
	return q.list(ctx, " AND r.listing_id = ? AND r.type = ?", listingID, models.ReviewForObject)
}

// GivenBy returns the visible reviews written by a user.
func (q *Queries) GivenBy(ctx context.Context, userID uint) ([]ReviewView, error) {
	return q.list(ctx, " AND r.reviewer_id = ?", userID)
}

// HasReviewed reports whether userID already submitted any review for the
// reservation, published or not.
func (q *Queries) HasReviewed(ctx context.Context, userID, reservationID uint) (bool, error) {
	var count int
	err := q.db.GetContext(ctx, &count,
		q.db.Rebind(`SELECT COUNT(*) FROM reviews WHERE reviewer_id = ? AND reservation_id = ?`),
		userID, reservationID)
	if err != nil {
		return false, fmt.Errorf("Queries.HasReviewed: %w", err)
	}
	return count > 0, nil
}

func (q *Queries) list(ctx context.Context, filter string, args ...interface{}) ([]ReviewView, error) {
	var rows []reviewRow
	query := q.db.Rebind(selectVisibleReviews + filter + newestFirst)
	if err := q.db.SelectContext(ctx, &rows, query, append([]interface{}{true}, args...)...); err != nil {
		return nil, fmt.Errorf("Queries.list: %w", err)
	}

	views := make([]ReviewView, 0, len(rows))
	for _, row := range rows {
		views = append(views, row.view())
	}
	return views, nil
}

func (row reviewRow) view() ReviewView {
	v := ReviewView{
		ID:            row.ID,
		ReservationID: row.ReservationID,
		Rating:        row.Rating,
		Comment:       row.Comment,
		Type:          row.Type,
		CreatedAt:     row.CreatedAt,
		Reviewer: Person{
			ID:        row.ReviewerID,
			Username:  row.ReviewerUsername,
			Firstname: row.ReviewerFirstname,
			Lastname:  row.ReviewerLastname,
			AvatarURL: avatarOr(row.ReviewerAvatar, row.ReviewerFirstname, row.ReviewerLastname),
		},
	}
	if row.ListingID.Valid {
		id := uint(row.ListingID.Int64)
		v.ListingID = &id
	}
	if row.RevieweeID.Valid {
		v.Reviewee = &Person{
			ID:        uint(row.RevieweeID.Int64),
			Username:  row.RevieweeUsername.String,
			Firstname: row.RevieweeFirstname.String,
			Lastname:  row.RevieweeLastname.String,
			AvatarURL: avatarOr(row.RevieweeAvatar, row.RevieweeFirstname.String, row.RevieweeLastname.String),
		}
	}
	return v
}

// AvatarURL returns the user's avatar or a generated initials image.
func AvatarURL(avatar *string, firstname, lastname string) string {
	if avatar != nil && *avatar != "" {
		return *avatar
	}
	return "https://ui-avatars.com/api/?name=" + url.QueryEscape(firstname) + "+" + url.QueryEscape(lastname)
}

func avatarOr(avatar sql.NullString, firstname, lastname string) string {
	if avatar.Valid {
		return AvatarURL(&avatar.String, firstname, lastname)
	}
	return AvatarURL(nil, firstname, lastname)
}
