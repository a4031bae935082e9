package reviews

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rental_marketplace/pkg/database"
	"rental_marketplace/pkg/models"
)

func newQueries(t *testing.T, f *fixture) *Queries {
	reader, err := database.Reader(f.db)
	require.NoError(t, err)
	return NewQueries(reader)
}

func TestQueriesReturnOnlyVisibleReviewsNewestFirst(t *testing.T) {
	f := newFixture(t)
	other := f.addReservation(t, models.ReservationCompleted, reservationEnd)
	third := f.addReservation(t, models.ReservationCompleted, reservationEnd)

	older := f.addReview(t, models.Review{ReservationID: f.reservation.ID, ReviewerID: f.client.ID, RevieweeID: &f.partner.ID,
		Type: models.ReviewForPartner, Rating: 4, IsVisible: true, CreatedAt: reservationEnd.Add(time.Hour)})
	newer := f.addReview(t, models.Review{ReservationID: other.ID, ReviewerID: f.client.ID, RevieweeID: &f.partner.ID,
		Type: models.ReviewForPartner, Rating: 2, IsVisible: true, CreatedAt: reservationEnd.Add(48 * time.Hour)})
	f.addReview(t, models.Review{ReservationID: third.ID, ReviewerID: f.client.ID, RevieweeID: &f.partner.ID,
		Type: models.ReviewForPartner, Rating: 1})

	views, err := newQueries(t, f).ForUser(context.Background(), f.partner.ID, models.ReviewForPartner)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, newer.ID, views[0].ID)
	assert.Equal(t, older.ID, views[1].ID)

	v := views[0]
	assert.Equal(t, 2, v.Rating)
	assert.Equal(t, "bob", v.Reviewer.Username)
	assert.Equal(t, "https://ui-avatars.com/api/?name=Bob+Durand", v.Reviewer.AvatarURL)
	require.NotNil(t, v.Reviewee)
	assert.Equal(t, f.partner.ID, v.Reviewee.ID)
	assert.Nil(t, v.ListingID)
}

func TestQueriesForUserFiltersByType(t *testing.T) {
	f := newFixture(t)
	f.addReview(t, models.Review{ReservationID: f.reservation.ID, ReviewerID: f.partner.ID, RevieweeID: &f.client.ID,
		Type: models.ReviewForClient, Rating: 5, IsVisible: true})

	q := newQueries(t, f)
	asClient, err := q.ForUser(context.Background(), f.client.ID, models.ReviewForClient)
	require.NoError(t, err)
	assert.Len(t, asClient, 1)

	asPartner, err := q.ForUser(context.Background(), f.client.ID, models.ReviewForPartner)
	require.NoError(t, err)
	assert.Empty(t, asPartner)
}

func TestQueriesForListing(t *testing.T) {
	f := newFixture(t)
	avatar := "https://cdn.example.com/bob.png"
	require.NoError(t, f.db.Model(&models.User{}).Where("id = ?", f.client.ID).Update("avatar_url", avatar).Error)
	f.addReview(t, models.Review{ReservationID: f.reservation.ID, ReviewerID: f.client.ID, ListingID: &f.listing.ID,
		Type: models.ReviewForObject, Rating: 5, IsVisible: true})

	views, err := newQueries(t, f).ForListing(context.Background(), f.listing.ID)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Nil(t, views[0].Reviewee)
	require.NotNil(t, views[0].ListingID)
	assert.Equal(t, f.listing.ID, *views[0].ListingID)
	assert.Equal(t, avatar, views[0].Reviewer.AvatarURL)
}

func TestQueriesGivenByAndHasReviewed(t *testing.T) {
	f := newFixture(t)
	f.addReview(t, models.Review{ReservationID: f.reservation.ID, ReviewerID: f.client.ID, RevieweeID: &f.partner.ID,
		Type: models.ReviewForPartner, Rating: 4})

	q := newQueries(t, f)
	ctx := context.Background()

	given, err := q.GivenBy(ctx, f.client.ID)
	require.NoError(t, err)
	assert.Empty(t, given, "hidden reviews are not listed even to their author")

	reviewed, err := q.HasReviewed(ctx, f.client.ID, f.reservation.ID)
	require.NoError(t, err)
	assert.True(t, reviewed)

	reviewed, err = q.HasReviewed(ctx, f.partner.ID, f.reservation.ID)
	require.NoError(t, err)
	assert.False(t, reviewed)
}

func TestAvatarURL(t *testing.T) {
	custom := "https://cdn.example.com/a.png"
	empty := ""
	assert.Equal(t, custom, AvatarURL(&custom, "Ann", "Lee"))
	assert.Equal(t, "https://ui-avatars.com/api/?name=Ann+Lee", AvatarURL(&empty, "Ann", "Lee"))
	assert.Equal(t, "https://ui-avatars.com/api/?name=Jean+Pierre+Roy", AvatarURL(nil, "Jean Pierre", "Roy"))
}
