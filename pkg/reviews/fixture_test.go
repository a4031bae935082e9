package reviews

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"rental_marketplace/pkg/database"
	"rental_marketplace/pkg/models"
	"rental_marketplace/pkg/notify"
)

var reservationEnd = time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fakeNotifier struct {
	mu   sync.Mutex
	err  error
	sent []notify.Message
}

func (f *fakeNotifier) Dispatch(ctx context.Context, msg notify.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

type fixture struct {
	db          *gorm.DB
	clock       *testClock
	notifier    *fakeNotifier
	aggregator  *Aggregator
	resolver    *Resolver
	service     *Service
	partner     models.User
	client      models.User
	listing     models.Listing
	reservation models.Reservation
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db))
	return db
}

// newFixture creates a partner, a client, a listing and a reservation of that
// listing which completed on reservationEnd.
func newFixture(t *testing.T) *fixture {
	db := setupTestDB(t)
	f := &fixture{
		db:       db,
		clock:    &testClock{now: reservationEnd.AddDate(0, 0, 1)},
		notifier: &fakeNotifier{},
	}
	logger := testLogger()
	f.aggregator = NewAggregator(db, logger)
	f.resolver = NewResolver(db, f.aggregator, f.clock, logger)
	f.service = NewService(db, f.resolver, f.notifier, f.clock, logger)

	f.partner = models.User{Username: "alice", Firstname: "Alice", Lastname: "Martin", Email: "alice@example.com", IsPartner: true}
	f.client = models.User{Username: "bob", Firstname: "Bob", Lastname: "Durand", Email: "bob@example.com"}
	require.NoError(t, db.Create(&f.partner).Error)
	require.NoError(t, db.Create(&f.client).Error)

	f.listing = models.Listing{PartnerID: f.partner.ID, Title: "Cordless drill", PricePerDay: 12.5, Status: models.ListingActive}
	require.NoError(t, db.Create(&f.listing).Error)

	f.reservation = f.addReservation(t, models.ReservationCompleted, reservationEnd)
	return f
}

func (f *fixture) addReservation(t *testing.T, status string, end time.Time) models.Reservation {
	r := models.Reservation{
		ClientID:  f.client.ID,
		PartnerID: f.partner.ID,
		ListingID: f.listing.ID,
		StartDate: end.AddDate(0, 0, -3),
		EndDate:   end,
		Status:    status,
		TotalCost: 3 * f.listing.PricePerDay,
	}
	require.NoError(t, f.db.Create(&r).Error)
	return r
}

// addReview inserts a review directly, bypassing submission.
func (f *fixture) addReview(t *testing.T, review models.Review) models.Review {
	if review.CreatedAt.IsZero() {
		review.CreatedAt = f.clock.Now()
	}
	if review.Comment == "" {
		review.Comment = "Great experience"
	}
	require.NoError(t, f.db.Omit(clause.Associations).Create(&review).Error)
	return review
}

func (f *fixture) clientReviewsPartner(rating int) SubmitInput {
	return SubmitInput{
		ReviewerID:    f.client.ID,
		RevieweeID:    &f.partner.ID,
		ReservationID: f.reservation.ID,
		Rating:        rating,
		Comment:       "Friendly and on time",
		Type:          models.ReviewForPartner,
	}
}

func (f *fixture) partnerReviewsClient(rating int) SubmitInput {
	return SubmitInput{
		ReviewerID:    f.partner.ID,
		RevieweeID:    &f.client.ID,
		ReservationID: f.reservation.ID,
		Rating:        rating,
		Comment:       "Returned everything clean",
		Type:          models.ReviewForClient,
	}
}

func (f *fixture) clientReviewsListing(rating int) SubmitInput {
	return SubmitInput{
		ReviewerID:    f.client.ID,
		ReservationID: f.reservation.ID,
		ListingID:     &f.listing.ID,
		Rating:        rating,
		Comment:       "Drill worked perfectly",
		Type:          models.ReviewForObject,
	}
}

func (f *fixture) reload(t *testing.T, dest interface{}, id uint) {
	require.NoError(t, f.db.First(dest, id).Error)
}

func (f *fixture) reviewCount(t *testing.T) int64 {
	var n int64
	require.NoError(t, f.db.Model(&models.Review{}).Count(&n).Error)
	return n
}

func uintPtr(v uint) *uint { return &v }
