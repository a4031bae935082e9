package database

import (
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"rental_marketplace/pkg/models"
)

// Seed inserts a small demo data set unless users already exist.
func Seed(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.User{}).Count(&count).Error; err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if count > 0 {
		log.Println("Seed skipped, users already present")
		return nil
	}

	return db.Transaction(func(tx *gorm.DB) error {
		partner := models.User{Username: "alice", Firstname: "Alice", Lastname: "Martin", Email: "alice@example.com", IsPartner: true}
		client := models.User{Username: "bob", Firstname: "Bob", Lastname: "Durand", Email: "bob@example.com"}
		if err := tx.Create(&partner).Error; err != nil {
			return err
		}
		if err := tx.Create(&client).Error; err != nil {
			return err
		}

		listing := models.Listing{PartnerID: partner.ID, Title: "Cordless drill", PricePerDay: 12.5, Status: models.ListingActive}
		if err := tx.Create(&listing).Error; err != nil {
			return err
		}

		end := time.Now().UTC().AddDate(0, 0, -2)
		reservation := models.Reservation{
			ClientID:  client.ID,
			PartnerID: partner.ID,
			ListingID: listing.ID,
			StartDate: end.AddDate(0, 0, -3),
			EndDate:   end,
			Status:    models.ReservationCompleted,
			TotalCost: 3 * listing.PricePerDay,
		}
		if err := tx.Create(&reservation).Error; err != nil {
			return err
		}
		log.Println("Test data seeded")
		return nil
	})
}
