package gateway

import (
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/bidmaster/auction-api/internal/types"
)

// seed writes the fixed bootstrap users and the demo items, but only when the
// store is empty. The version row always exists afterwards.
func (g *Gateway) seed() error {
	return g.db.Transaction(func(tx *gorm.DB) error {
		var meta snapshotMeta
		err := tx.First(&meta).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		now := time.Now().UTC()
		users := []types.User{
			{UserID: "U001", Name: "Admin Master", Role: types.RoleAdmin, WalletBalance: 250000, Secret: "password", PowerScore: 100},
			{UserID: "U002", Name: "John Doe", Role: types.RoleBidder, WalletBalance: 12000, Secret: "user123", PowerScore: 45},
			{UserID: "U003", Name: "Jane Smith", Role: types.RoleBidder, WalletBalance: 15500, Secret: "user123", PowerScore: 52},
			{UserID: "U004", Name: "Alice Wong", Role: types.RoleBidder, WalletBalance: 25000, Secret: "user123", PowerScore: 68},
		}
		items := []types.BiddingItem{
			{
				ItemID:             "I001",
				Name:               "Vintage Rolex Submariner (1968)",
				ImageURL:           "https://images.unsplash.com/photo-1587836374828-4dbaba94cf0e?auto=format&fit=crop&q=80&w=800",
				StartingPrice:      8500,
				HighestBidAmount:   8500,
				HighestBidUserName: "Initial Listing",
				EndTime:            now.Add(time.Hour),
				Status:             types.StatusOpen,
			},
			{
				ItemID:             "I002",
				Name:               "Concept EV Prototype X",
				ImageURL:           "https://images.unsplash.com/photo-1503376780353-7e6692767b70?auto=format&fit=crop&q=80&w=800",
				StartingPrice:      120000,
				HighestBidAmount:   120000,
				HighestBidUserName: "Initial Listing",
				EndTime:            now.Add(2 * time.Hour),
				Status:             types.StatusOpen,
			},
			{
				ItemID:             "I003",
				Name:               "Limited Edition Digital Canvas",
				ImageURL:           "https://images.unsplash.com/photo-1550684848-fac1c5b4e853?auto=format&fit=crop&q=80&w=800",
				StartingPrice:      4500,
				HighestBidAmount:   4500,
				HighestBidUserName: "Initial Listing",
				EndTime:            now.Add(30 * time.Minute),
				Status:             types.StatusOpen,
			},
		}

		for i := range users {
			if err := tx.Create(&users[i]).Error; err != nil {
				return err
			}
		}
		for i := range items {
			if err := tx.Create(&items[i]).Error; err != nil {
				return err
			}
		}
		if err := tx.Create(&snapshotMeta{Version: 1}).Error; err != nil {
			return err
		}

		log.Info().Int("users", len(users)).Int("items", len(items)).Msg("seeded bootstrap records")
		return nil
	})
}
