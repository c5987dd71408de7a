package worker

import (
	"strings"

	"demand/internal/model"
	"demand/pkg/oxylabs"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MapBestSellers normalizes raw provider rows into scope rows. Rank is the
// provider's when it sent a positive one, otherwise the 1-based position.
// Rows without an ASIN are dropped; zero price, rating and review counts
// are treated as unknown.
func MapBestSellers(analyticsID primitive.ObjectID, raw []oxylabs.BestSeller) []model.BestSellingAsin {
	rows := make([]model.BestSellingAsin, 0, len(raw))

	for i, p := range raw {
		asin := strings.TrimSpace(p.ASIN)
		if asin == "" {
			continue
		}

		rank := i + 1
		if p.Rank != nil && *p.Rank > 0 {
			rank = *p.Rank
		}

		row := model.BestSellingAsin{
			AnalyticsID: analyticsID,
			Rank:        rank,
			ASIN:        asin,
			Title:       strings.TrimSpace(p.Title),
		}
		if p.Image != "" {
			image := p.Image
			row.ImageURL = &image
		}
		if p.Price != nil && *p.Price != 0 {
			price := *p.Price
			row.Price = &price
		}
		if p.Rating != nil && *p.Rating != 0 {
			rating := *p.Rating
			row.Rating = &rating
		}
		if p.ReviewsCount != nil && *p.ReviewsCount != 0 {
			reviews := *p.ReviewsCount
			row.ReviewsCount = &reviews
		}

		rows = append(rows, row)
	}

	return rows
}
