// Package analytics turns a scope's enriched best seller rows into summary statistics.
package analytics

import (
	"math"
	"sort"
	"strings"

	"demand/internal/model"
)

// topBrands is how many brands count towards the brand concentration share
const topBrands = 3

type brandRevenue struct {
	brand   string
	revenue float64
}

// Aggregate computes the summary of a set of rows. It is pure: an empty input
// yields the zero summary, missing revenue counts as zero.
func Aggregate(rows []model.BestSellingAsin) model.AnalyticsSummary {
	if len(rows) == 0 {
		return model.AnalyticsSummary{}
	}

	var totalRevenue, topRevenue float64
	withRevenue := 0
	byBrand := make(map[string]float64)

	for _, row := range rows {
		revenue := revenueOf(row)
		totalRevenue += revenue

		if revenue > topRevenue {
			topRevenue = revenue
		}
		if revenue > 0 {
			withRevenue++
		}

		if brand, ok := InferBrand(row.Title); ok {
			byBrand[brand] += revenue
		}
	}

	return model.AnalyticsSummary{
		ASINCount:     len(rows),
		TotalSales:    int(math.Round(totalRevenue)),
		TrustScore:    percent(float64(withRevenue), float64(len(rows))),
		TopASINSales:  int(math.Round(topRevenue)),
		TopBrandShare: percent(topBrandsRevenue(byBrand, topBrands), totalRevenue),
	}
}

// InferBrand takes the first whitespace delimited token of a title as its brand
func InferBrand(title string) (string, bool) {
	fields := strings.Fields(title)
	if len(fields) == 0 {
		return "", false
	}
	return fields[0], true
}

func revenueOf(row model.BestSellingAsin) float64 {
	if row.MonthlyRevenue == nil || math.IsNaN(*row.MonthlyRevenue) {
		return 0
	}
	return *row.MonthlyRevenue
}

// topBrandsRevenue sums the revenue of the n highest grossing brands
func topBrandsRevenue(byBrand map[string]float64, n int) float64 {
	brands := make([]brandRevenue, 0, len(byBrand))
	for brand, revenue := range byBrand {
		brands = append(brands, brandRevenue{brand: brand, revenue: revenue})
	}

	sort.Slice(brands, func(i, j int) bool {
		if brands[i].revenue == brands[j].revenue {
			return brands[i].brand < brands[j].brand
		}
		return brands[i].revenue > brands[j].revenue
	})

	var sum float64
	for i := 0; i < len(brands) && i < n; i++ {
		sum += brands[i].revenue
	}
	return sum
}

// percent rounds part/whole to an integer clamped to [0,100], zero when whole is not positive
func percent(part, whole float64) int {
	if whole <= 0 {
		return 0
	}
	p := int(math.Round(part / whole * 100))
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
