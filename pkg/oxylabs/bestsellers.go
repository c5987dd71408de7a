package oxylabs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
)

// GetBestSellersPage fetches one parsed best seller page of a category
func (c *Client) GetBestSellersPage(ctx context.Context, categoryID string, page int) ([]BestSeller, error) {
	body, err := c.post(ctx, query{
		Source:    SourceBestSellers,
		Domain:    c.domain,
		Query:     categoryID,
		StartPage: page,
		Pages:     1,
		Parse:     true,
	})
	if err != nil {
		return nil, err
	}

	var resp response[bestSellerContent]
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("error parsing best seller page %d: %w", page, err)
	}
	if len(resp.Results) == 0 {
		return nil, nil
	}

	content := resp.Results[0].Content
	if len(content.BestSellers) > 0 {
		return content.BestSellers, nil
	}
	return content.Results, nil
}

// GetBestSellers walks up to maxPages pages, stopping at the first empty
// one. Any page error fails the whole call.
func (c *Client) GetBestSellers(ctx context.Context, categoryID string, maxPages int) ([]BestSeller, error) {
	var all []BestSeller

	for page := 1; page <= maxPages; page++ {
		rows, err := c.GetBestSellersPage(ctx, categoryID, page)
		if err != nil {
			return nil, fmt.Errorf("best sellers page %d for category %s: %w", page, categoryID, err)
		}
		if len(rows) == 0 {
			log.Debug().
				Str("category_id", categoryID).
				Int("page", page).
				Msg("Empty best seller page, stopping")
			break
		}
		all = append(all, rows...)
	}

	log.Info().
		Str("category_id", categoryID).
		Int("products", len(all)).
		Msg("Discovered best sellers")

	return all, nil
}
