package oxylabs

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
)

var categoryIDPattern = regexp.MustCompile(`(?:node=|/bestsellers/\w+/|/)([0-9]{4,})`)

// GetCategoryFromASIN returns the deepest category of a product
func (c *Client) GetCategoryFromASIN(ctx context.Context, asin string) (*Category, error) {
	body, err := c.post(ctx, query{
		Source: SourceProduct,
		Domain: c.domain,
		Query:  asin,
		Parse:  true,
	})
	if err != nil {
		return nil, err
	}

	var resp response[productContent]
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("error parsing product %s: %w", asin, err)
	}

	if len(resp.Results) == 0 || len(resp.Results[0].Content.Category) == 0 {
		return nil, fmt.Errorf("asin %s: %w", asin, ErrNoCategory)
	}
	ladder := resp.Results[0].Content.Category[0].Ladder
	if len(ladder) == 0 {
		return nil, fmt.Errorf("asin %s: %w", asin, ErrNoCategory)
	}

	deepest := ladder[len(ladder)-1]
	deepest.ID = CategoryIDFromURL(deepest.URL)
	return &deepest, nil
}

// CategoryIDFromURL extracts the numeric browse node id from a category
// url, or "" when none is present.
func CategoryIDFromURL(url string) string {
	m := categoryIDPattern.FindStringSubmatch(url)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}
