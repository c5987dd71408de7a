package oxylabs

import (
	"errors"
	"fmt"
)

var (
	// ErrNoCategory is returned when a product page has no category ladder
	ErrNoCategory = errors.New("no category path found")

	ErrMissingCredentials = errors.New("oxylabs credentials are not configured")
)

// APIError is a non-2xx answer from the realtime API
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("oxylabs API error: status %d: %s", e.StatusCode, e.Message)
}

// BestSeller is one raw row of a parsed best seller page. Every field
// except ASIN may be missing upstream.
type BestSeller struct {
	Rank         *int     `json:"rank,omitempty"`
	ASIN         string   `json:"asin"`
	Title        string   `json:"title,omitempty"`
	Image        string   `json:"image,omitempty"`
	Price        *float64 `json:"price,omitempty"`
	Rating       *float64 `json:"rating,omitempty"`
	ReviewsCount *int     `json:"reviews_count,omitempty"`
}

// Category is the deepest node of a product's category ladder
type Category struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	ID   string `json:"id,omitempty"`
}

type response[T any] struct {
	Results []struct {
		Content T `json:"content"`
	} `json:"results"`
}

type bestSellerContent struct {
	BestSellers []BestSeller `json:"bestsellers"`
	Results     []BestSeller `json:"results"`
}

type productContent struct {
	Category []struct {
		Ladder []Category `json:"ladder"`
	} `json:"category"`
}
