package junglescout

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// Estimate is the sales estimate for one ASIN. Either figure may be
// missing when the provider has no data.
type Estimate struct {
	ASIN           string
	MonthlySales   *float64
	MonthlyRevenue *float64
}

type productsResponse struct {
	Data []struct {
		ID         string `json:"id"`
		Attributes struct {
			EstimatedMonthlySales        *float64 `json:"estimated_monthly_sales"`
			EstimatedMonthlySalesRevenue *float64 `json:"estimated_monthly_sales_revenue"`
		} `json:"attributes"`
	} `json:"data"`
}

// GetSalesEstimates fetches estimates for up to MaxASINsPerRequest asins.
// ASINs unknown to the provider are simply absent from the result.
func (c *Client) GetSalesEstimates(ctx context.Context, asins []string) ([]Estimate, error) {
	if len(asins) == 0 {
		return nil, nil
	}
	if len(asins) > MaxASINsPerRequest {
		return nil, ErrTooManyASINs
	}

	params := url.Values{}
	params.Set("marketplace", c.marketplace)
	params.Set("asins", strings.Join(asins, ","))

	body, err := c.request(ctx, "/v1/products", params)
	if err != nil {
		return nil, err
	}

	var resp productsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("error parsing products response: %w", err)
	}

	estimates := make([]Estimate, 0, len(resp.Data))
	for _, d := range resp.Data {
		// ids come back as "us/B000..." on some plans
		asin := d.ID
		if i := strings.LastIndex(asin, "/"); i >= 0 {
			asin = asin[i+1:]
		}
		estimates = append(estimates, Estimate{
			ASIN:           asin,
			MonthlySales:   d.Attributes.EstimatedMonthlySales,
			MonthlyRevenue: d.Attributes.EstimatedMonthlySalesRevenue,
		})
	}

	return estimates, nil
}
