package model

// AnalyticsSummary is derived from a scope's rows and recomputed wholesale on every run
type AnalyticsSummary struct {
	ASINCount     int `bson:"asin_count" json:"asinCount"`
	TotalSales    int `bson:"total_sales" json:"totalSales"`
	TrustScore    int `bson:"trust_score" json:"trustScore"`
	TopASINSales  int `bson:"top_asin_sales" json:"topAsinSales"`
	TopBrandShare int `bson:"top_brand_share" json:"topBrandShare"`
}

// ProgressEvent is published on the progress bus at every state transition
type ProgressEvent struct {
	ReportID string       `json:"reportId"`
	Status   ReportStatus `json:"status"`
	Progress int          `json:"progress"`
}
