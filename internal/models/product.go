package models

import "time"

// ProductSearchRequest filters the latest-price listing. Query matches
// titles case-insensitively; Brands and Retailers are exact-match sets;
// the price bounds are inclusive and exclude unpriced rows when set.
type ProductSearchRequest struct {
	Query     string   `json:"query" form:"query"`
	Brands    []string `json:"brands" form:"brands"`
	Retailers []string `json:"retailers" form:"retailers"`
	MinPrice  *float64 `json:"min_price" form:"min_price"`
	MaxPrice  *float64 `json:"max_price" form:"max_price"`
	Page      int      `json:"page" form:"page"`
	PerPage   int      `json:"per_page" form:"per_page"`
}

// ProductSearchResponse is the response envelope for product search.
// Total counts every match; Count covers the returned page.
type ProductSearchResponse struct {
	Products  []LatestPrice `json:"products"`
	Count     int           `json:"count"`
	Total     int           `json:"total"`
	Page      int           `json:"page"`
	PerPage   int           `json:"per_page"`
	Timestamp time.Time     `json:"timestamp"`
}
