// Package dto defines data transfer objects for the Twelve Data API responses.
package dto

// TimeSeriesValue is one row of the values array. Prices arrive as strings; FX rows carry no volume.
type TimeSeriesValue struct {
	Datetime string `json:"datetime"`
	Open     string `json:"open"`
	High     string `json:"high"`
	Low      string `json:"low"`
	Close    string `json:"close"`
}

// TimeSeriesResponse represents the JSON response from the Twelve Data time_series endpoint.
// Values is nil when the field is absent and empty when the upstream returned no rows.
type TimeSeriesResponse struct {
	Status  string `json:"status"`
	Code    int    `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Meta    struct {
		Symbol   string `json:"symbol"`
		Interval string `json:"interval"`
	} `json:"meta"`
	Values []TimeSeriesValue `json:"values"`
}
