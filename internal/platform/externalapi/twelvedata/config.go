// Package twelvedata provides a client for the Twelve Data FX time series API.
package twelvedata

import "time"

// Config holds configuration for the Twelve Data API client.
type Config struct {
	APIKey   string        // API key for authentication
	BaseURL  string        // Base URL for the API (e.g., "https://api.twelvedata.com")
	Timeout  time.Duration // HTTP request timeout
	Timezone string        // IANA zone the upstream renders datetimes in (e.g., "Asia/Seoul")
}

// DefaultBaseURL is used when Config.BaseURL is empty.
const DefaultBaseURL = "https://api.twelvedata.com"
