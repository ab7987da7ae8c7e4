package dto

// ErrorResponse はエラーレスポンスの共通形式です。
type ErrorResponse struct {
	Error string `json:"error"`
}

// IngestResult は1時間足分の取り込み結果です。
type IngestResult struct {
	Timeframe string `json:"tf"`
	Upserted  int    `json:"upserted"`
	Error     string `json:"error,omitempty"`
}

// IngestResponse は POST /candles/:pair/ingest のレスポンスです。
type IngestResponse struct {
	Pair     string         `json:"pair"`
	Upserted int            `json:"upserted"`
	Failed   int            `json:"failed"`
	Results  []IngestResult `json:"results"`
}
