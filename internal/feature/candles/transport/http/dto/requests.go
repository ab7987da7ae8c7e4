package dto

// ResolveQuery は GET /candles/:pair のクエリです。
type ResolveQuery struct {
	Timeframe string `form:"tf"`
	Limit     int    `form:"limit" binding:"gte=0"`
}

// HistoryQuery は GET /candles/:pair/history のクエリです。
// from / to は RFC3339 または YYYY-MM-DD（表示タイムゾーン）で指定します。
type HistoryQuery struct {
	Timeframe string `form:"tf"`
	From      string `form:"from"`
	To        string `form:"to" binding:"required_with=From"`
	Limit     int    `form:"limit" binding:"gte=0"`
}

// ResampleQuery は GET /candles/:pair/resampled のクエリです。
type ResampleQuery struct {
	FromTimeframe string `form:"from_tf" binding:"required"`
	ToTimeframe   string `form:"to_tf" binding:"required"`
	Take          int    `form:"take" binding:"gte=0"`
}

// IngestRequest は POST /candles/:pair/ingest のボディです。省略時は既定の時間足を取り込みます。
type IngestRequest struct {
	Timeframes []string `json:"timeframes" binding:"omitempty,max=9,dive,required"`
	OutputSize int      `json:"outputsize" binding:"gte=0,lte=5000"`
}
