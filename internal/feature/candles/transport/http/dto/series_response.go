// Package dto はcandlesフィーチャーのHTTPリクエスト/レスポンスDTOを定義します。
package dto

import (
	"encoding/json"
	"time"

	"fx_backend/internal/feature/candles/domain/entity"
)

// PointResponse は1本のローソク足です。価格は精度を保ったまま JSON 数値として出力します。
type PointResponse struct {
	Time  string      `json:"t"` // バケット開始時刻（表示タイムゾーン, RFC3339）
	Open  json.Number `json:"o"`
	High  json.Number `json:"h"`
	Low   json.Number `json:"l"`
	Close json.Number `json:"c"`
}

// SeriesResponse はローソク足系列のレスポンスDTOです。
type SeriesResponse struct {
	Pair         string          `json:"pair"`
	Timeframe    string          `json:"tf"`
	Source       string          `json:"source"`
	Stale        bool            `json:"stale"`
	Outcome      string          `json:"outcome,omitempty"`
	DegradedFrom string          `json:"degraded_from,omitempty"`
	Points       []PointResponse `json:"points"`
}

// NewSeriesResponse は系列を loc の時刻表記でレスポンスに変換します。
func NewSeriesResponse(s entity.Series, loc *time.Location) SeriesResponse {
	if loc == nil {
		loc = time.UTC
	}
	points := make([]PointResponse, 0, len(s.Points))
	for _, c := range s.Points {
		points = append(points, PointResponse{
			Time:  c.BucketStart.In(loc).Format(time.RFC3339),
			Open:  json.Number(c.Open.String()),
			High:  json.Number(c.High.String()),
			Low:   json.Number(c.Low.String()),
			Close: json.Number(c.Close.String()),
		})
	}
	return SeriesResponse{
		Pair:         s.Pair,
		Timeframe:    string(s.Timeframe),
		Source:       s.Source,
		Stale:        s.Stale,
		Outcome:      string(s.Outcome),
		DegradedFrom: string(s.DegradedFrom),
		Points:       points,
	}
}
