package entity

import "github.com/shopspring/decimal"

// MergeCandle は既存行に新しい観測値を重ね合わせた結果を返します。
// 始値は既存行を保持し、高値は大きい方、安値は小さい方、終値とソースは新しい値で上書きします。
// 同じ candidate を二度適用しても結果は変わりません。
func MergeCandle(existing, candidate Candle) Candle {
	merged := existing
	merged.High = decimal.Max(existing.High, candidate.High)
	merged.Low = decimal.Min(existing.Low, candidate.Low)
	merged.Close = candidate.Close
	merged.Source = candidate.Source
	if !candidate.UpdatedAt.IsZero() {
		merged.UpdatedAt = candidate.UpdatedAt
	}
	return merged
}
