// Package usecase はローソク足データ操作のビジネスロジックを実装します。
package usecase

import (
	"context"
	"fmt"
	"time"

	"fx_backend/internal/feature/candles/domain"
	"fx_backend/internal/feature/candles/domain/calendar"
	"fx_backend/internal/feature/candles/domain/entity"
	"fx_backend/internal/feature/candles/domain/resample"
	"fx_backend/internal/platform/cache"
)

const (
	// DefaultTimeframe はローソク足クエリのデフォルト時間足です。
	DefaultTimeframe = entity.Timeframe1d
	// DefaultLimit はデフォルトのローソク足返却件数です。
	DefaultLimit = 200
	// MaxLimit はローソク足の最大返却件数です。
	MaxLimit = 5000
	// DefaultResampleTake はリサンプル元として読み込むデフォルト件数です。
	DefaultResampleTake = 2000
)

// CandleRepository はローソク足データの永続化レイヤーを抽象化します。
// Goの慣例に従い、インターフェースは利用者（usecase）側で定義します。
type CandleRepository interface {
	// UpsertBatch は同一バケットの既存行とマージしながら一括保存します。
	UpsertBatch(ctx context.Context, candles []entity.Candle) (int, error)
	// Latest は最新 n 件を時刻の昇順で返します。
	Latest(ctx context.Context, pair string, tf entity.Timeframe, n int) ([]entity.Candle, error)
	// Range は from から to までのローソク足を昇順で返します。
	Range(ctx context.Context, pair string, tf entity.Timeframe, from, to time.Time) ([]entity.Candle, error)
}

// SeriesCache は時間足ごとに分割されたキャッシュです。
type SeriesCache interface {
	GetOrCompute(ctx context.Context, key cache.Key, compute func(context.Context) (entity.Series, error)) (entity.Series, error)
	GetEvenIfExpired(ctx context.Context, key cache.Key) (entity.Series, bool)
}

// OutcomeRecorder は解決結果の種類を記録します。
type OutcomeRecorder interface {
	RecordOutcome(timeframe, outcome string)
}

// candlesUsecase は保存済みローソク足の参照ユースケースです。
type candlesUsecase struct {
	candle    CandleRepository
	resampler *resample.Resampler
}

// NewCandlesUsecase はcandlesUsecaseの新しいインスタンスを生成します。
func NewCandlesUsecase(candle CandleRepository, loc *time.Location) *candlesUsecase {
	return &candlesUsecase{candle: candle, resampler: resample.New(loc)}
}

// History は保存済みのローソク足を返します。from と to が両方指定された場合は範囲検索、
// それ以外は最新 limit 件を返します。
func (cu *candlesUsecase) History(ctx context.Context, pair, timeframe string, from, to *time.Time, limit int) (entity.Series, error) {
	p, tf, limit, err := parseRequest(pair, timeframe, limit)
	if err != nil {
		return entity.Series{}, err
	}

	var cs []entity.Candle
	if from != nil && to != nil {
		if to.Before(*from) {
			return entity.Series{}, fmt.Errorf("%w: to is before from", domain.ErrInvalidRequest)
		}
		cs, err = cu.candle.Range(ctx, p.String(), tf, *from, *to)
		cs = entity.TailCandles(cs, limit)
	} else {
		cs, err = cu.candle.Latest(ctx, p.String(), tf, limit)
	}
	if err != nil {
		return entity.Series{}, err
	}

	return entity.Series{Pair: p.String(), Timeframe: tf, Points: cs, Source: "store " + string(tf)}, nil
}

// ResampleFrom は保存済みの sourceTF のローソク足 take 件を targetTF に変換します。
func (cu *candlesUsecase) ResampleFrom(ctx context.Context, pair, sourceTF, targetTF string, take int) (entity.Series, error) {
	p, ok := entity.ParsePair(pair)
	if !ok {
		return entity.Series{}, fmt.Errorf("%w: pair %q", domain.ErrInvalidRequest, pair)
	}
	from, ok := entity.ParseTimeframe(sourceTF)
	if !ok {
		return entity.Series{}, fmt.Errorf("%w: timeframe %q", domain.ErrInvalidRequest, sourceTF)
	}
	to, ok := entity.ParseTimeframe(targetTF)
	if !ok {
		return entity.Series{}, fmt.Errorf("%w: timeframe %q", domain.ErrInvalidRequest, targetTF)
	}
	if take <= 0 {
		take = DefaultResampleTake
	}
	take = min(take, MaxLimit)
	if to.FinerThan(from) {
		// 補間後の件数が MaxLimit を超えない親の本数に絞る
		take = min(take, MaxLimit/calendar.Ratio(to, from)+1)
	}

	base, err := cu.candle.Latest(ctx, p.String(), from, take)
	if err != nil {
		return entity.Series{}, err
	}

	return entity.Series{
		Pair:      p.String(),
		Timeframe: to,
		Points:    entity.TailCandles(cu.resampler.Resample(base, from, to), MaxLimit),
		Source:    fmt.Sprintf("store %s→%s", from, to),
	}, nil
}

// parseRequest は通貨ペア・時間足・件数を検証し正規化します。
func parseRequest(pair, timeframe string, limit int) (entity.Pair, entity.Timeframe, int, error) {
	p, ok := entity.ParsePair(pair)
	if !ok {
		return entity.Pair{}, "", 0, fmt.Errorf("%w: pair %q", domain.ErrInvalidRequest, pair)
	}
	tf := DefaultTimeframe
	if timeframe != "" {
		if tf, ok = entity.ParseTimeframe(timeframe); !ok {
			return entity.Pair{}, "", 0, fmt.Errorf("%w: timeframe %q", domain.ErrInvalidRequest, timeframe)
		}
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	return p, tf, min(limit, MaxLimit), nil
}
