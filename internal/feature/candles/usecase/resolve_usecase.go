package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"fx_backend/internal/feature/candles/domain"
	"fx_backend/internal/feature/candles/domain/calendar"
	"fx_backend/internal/feature/candles/domain/entity"
	"fx_backend/internal/feature/candles/domain/resample"
	"fx_backend/internal/platform/cache"
)

const (
	staleSuffix    = " (stale)"
	emptySource    = "empty fallback"
	persistTimeout = 3 * time.Second
)

// ResolveConfig は劣化カスケードの設定です。
type ResolveConfig struct {
	// Location はバケット境界を決める表示タイムゾーンです。
	Location *time.Location
	// Provider は source 表記に使う上流名です。
	Provider string
	// UpstreamTimeout は1回の上流呼び出しの上限時間です。
	UpstreamTimeout time.Duration
	// AlternateTimeframe は代替として取得する時間足です（既定は日足、日足自体の代替は週足）。
	AlternateTimeframe entity.Timeframe
	// InterpolateIntraday が true の場合、粗い代替データを要求された時間足へ補間します。
	InterpolateIntraday bool
	// DefaultLimit は limit 未指定時の件数、MaxLimit は上限です（いずれも MaxLimit 定数以下）。
	DefaultLimit int
	MaxLimit     int
}

// ResolveUsecase は (pair, timeframe, limit) の要求を
// 最新取得 → 期限切れキャッシュ → 代替時間足 → 合成データ の順に解決します。
type ResolveUsecase struct {
	fetcher   fetcher
	store     CandleRepository
	cache     SeriesCache
	resampler *resample.Resampler
	recorder  OutcomeRecorder
	cfg       ResolveConfig
	now       func() time.Time
	logger    zerolog.Logger
}

// NewResolveUsecase は新しい ResolveUsecase を作成します。store と recorder は nil でも動作します。
func NewResolveUsecase(market MarketRepository, store CandleRepository, seriesCache SeriesCache, recorder OutcomeRecorder, cfg ResolveConfig, logger zerolog.Logger) *ResolveUsecase {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.UpstreamTimeout <= 0 {
		cfg.UpstreamTimeout = 8 * time.Second
	}
	if !cfg.AlternateTimeframe.Valid() {
		cfg.AlternateTimeframe = entity.Timeframe1d
	}
	if cfg.MaxLimit <= 0 || cfg.MaxLimit > MaxLimit {
		cfg.MaxLimit = MaxLimit
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = DefaultLimit
	}
	cfg.DefaultLimit = min(cfg.DefaultLimit, cfg.MaxLimit)
	return &ResolveUsecase{
		fetcher:   newFetcher(market, cfg.Location, cfg.Provider),
		store:     store,
		cache:     seriesCache,
		resampler: resample.New(cfg.Location),
		recorder:  recorder,
		cfg:       cfg,
		now:       time.Now,
		logger:    logger,
	}
}

// Resolve は要求に対して必ず系列を返します。エラーになるのは不正な要求のみで、
// その場合も Outcome=empty の系列を併せて返します。
func (u *ResolveUsecase) Resolve(ctx context.Context, pair, timeframe string, limit int) (entity.Series, error) {
	if limit <= 0 {
		limit = u.cfg.DefaultLimit
	}
	p, tf, limit, err := parseRequest(pair, timeframe, min(limit, u.cfg.MaxLimit))
	if err != nil {
		s := entity.Series{
			Pair:      pair,
			Timeframe: entity.Timeframe(timeframe),
			Points:    []entity.Candle{},
			Source:    emptySource,
			Outcome:   entity.OutcomeEmpty,
		}
		u.record("invalid", s.Outcome)
		return s, err
	}

	log := u.logger.With().Str("pair", p.String()).Str("timeframe", string(tf)).Int("limit", limit).Logger()
	s := u.resolve(ctx, log, p, tf, limit)
	log.Debug().Str("outcome", string(s.Outcome)).Str("source", s.Source).Int("points", s.Len()).Msg("resolved")
	u.record(string(tf), s.Outcome)
	return s, nil
}

func (u *ResolveUsecase) resolve(ctx context.Context, log zerolog.Logger, p entity.Pair, tf entity.Timeframe, limit int) entity.Series {
	s, err := u.live(ctx, p, tf, limit)
	if err == nil {
		return s
	}
	log.Warn().Err(err).Msg("live fetch failed")

	if s, ok := u.stale(ctx, p, tf, limit); ok {
		return s
	}
	if s, ok := u.alternate(ctx, log, p, tf, limit); ok {
		return s
	}
	log.Warn().Msg("all tiers failed, serving synthetic series")
	return u.synthetic(p, tf, limit)
}

func cacheKey(p entity.Pair, tf entity.Timeframe, limit int) cache.Key {
	return cache.Key{Pair: p.String(), Timeframe: string(tf), Limit: limit}
}

// live は単一フライトのキャッシュ経由で上流から取得します。
func (u *ResolveUsecase) live(ctx context.Context, p entity.Pair, tf entity.Timeframe, limit int) (entity.Series, error) {
	return u.cache.GetOrCompute(ctx, cacheKey(p, tf, limit), func(cctx context.Context) (entity.Series, error) {
		return u.compute(cctx, p, tf, limit)
	})
}

func (u *ResolveUsecase) compute(ctx context.Context, p entity.Pair, tf entity.Timeframe, limit int) (entity.Series, error) {
	ctx, cancel := context.WithTimeout(ctx, u.cfg.UpstreamTimeout)
	defer cancel()

	rows, err := u.fetcher.fetch(ctx, p, tf, limit)
	if err != nil {
		if ctx.Err() != nil && !domain.IsUpstreamFailure(err) {
			err = fmt.Errorf("%w: %w", domain.ErrUpstreamUnavailable, err)
		}
		return entity.Series{}, err
	}
	u.persist(ctx, rows)

	return entity.Series{
		Pair:      p.String(),
		Timeframe: tf,
		Points:    rows,
		Source:    u.fetcher.sourceOf(tf),
		Outcome:   entity.OutcomeFresh,
	}, nil
}

// persist は取得結果をストアへ書き込みます。失敗しても応答には影響させません。
func (u *ResolveUsecase) persist(ctx context.Context, rows []entity.Candle) {
	if u.store == nil {
		return
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if _, err := u.store.UpsertBatch(pctx, rows); err != nil {
		u.logger.Warn().Err(err).Int("rows", len(rows)).Msg("failed to persist fetched candles")
	}
}

// stale は期限切れでも最後に成功した値を返します。鮮度は更新しません。
func (u *ResolveUsecase) stale(ctx context.Context, p entity.Pair, tf entity.Timeframe, limit int) (entity.Series, bool) {
	s, ok := u.cache.GetEvenIfExpired(ctx, cacheKey(p, tf, limit))
	if !ok || s.Len() == 0 {
		return entity.Series{}, false
	}
	s.Stale = true
	s.Outcome = entity.OutcomeStale
	if !strings.HasSuffix(s.Source, staleSuffix) {
		s.Source += staleSuffix
	}
	return s, true
}

// alternateFor は代替時間足を返します。代替と要求が同じ場合は週足を使います。
func (u *ResolveUsecase) alternateFor(tf entity.Timeframe) entity.Timeframe {
	if tf == u.cfg.AlternateTimeframe {
		if tf == entity.Timeframe1w {
			return entity.Timeframe1d
		}
		return entity.Timeframe1w
	}
	return u.cfg.AlternateTimeframe
}

// alternateLimit は代替時間足で必要な件数です。細かい代替を集約する場合は比率分多く取得します。
func alternateLimit(tf, alt entity.Timeframe, limit int) int {
	if alt.FinerThan(tf) {
		return min(limit*calendar.Ratio(alt, tf), MaxLimit)
	}
	return limit
}

// alternate は代替時間足を一段だけ試します（代替の代替は行いません）。
// 代替の最新取得・期限切れキャッシュがどちらも無い場合は保存済み履歴を使います。
// ctx がキャンセル済みなら代替の最新取得は行いません。
func (u *ResolveUsecase) alternate(ctx context.Context, log zerolog.Logger, p entity.Pair, tf entity.Timeframe, limit int) (entity.Series, bool) {
	alt := u.alternateFor(tf)
	altLimit := alternateLimit(tf, alt, limit)
	log = log.With().Str("alternate", string(alt)).Logger()

	// 呼び出し元が既に離脱している場合は上流の枠を消費しない
	if ctx.Err() == nil {
		s, err := u.live(ctx, p, alt, altLimit)
		if err == nil {
			return u.substitute(s, tf, limit), true
		}
		log.Warn().Err(err).Msg("alternate live fetch failed")
	}

	if s, ok := u.stale(ctx, p, alt, altLimit); ok {
		return u.substitute(s, tf, limit), true
	}
	return u.fromStore(ctx, log, p, tf, alt, limit)
}

// fromStore は要求された時間足、次に代替時間足の保存済み履歴を読みます。
func (u *ResolveUsecase) fromStore(ctx context.Context, log zerolog.Logger, p entity.Pair, tf, alt entity.Timeframe, limit int) (entity.Series, bool) {
	if u.store == nil {
		return entity.Series{}, false
	}
	for _, try := range []struct {
		tf    entity.Timeframe
		limit int
	}{
		{tf, limit},
		{alt, alternateLimit(tf, alt, limit)},
	} {
		rows, err := u.store.Latest(ctx, p.String(), try.tf, try.limit)
		if err != nil {
			log.Warn().Err(err).Str("stored", string(try.tf)).Msg("stored history unavailable")
			continue
		}
		if len(rows) == 0 {
			continue
		}
		s := entity.Series{Pair: p.String(), Timeframe: try.tf, Points: rows, Source: "store " + string(try.tf)}
		return u.substitute(s, tf, limit), true
	}
	return entity.Series{}, false
}

// substitute は代替データを要求された時間足に合わせ、出所を注記します。
// 細かい代替は集約し、粗い代替はそのまま返すか InterpolateIntraday の場合のみ補間します。
func (u *ResolveUsecase) substitute(s entity.Series, tf entity.Timeframe, limit int) entity.Series {
	out := s
	out.Outcome = entity.OutcomeDegraded
	out.DegradedFrom = s.Timeframe
	if s.Timeframe == tf {
		out.Source = s.Source + " (degraded)"
		out.Points = entity.TailCandles(s.Points, limit)
		return out
	}

	switch {
	case s.Timeframe.FinerThan(tf):
		out.Points = entity.TailCandles(u.resampler.Downsample(s.Points, tf), limit)
		out.Timeframe = tf
	case u.cfg.InterpolateIntraday:
		// 最後の親は1本しか生まないため2本余分に取る
		parents := entity.TailCandles(s.Points, limit/calendar.Ratio(tf, s.Timeframe)+2)
		out.Points = entity.TailCandles(u.resampler.Upsample(parents, tf), limit)
		out.Timeframe = tf
	}
	out.Source = fmt.Sprintf("%s (degraded %s→%s)", s.Source, s.Timeframe, tf)
	return out
}

func (u *ResolveUsecase) synthetic(p entity.Pair, tf entity.Timeframe, limit int) entity.Series {
	return entity.Series{
		Pair:      p.String(),
		Timeframe: tf,
		Points:    syntheticCandles(p, tf, limit, u.now(), u.cfg.Location),
		Source:    u.fetcher.sourceOf(tf) + " → synthetic",
		Outcome:   entity.OutcomeSynthetic,
	}
}

func (u *ResolveUsecase) record(timeframe string, outcome entity.Outcome) {
	if u.recorder != nil {
		u.recorder.RecordOutcome(timeframe, string(outcome))
	}
}

// IsInvalidRequest はハンドラ向けの判定ヘルパーです。
func IsInvalidRequest(err error) bool { return errors.Is(err, domain.ErrInvalidRequest) }
