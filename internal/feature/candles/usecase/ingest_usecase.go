package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"fx_backend/internal/feature/candles/domain/entity"
)

const (
	ingestOutputSize = 200 // 1回のリクエストで取得するデータ件数
)

// DefaultIngestTimeframes はデータ取得の対象となる時間足のリストです。
var DefaultIngestTimeframes = []entity.Timeframe{entity.Timeframe1d, entity.Timeframe1w, entity.Timeframe1mo}

// IngestReport は一括取り込みの結果です。
type IngestReport struct {
	Upserted int
	Failed   int
}

// IngestUsecase は外部APIからデータを取得し、データベースに永続化するユースケースを定義します。
// 上流のリクエスト上限は MarketRepository 側の予算で待機します。
type IngestUsecase struct {
	fetcher    fetcher
	candle     CandleRepository
	outputSize int
	logger     zerolog.Logger
}

// NewIngestUsecase は新しい IngestUsecase を作成します。
func NewIngestUsecase(market MarketRepository, candle CandleRepository, loc *time.Location, logger zerolog.Logger) *IngestUsecase {
	return &IngestUsecase{fetcher: newFetcher(market, loc, DefaultProvider), candle: candle, outputSize: ingestOutputSize, logger: logger}
}

// WithOutputSize は省略時の取得件数を変更します。0 以下は無視します。
func (iu *IngestUsecase) WithOutputSize(n int) *IngestUsecase {
	if n > 0 {
		iu.outputSize = n
	}
	return iu
}

// IngestOne は指定された通貨ペアと時間足の時系列データを外部リポジトリから取得し、
// データベースにマージしながら一括で保存します。
func (iu *IngestUsecase) IngestOne(ctx context.Context, pair, timeframe string, outputsize int) (int, error) {
	if outputsize <= 0 {
		outputsize = iu.outputSize
	}
	p, tf, outputsize, err := parseRequest(pair, timeframe, outputsize)
	if err != nil {
		return 0, err
	}

	cs, err := iu.fetcher.fetch(ctx, p, tf, outputsize)
	if err != nil {
		return 0, err
	}
	return iu.candle.UpsertBatch(ctx, cs)
}

// IngestAll は指定された全通貨ペアの時系列データを複数の時間足で取得し、データベースに永続化します。
// 1件の失敗では止まらず、コンテキストが終了した時点で中断します。
func (iu *IngestUsecase) IngestAll(ctx context.Context, pairs []string, timeframes []entity.Timeframe) (IngestReport, error) {
	if len(timeframes) == 0 {
		timeframes = DefaultIngestTimeframes
	}
	var report IngestReport
	for _, pair := range pairs {
		for _, tf := range timeframes {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			n, err := iu.IngestOne(ctx, pair, string(tf), iu.outputSize)
			if err != nil {
				// 1つのペアでエラーが発生しても処理を止めずにログに出力し、次の処理を続ける
				iu.logger.Error().Err(err).Str("pair", pair).Str("timeframe", string(tf)).Msg("failed to ingest data")
				report.Failed++
				continue
			}
			iu.logger.Info().Str("pair", pair).Str("timeframe", string(tf)).Int("upserted", n).Msg("ingested")
			report.Upserted += n
		}
	}
	return report, nil
}
