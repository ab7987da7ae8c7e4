package adapters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"fx_backend/internal/feature/candles/domain"
	"fx_backend/internal/feature/candles/domain/entity"
	"fx_backend/internal/feature/candles/usecase"
)

type candleStore struct {
	db  *gorm.DB
	now func() time.Time
}

var _ usecase.CandleRepository = (*candleStore)(nil)

func NewCandleRepository(db *gorm.DB) *candleStore {
	return &candleStore{db: db, now: time.Now}
}

type CandleModel struct {
	ID          uint      `gorm:"primaryKey"`
	Pair        string    `gorm:"size:16;not null;uniqueIndex:candle_pair_tf_start,priority:1"`
	Timeframe   string    `gorm:"size:8;not null;uniqueIndex:candle_pair_tf_start,priority:2"`
	BucketStart time.Time `gorm:"not null;uniqueIndex:candle_pair_tf_start,priority:3"`

	Open      decimal.Decimal `gorm:"type:decimal(20,6);not null"`
	High      decimal.Decimal `gorm:"type:decimal(20,6);not null"`
	Low       decimal.Decimal `gorm:"type:decimal(20,6);not null"`
	Close     decimal.Decimal `gorm:"type:decimal(20,6);not null"`
	Source    string          `gorm:"size:64;not null;default:''"`
	UpdatedAt time.Time       `gorm:"not null;autoUpdateTime:false"`
}

func (CandleModel) TableName() string {
	return "fx_candles"
}

func toModel(e entity.Candle) CandleModel {
	return CandleModel{
		Pair:        e.Pair,
		Timeframe:   string(e.Timeframe),
		BucketStart: e.BucketStart.UTC(),
		Open:        e.Open,
		High:        e.High,
		Low:         e.Low,
		Close:       e.Close,
		Source:      e.Source,
		UpdatedAt:   e.UpdatedAt.UTC(),
	}
}

func toEntity(m CandleModel) entity.Candle {
	return entity.Candle{
		Pair:        m.Pair,
		Timeframe:   entity.Timeframe(m.Timeframe),
		BucketStart: m.BucketStart.UTC(),
		Open:        m.Open,
		High:        m.High,
		Low:         m.Low,
		Close:       m.Close,
		Source:      m.Source,
		UpdatedAt:   m.UpdatedAt.UTC(),
	}
}

// UpsertMerge inserts the candle or merges it into the stored row for the same bucket.
// The read-merge-write runs inside one transaction; the row is locked where the dialect supports it.
func (r *candleStore) UpsertMerge(ctx context.Context, c entity.Candle) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return r.mergeOne(tx, c)
	})
}

// UpsertBatch merges all candles in a single transaction and returns how many were written.
func (r *candleStore) UpsertBatch(ctx context.Context, candles []entity.Candle) (int, error) {
	if len(candles) == 0 {
		return 0, nil
	}
	n := 0
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, c := range candles {
			if err := r.mergeOne(tx, c); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (r *candleStore) mergeOne(tx *gorm.DB, c entity.Candle) error {
	if c.Pair == "" || !c.Timeframe.Valid() || c.BucketStart.IsZero() {
		return fmt.Errorf("%w: candle key is incomplete", domain.ErrInvalidRequest)
	}
	if !c.Consistent() {
		return fmt.Errorf("%w: candle %s %s %s violates low <= open,close <= high",
			domain.ErrInvalidRequest, c.Pair, c.Timeframe, c.BucketStart.Format(time.RFC3339))
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = r.now()
	}

	m := toModel(c)
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&m)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		return nil
	}

	var stored CandleModel
	q := tx.Where("pair = ? AND timeframe = ? AND bucket_start = ?", m.Pair, m.Timeframe, m.BucketStart)
	if tx.Dialector.Name() != "sqlite" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	if err := q.Take(&stored).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("candle row vanished during merge: %w", err)
		}
		return err
	}

	merged := toModel(entity.MergeCandle(toEntity(stored), c))
	return tx.Model(&CandleModel{}).Where("id = ?", stored.ID).Updates(map[string]any{
		"high":       merged.High,
		"low":        merged.Low,
		"close":      merged.Close,
		"source":     merged.Source,
		"updated_at": merged.UpdatedAt,
	}).Error
}

// Latest returns up to n most recent candles in ascending order.
func (r *candleStore) Latest(ctx context.Context, pair string, tf entity.Timeframe, n int) ([]entity.Candle, error) {
	var rows []CandleModel
	q := r.db.WithContext(ctx).
		Where("pair = ? AND timeframe = ?", pair, string(tf)).
		Order("bucket_start DESC")
	if n > 0 {
		q = q.Limit(n)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]entity.Candle, len(rows))
	for i, m := range rows {
		out[len(rows)-1-i] = toEntity(m)
	}
	return out, nil
}

// Range returns candles with from <= bucket_start <= to in ascending order.
func (r *candleStore) Range(ctx context.Context, pair string, tf entity.Timeframe, from, to time.Time) ([]entity.Candle, error) {
	var rows []CandleModel
	err := r.db.WithContext(ctx).
		Where("pair = ? AND timeframe = ? AND bucket_start BETWEEN ? AND ?", pair, string(tf), from.UTC(), to.UTC()).
		Order("bucket_start ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]entity.Candle, 0, len(rows))
	for _, m := range rows {
		out = append(out, toEntity(m))
	}
	return out, nil
}
