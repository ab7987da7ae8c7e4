package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"fx_backend/internal/feature/candles/domain/entity"
	"fx_backend/internal/platform/cache"
	infraredis "fx_backend/internal/platform/redis"
)

var purgePair string

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete Redis series snapshots for a pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, ok := entity.ParsePair(purgePair)
		if !ok {
			return fmt.Errorf("invalid pair %q", purgePair)
		}
		rdb, err := infraredis.NewRedisClient(cmd.Context(), cfg.Redis, log)
		if err != nil {
			return err
		}
		if rdb == nil {
			return errors.New("redis.addr is not configured")
		}
		defer rdb.Close()

		n, err := purge(cmd.Context(), cache.NewRedisSnapshot[entity.Series](rdb, cfg.Redis.SnapshotTTL, cfg.Redis.Namespace), p.String())
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "purged %d snapshots for %s\n", n, p)
		return err
	},
}

type snapshotPurger interface {
	Purge(ctx context.Context, pair string) (int, error)
}

func purge(ctx context.Context, s snapshotPurger, pair string) (int, error) {
	n, err := s.Purge(ctx, pair)
	if err != nil {
		return 0, fmt.Errorf("purge %s: %w", pair, err)
	}
	log.Info().Str("pair", pair).Int("deleted", n).Msg("snapshots purged")
	return n, nil
}

func init() {
	purgeCmd.Flags().StringVar(&purgePair, "pair", "", "Currency pair, e.g. USD-KRW")
	_ = purgeCmd.MarkFlagRequired("pair")
}
