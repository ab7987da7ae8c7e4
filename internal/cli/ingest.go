package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"fx_backend/internal/feature/candles/domain/entity"
)

var (
	ingestPairs      []string
	ingestTimeframes []string
	ingestTimeout    time.Duration
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Fetch candles from Twelve Data and merge them into the store",
	RunE: func(cmd *cobra.Command, args []string) error {
		pairs := ingestPairs
		if len(pairs) == 0 {
			pairs = cfg.Ingest.Pairs
		}
		timeframes := cfg.IngestTimeframes()
		if len(ingestTimeframes) > 0 {
			timeframes = timeframes[:0]
			for _, s := range ingestTimeframes {
				tf, ok := entity.ParseTimeframe(s)
				if !ok {
					return fmt.Errorf("unsupported timeframe %q", s)
				}
				timeframes = append(timeframes, tf)
			}
		}

		c, err := buildContainer(cmd.Context())
		if err != nil {
			return err
		}
		defer c.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), ingestTimeout)
		defer cancel()

		report, err := c.Ingest.IngestAll(ctx, pairs, timeframes)
		log.Info().Int("upserted", report.Upserted).Int("failed", report.Failed).Msg("ingest finished")
		if err != nil {
			return err
		}
		if report.Failed > 0 && report.Upserted == 0 {
			return fmt.Errorf("ingest failed for all %d requests", report.Failed)
		}
		return nil
	},
}

func init() {
	ingestCmd.Flags().StringSliceVar(&ingestPairs, "pairs", nil, "Currency pairs, e.g. USD-KRW,JPY-KRW (default from config)")
	ingestCmd.Flags().StringSliceVar(&ingestTimeframes, "timeframes", nil, "Timeframes, e.g. 1d,1w (default from config)")
	ingestCmd.Flags().DurationVar(&ingestTimeout, "timeout", 5*time.Minute, "Overall ingest deadline")
}
