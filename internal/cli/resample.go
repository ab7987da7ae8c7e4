package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"fx_backend/internal/feature/candles/transport/http/dto"
)

var (
	resamplePair string
	resampleFrom string
	resampleTo   string
	resampleTake int
)

var resampleCmd = &cobra.Command{
	Use:   "resample",
	Short: "Resample stored candles to another timeframe and print them as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := buildContainer(cmd.Context())
		if err != nil {
			return err
		}
		defer c.Close()

		s, err := c.Candles.ResampleFrom(cmd.Context(), resamplePair, resampleFrom, resampleTo, resampleTake)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(dto.NewSeriesResponse(s, c.Location))
	},
}

func init() {
	resampleCmd.Flags().StringVar(&resamplePair, "pair", "", "Currency pair, e.g. USD-KRW")
	resampleCmd.Flags().StringVar(&resampleFrom, "from", "1d", "Stored source timeframe")
	resampleCmd.Flags().StringVar(&resampleTo, "to", "1w", "Target timeframe")
	resampleCmd.Flags().IntVar(&resampleTake, "take", 0, "Number of stored candles to read (default 2000)")
	_ = resampleCmd.MarkFlagRequired("pair")
}
