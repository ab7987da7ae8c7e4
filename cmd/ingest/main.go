package main

import (
	"os"

	"fx_backend/internal/cli"
)

// ingest は fxserver ingest の単体バイナリです（cron / Cloud Run Jobs 用）。
func main() {
	cli.ExecuteArgs(append([]string{"ingest"}, os.Args[1:]...))
}
