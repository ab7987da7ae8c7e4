package main

import "fx_backend/internal/cli"

func main() {
	cli.Execute()
}
