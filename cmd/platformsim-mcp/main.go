package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/rmax-ai/platformsim/pkg/mcp"
)

func main() {
	api := os.Getenv("PLATFORMSIM_API")
	if api == "" {
		api = "http://127.0.0.1:8095"
	}
	flag.StringVar(&api, "api", api, "base URL of platformsim-d")
	flag.Parse()

	// stdout carries the protocol, so logs go to stderr
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))
	slog.Info("mcp_server_starting", "api", api)

	if err := mcp.NewServer(api).Serve(); err != nil {
		fmt.Fprintf(os.Stderr, "platformsim-mcp: %v\n", err)
		os.Exit(1)
	}
}
