// Package main starts the MCP server exposing the narrator's game mechanics.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	mcpcmd "github.com/Jordannewman90/Roleplay-Foreplay/internal/cmd/mcp"
	entrypoint "github.com/Jordannewman90/Roleplay-Foreplay/internal/platform/cmd"
)

func main() {
	log.SetPrefix("[MCP] ")
	// stdout carries the MCP protocol.
	log.SetOutput(os.Stderr)
	if err := entrypoint.LoadEnvFile(os.LookupEnv); err != nil {
		log.Fatalf("load env file: %v", err)
	}
	cfg, err := mcpcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := mcpcmd.Run(ctx, cfg); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}
