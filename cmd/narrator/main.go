// Package main starts the narrator: a websocket chat table whose replies come
// from a Gemini driven dungeon master.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	narratorcmd "github.com/Jordannewman90/Roleplay-Foreplay/internal/cmd/narrator"
	entrypoint "github.com/Jordannewman90/Roleplay-Foreplay/internal/platform/cmd"
)

func main() {
	log.SetPrefix("[NARRATOR] ")
	if err := entrypoint.LoadEnvFile(os.LookupEnv); err != nil {
		log.Fatalf("load env file: %v", err)
	}
	cfg, err := narratorcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := narratorcmd.Run(ctx, cfg); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}
