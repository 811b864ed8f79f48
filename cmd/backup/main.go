// Package main uploads the campaign document to the configured backup target
// once and exits.
package main

import (
	"context"
	"flag"
	"os"

	backupcmd "github.com/Jordannewman90/Roleplay-Foreplay/internal/cmd/backup"
	entrypoint "github.com/Jordannewman90/Roleplay-Foreplay/internal/platform/cmd"
	"github.com/Jordannewman90/Roleplay-Foreplay/internal/platform/config"
)

func main() {
	if err := entrypoint.LoadEnvFile(os.LookupEnv); err != nil {
		config.Exitf("load env file: %v", err)
	}
	cfg, err := backupcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	if err := backupcmd.Run(context.Background(), cfg, os.Stdout); err != nil {
		config.Exitf("backup: %v", err)
	}
}
