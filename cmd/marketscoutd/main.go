package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"marketscout/internal/config"
	"marketscout/internal/daemonrun"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	opts, configPath, err := parseFlags(args)
	if err != nil {
		return err
	}
	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	return daemonrun.Run(context.Background(), cfg, opts)
}

func parseFlags(args []string) (daemonrun.Options, string, error) {
	fs := flag.NewFlagSet("marketscoutd", flag.ContinueOnError)
	var opts daemonrun.Options
	configPath := fs.String("config", "", "Configuration file path")
	fs.StringVar(&opts.LogLevel, "log-level", "", "Override logging.level")
	fs.BoolVar(&opts.Development, "dev", false, "Include source locations in log output")
	if err := fs.Parse(args); err != nil {
		return opts, "", err
	}
	if fs.NArg() > 0 {
		return opts, "", fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	return opts, *configPath, nil
}
