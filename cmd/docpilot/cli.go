package main

import (
	"context"
	"io"
	"log/slog"

	"github.com/fwojciec/docpilot"
)

// Dependencies holds all services and configuration for command execution.
type Dependencies struct {
	Ctx     context.Context
	Stdout  io.Writer
	Stderr  io.Writer
	Logger  *slog.Logger
	Config  *docpilot.Config
	Builder docpilot.CatalogBuilder
	Queries docpilot.QueryService
	Catalog docpilot.CatalogService
}

// CLI defines the command-line interface structure for Kong.
type CLI struct {
	Config  string `short:"c" env:"DOCPILOT_CONFIG" help:"Path to the YAML configuration file"`
	Verbose bool   `short:"v" help:"Log debug output to stderr"`

	Build BuildCmd `cmd:"" help:"Scan the docs tree and update the catalog"`
	Query QueryCmd `cmd:"" help:"Look up documentation locations for a question"`
	Stats StatsCmd `cmd:"" help:"Show catalog counts"`
}

// BuildCmd is the "build" subcommand.
type BuildCmd struct {
	Full bool `help:"Re-extract every file regardless of its signature"`
}

// QueryCmd is the "query" subcommand.
type QueryCmd struct {
	Text       string `arg:"" help:"Free-text query"`
	TopK       int    `name:"topk" help:"Shortlist size (default from config)"`
	Final      int    `help:"Number of results (default from config)"`
	WithImages bool   `help:"Include images from the matched sections"`
	NoCache    bool   `help:"Bypass the query cache"`
}

// StatsCmd is the "stats" subcommand.
type StatsCmd struct{}
