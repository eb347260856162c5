package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rpattn/recordkeep/internal/config"

	"github.com/spf13/pflag"
)

const usage = `usage: recordkeep [global flags] <command> [flags]

commands:
  migrate [up|down]                     apply or roll back database migrations
  identifier create|list|delete [key]   manage identifiers
  import  --identifier K --file F       import a CSV or XLSX file
  preview --identifier K --file F       validate a file without storing it
  export  --identifier K --out F        export records or record errors

global flags:
`

var errUsage = errors.New("invalid usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "recordkeep: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	global := pflag.NewFlagSet("recordkeep", pflag.ContinueOnError)
	global.SetOutput(stderr)
	global.SetInterspersed(false)
	global.Usage = func() {
		fmt.Fprint(stderr, usage)
		global.PrintDefaults()
	}

	configPath := global.String("config", ".", "directory containing config.yaml and .env")
	global.String("log-level", "info", "log level (debug, info, warn, error)")
	global.String("log-format", "text", "log format (text, json)")
	global.Int("workers", 4, "concurrent row validations during import")
	global.Int("page-size", 1000, "rows fetched per page during export")

	if err := global.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return errUsage
	}

	rest := global.Args()
	if len(rest) == 0 {
		global.Usage()
		return errUsage
	}

	command, ok := commands[rest[0]]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n\n", rest[0])
		global.Usage()
		return errUsage
	}

	cfg, err := config.Load(*configPath, global)
	if err != nil {
		return err
	}
	logger := config.NewLogger(cfg.Log, stderr)

	env := &environment{cfg: cfg, logger: logger, stdout: stdout, stderr: stderr}
	defer env.close()

	return command(ctx, env, rest[1:])
}
