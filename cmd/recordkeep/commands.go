package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rpattn/recordkeep/internal/db"
	"github.com/rpattn/recordkeep/internal/export"
	"github.com/rpattn/recordkeep/internal/ingestion"

	"github.com/spf13/pflag"
)

type commandFunc func(ctx context.Context, env *environment, args []string) error

var commands = map[string]commandFunc{
	"migrate":    runMigrate,
	"identifier": runIdentifier,
	"import":     runImport,
	"preview":    runPreview,
	"export":     runExport,
}

func newFlagSet(env *environment, name string) *pflag.FlagSet {
	flags := pflag.NewFlagSet(name, pflag.ContinueOnError)
	flags.SetOutput(env.stderr)
	return flags
}

func runMigrate(ctx context.Context, env *environment, args []string) error {
	flags := newFlagSet(env, "migrate")
	steps := flags.Int("steps", 1, "migrations to roll back with down")
	if err := flags.Parse(args); err != nil {
		return errUsage
	}

	direction := "up"
	if flags.NArg() > 0 {
		direction = flags.Arg(0)
	}

	switch direction {
	case "up":
		return db.RunMigrations(env.cfg.Database, env.logger)
	case "down":
		return db.RollbackMigrations(env.cfg.Database, *steps, env.logger)
	default:
		return fmt.Errorf("%w: migrate expects up or down, got %q", errUsage, direction)
	}
}

func runIdentifier(ctx context.Context, env *environment, args []string) error {
	flags := newFlagSet(env, "identifier")
	limit := flags.Int("limit", 50, "identifiers to list")
	offset := flags.Int("offset", 0, "identifiers to skip")
	if err := flags.Parse(args); err != nil {
		return errUsage
	}
	if flags.NArg() == 0 {
		return fmt.Errorf("%w: identifier expects create, list or delete", errUsage)
	}

	service, err := env.recordService(ctx)
	if err != nil {
		return err
	}

	switch action := flags.Arg(0); action {
	case "create":
		if flags.NArg() < 2 {
			return fmt.Errorf("%w: identifier create <key>", errUsage)
		}
		created, err := service.CreateIdentifier(ctx, flags.Arg(1))
		if err != nil {
			return err
		}
		return env.printJSON(created)
	case "list":
		identifiers, err := service.ListIdentifiers(ctx, *limit, *offset)
		if err != nil {
			return err
		}
		return env.printJSON(identifiers)
	case "delete":
		if flags.NArg() < 2 {
			return fmt.Errorf("%w: identifier delete <key>", errUsage)
		}
		if err := service.DeleteIdentifier(ctx, flags.Arg(1)); err != nil {
			return err
		}
		env.logger.Info("identifier deleted", "key", flags.Arg(1))
		return nil
	default:
		return fmt.Errorf("%w: unknown identifier action %q", errUsage, action)
	}
}

type fileFlags struct {
	identifier *string
	file       *string
	headerRow  *int
}

func addFileFlags(flags *pflag.FlagSet) fileFlags {
	return fileFlags{
		identifier: flags.String("identifier", "", "identifier key for rows without an identifier column"),
		file:       flags.String("file", "", "CSV or XLSX file to read"),
		headerRow:  flags.Int("header-row", 0, "1-based header row; 0 detects the first non-empty row"),
	}
}

func (f fileFlags) headerRowIndex() *int {
	if *f.headerRow <= 0 {
		return nil
	}
	index := *f.headerRow - 1
	return &index
}

func (f fileFlags) open() (*os.File, error) {
	if strings.TrimSpace(*f.file) == "" {
		return nil, fmt.Errorf("%w: --file is required", errUsage)
	}
	file, err := os.Open(*f.file)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", *f.file, err)
	}
	return file, nil
}

func (e *environment) ingestionService(ctx context.Context) (*ingestion.Service, error) {
	service, err := e.recordService(ctx)
	if err != nil {
		return nil, err
	}
	return ingestion.NewService(service, e.identifiers, e.logger, ingestion.Options{
		Workers:      e.cfg.Ingestion.Workers,
		PreviewLimit: e.cfg.Ingestion.PreviewLimit,
		BatchWait:    e.cfg.Ingestion.BatchWait,
	}), nil
}

func runImport(ctx context.Context, env *environment, args []string) error {
	flags := newFlagSet(env, "import")
	input := addFileFlags(flags)
	if err := flags.Parse(args); err != nil {
		return errUsage
	}

	file, err := input.open()
	if err != nil {
		return err
	}
	defer file.Close()

	service, err := env.ingestionService(ctx)
	if err != nil {
		return err
	}

	summary, err := service.Ingest(ctx, ingestion.Request{
		Identifier:     *input.identifier,
		FileName:       filepath.Base(*input.file),
		HeaderRowIndex: input.headerRowIndex(),
		Data:           file,
	})
	if err != nil {
		return err
	}
	return env.printJSON(summary)
}

func runPreview(ctx context.Context, env *environment, args []string) error {
	flags := newFlagSet(env, "preview")
	input := addFileFlags(flags)
	limit := flags.Int("limit", 0, "rows to show; 0 uses the configured preview limit")
	if err := flags.Parse(args); err != nil {
		return errUsage
	}

	file, err := input.open()
	if err != nil {
		return err
	}
	defer file.Close()

	service, err := env.ingestionService(ctx)
	if err != nil {
		return err
	}

	result, err := service.Preview(ctx, ingestion.PreviewRequest{
		Identifier:     *input.identifier,
		FileName:       filepath.Base(*input.file),
		HeaderRowIndex: input.headerRowIndex(),
		Data:           file,
		Limit:          *limit,
	})
	if err != nil {
		return err
	}
	return env.printJSON(result)
}

func runExport(ctx context.Context, env *environment, args []string) (err error) {
	flags := newFlagSet(env, "export")
	identifier := flags.String("identifier", "", "identifier key to export")
	kind := flags.String("kind", string(export.KindRecords), "records or errors")
	format := flags.String("format", string(export.FormatCSV), "csv or xlsx")
	out := flags.String("out", "", "output file; - writes to stdout; empty derives a name")
	if err := flags.Parse(args); err != nil {
		return errUsage
	}
	if strings.TrimSpace(*identifier) == "" {
		return fmt.Errorf("%w: --identifier is required", errUsage)
	}

	parsedKind, err := export.ParseKind(*kind)
	if err != nil {
		return err
	}
	parsedFormat, err := export.ParseFormat(*format)
	if err != nil {
		return err
	}
	req := export.Request{Identifier: *identifier, Kind: parsedKind, Format: parsedFormat}

	if err := env.connect(ctx); err != nil {
		return err
	}
	service := export.NewService(env.identifiers, env.records, env.recordErrors,
		export.WithPageSize(env.cfg.Export.PageSize),
		export.WithLogger(env.logger),
	)

	if *out == "-" {
		_, err := service.Export(ctx, req, env.stdout)
		return err
	}

	path := *out
	if path == "" {
		path = export.FileName(req)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		if err != nil {
			_ = os.Remove(path)
		}
	}()

	rows, err := service.Export(ctx, req, file)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return fmt.Errorf("export interrupted after %d rows: %w", rows, err)
		}
		return err
	}
	return env.printJSON(map[string]any{"file": path, "rows": rows})
}
