package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/rpattn/recordkeep/internal/domain"
	"github.com/rpattn/recordkeep/internal/identifierloader"
	"github.com/rpattn/recordkeep/internal/records"
	"github.com/rpattn/recordkeep/internal/repository"
	"github.com/rpattn/recordkeep/pkg/validator"

	"golang.org/x/sync/errgroup"
)

// ErrUnsupportedFormat is returned when an uploaded file is not supported.
var ErrUnsupportedFormat = errors.New("unsupported file format")

const (
	defaultWorkers      = 4
	defaultPreviewLimit = 10
)

// Options tunes row processing.
type Options struct {
	Workers      int
	PreviewLimit int
	BatchWait    time.Duration
}

// Service imports tabular files as records, storing a record error for every
// row that fails validation.
type Service struct {
	records     *records.Service
	identifiers repository.IdentifierRepository
	logger      *slog.Logger
	opts        Options
}

// NewService creates a new ingestion service.
func NewService(
	recordService *records.Service,
	identifiers repository.IdentifierRepository,
	logger *slog.Logger,
	opts Options,
) *Service {
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.PreviewLimit <= 0 {
		opts.PreviewLimit = defaultPreviewLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		records:     recordService,
		identifiers: identifiers,
		logger:      logger,
		opts:        opts,
	}
}

// Request describes the ingestion input. Identifier is used for rows that do
// not carry their own identifier column.
type Request struct {
	Identifier     string
	FileName       string
	HeaderRowIndex *int
	Data           io.Reader
}

// PreviewRequest describes the preview input prior to ingestion.
type PreviewRequest struct {
	Identifier     string
	FileName       string
	HeaderRowIndex *int
	Data           io.Reader
	Limit          int
}

// Summary returns ingestion level metrics.
type Summary struct {
	FileName       string `json:"fileName"`
	TotalRows      int    `json:"totalRows"`
	ValidRows      int    `json:"validRows"`
	InvalidRows    int    `json:"invalidRows"`
	ErrorsRecorded int    `json:"errorsRecorded"`
}

// PreviewHeader describes how a column was interpreted.
type PreviewHeader struct {
	Name          string `json:"name"`
	OriginalLabel string `json:"originalLabel"`
	Field         string `json:"field,omitempty"`
}

// PreviewRow captures sample data and validation feedback.
type PreviewRow struct {
	RowNumber int               `json:"rowNumber"`
	Values    map[string]string `json:"values"`
	Errors    []string          `json:"errors,omitempty"`
}

// HeaderCandidate represents a potential header row option.
type HeaderCandidate struct {
	Index   int      `json:"index"`
	Values  []string `json:"values"`
	Current bool     `json:"current"`
}

// PreviewResult returns preview metadata back to callers.
type PreviewResult struct {
	TotalRows        int               `json:"totalRows"`
	InvalidRows      int               `json:"invalidRows"`
	Headers          []PreviewHeader   `json:"headers"`
	Rows             []PreviewRow      `json:"rows"`
	HeaderCandidates []HeaderCandidate `json:"headerCandidates"`
}

type rowOutcome struct {
	number   int
	attrs    validator.Attributes
	result   validator.Result
	recorded bool
}

// Ingest reads the uploaded file, persists valid rows as records and logs a
// record error for each invalid row.
func (s *Service) Ingest(ctx context.Context, req Request) (Summary, error) {
	summary := Summary{FileName: req.FileName}

	table, _, err := readTable(req.FileName, req.Data, req.HeaderRowIndex)
	if err != nil {
		return summary, err
	}
	mapping := mapColumns(table.headers)
	if len(mapping) == 0 {
		return summary, errors.New("no record columns found in header row")
	}

	summary.TotalRows = len(table.rows)
	if summary.TotalRows == 0 {
		return summary, nil
	}

	started := time.Now()
	outcomes, err := s.processRows(ctx, table, mapping, req.Identifier, s.persist)
	if err != nil {
		return summary, err
	}

	for _, outcome := range outcomes {
		if outcome.result.Valid {
			summary.ValidRows++
			continue
		}
		summary.InvalidRows++
		if outcome.recorded {
			summary.ErrorsRecorded++
		}
	}

	s.logger.Info("import finished",
		"file", req.FileName,
		"identifier", req.Identifier,
		"rows", summary.TotalRows,
		"valid", summary.ValidRows,
		"invalid", summary.InvalidRows,
		"duration", time.Since(started),
	)
	return summary, nil
}

// Preview runs validations against the file without persisting anything.
func (s *Service) Preview(ctx context.Context, req PreviewRequest) (PreviewResult, error) {
	result := PreviewResult{
		Headers:          []PreviewHeader{},
		Rows:             []PreviewRow{},
		HeaderCandidates: []HeaderCandidate{},
	}

	table, lines, err := readTable(req.FileName, req.Data, req.HeaderRowIndex)
	if err != nil {
		return result, err
	}
	result.HeaderCandidates = buildHeaderCandidates(lines, 10, table.headerRowIndex)

	for idx, header := range table.headers {
		result.Headers = append(result.Headers, PreviewHeader{
			Name:          header,
			OriginalLabel: table.rawHeaders[idx],
			Field:         fieldFor(header),
		})
	}

	mapping := mapColumns(table.headers)
	if len(mapping) == 0 {
		return result, errors.New("no record columns found in header row")
	}

	outcomes, err := s.processRows(ctx, table, mapping, req.Identifier, nil)
	if err != nil {
		return result, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = s.opts.PreviewLimit
	}

	result.TotalRows = len(outcomes)
	for idx, outcome := range outcomes {
		if !outcome.result.Valid {
			result.InvalidRows++
		}
		if idx >= limit {
			continue
		}

		values := make(map[string]string, len(table.headers))
		for colIdx, header := range table.headers {
			values[header] = strings.TrimSpace(table.rows[idx][colIdx])
		}
		result.Rows = append(result.Rows, PreviewRow{
			RowNumber: outcome.number,
			Values:    values,
			Errors:    outcome.result.Errors.Messages(),
		})
	}

	return result, nil
}

// processRows validates every row concurrently. handle, when set, runs in the
// worker right after a row is validated.
func (s *Service) processRows(
	ctx context.Context,
	table tableData,
	mapping columnMapping,
	defaultIdentifier string,
	handle func(ctx context.Context, scoped *records.Service, outcome *rowOutcome) error,
) ([]rowOutcome, error) {
	loader := identifierloader.NewIdentifierLoader(s.identifiers, s.opts.BatchWait)
	scoped := s.records.WithResolver(loader)
	v := scoped.Validator()

	outcomes := make([]rowOutcome, len(table.rows))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.opts.Workers)

	for idx := range table.rows {
		group.Go(func() error {
			outcome := &outcomes[idx]
			outcome.number = table.rowNumbers[idx]
			outcome.attrs = rowAttributes(mapping, table.rows[idx], outcome.number, defaultIdentifier)

			result, err := v.ValidateRecord(groupCtx, outcome.attrs)
			if err != nil {
				return fmt.Errorf("row %d: %w", outcome.number, err)
			}
			outcome.result = result

			if handle == nil {
				return nil
			}
			return handle(groupCtx, scoped, outcome)
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

func (s *Service) persist(ctx context.Context, scoped *records.Service, outcome *rowOutcome) error {
	identifier := validator.StringValue(outcome.attrs.Get(domain.FieldIdentifier))

	if outcome.result.Valid {
		err := saveRecord(ctx, scoped, identifier, outcome.attrs)
		if err == nil {
			return nil
		}
		fieldErrors, invalid := validator.ExtractFieldErrors(err)
		if !invalid {
			return fmt.Errorf("row %d: %w", outcome.number, err)
		}
		outcome.result = validator.Result{Valid: false, Errors: fieldErrors}
	}

	row := int64(outcome.number)
	if parsed, err := records.ParseRow(outcome.attrs.Get(domain.FieldRow)); err == nil {
		row = parsed
	}

	recordError := domain.NewRecordError(identifier, row, records.ErrorText(outcome.result.Errors))
	if _, err := scoped.SaveRecordError(ctx, recordError); err != nil {
		if _, invalid := validator.ExtractFieldErrors(err); !invalid {
			return fmt.Errorf("row %d: failed to save record error: %w", outcome.number, err)
		}
		s.logger.Warn("record error not stored",
			"row", outcome.number,
			"identifier", identifier,
			"reason", err,
		)
		return nil
	}
	outcome.recorded = true
	return nil
}

func saveRecord(ctx context.Context, scoped *records.Service, identifier string, attrs validator.Attributes) error {
	row, err := records.ParseRow(attrs.Get(domain.FieldRow))
	if err != nil {
		return validator.FieldErrors{domain.FieldRow: {"is out of range"}}
	}
	record := domain.NewRecord(
		identifier,
		row,
		validator.StringValue(attrs.Get(domain.FieldEmail)),
		validator.StringValue(attrs.Get(domain.FieldPhone)),
		validator.StringValue(attrs.Get(domain.FieldFirst)),
		validator.StringValue(attrs.Get(domain.FieldLast)),
	)
	if _, err := scoped.SaveRecord(ctx, record); err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}
	return nil
}

// rowAttributes builds the validation input for one row. Missing row and
// identifier columns fall back to the sheet position and the request
// identifier.
func rowAttributes(mapping columnMapping, row []string, rowNumber int, defaultIdentifier string) validator.Attributes {
	attrs := validator.Attributes{}

	if value, ok := mapping.value(domain.FieldRow, row); ok {
		attrs[domain.FieldRow] = value
	} else {
		attrs[domain.FieldRow] = rowNumber
	}

	if value, ok := mapping.value(domain.FieldIdentifier, row); ok && value != "" {
		attrs[domain.FieldIdentifier] = value
	} else {
		attrs[domain.FieldIdentifier] = strings.TrimSpace(defaultIdentifier)
	}

	for _, field := range []string{domain.FieldEmail, domain.FieldPhone, domain.FieldFirst, domain.FieldLast} {
		if value, ok := mapping.value(field, row); ok {
			attrs[field] = value
		} else {
			attrs[field] = nil
		}
	}

	return attrs
}

func readTable(fileName string, data io.Reader, headerRowIndex *int) (tableData, [][]string, error) {
	if data == nil {
		return tableData{}, nil, errors.New("data reader is required")
	}

	payload, err := io.ReadAll(data)
	if err != nil {
		return tableData{}, nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if len(payload) == 0 {
		return tableData{}, nil, errors.New("file is empty")
	}

	table, lines, err := parseTable(fileName, payload, headerRowIndex)
	if err != nil {
		return tableData{}, nil, err
	}
	if len(table.headers) == 0 {
		return tableData{}, nil, errors.New("no header row detected")
	}
	return table, lines, nil
}
