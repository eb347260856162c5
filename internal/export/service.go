package export

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/rpattn/recordkeep/internal/domain"
	"github.com/rpattn/recordkeep/internal/repository"

	"github.com/xuri/excelize/v2"
)

// Kind selects what is exported for an identifier.
type Kind string

const (
	KindRecords Kind = "records"
	KindErrors  Kind = "errors"
)

// Format selects the output encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

var (
	ErrUnsupportedKind   = errors.New("unsupported export kind")
	ErrUnsupportedFormat = errors.New("unsupported export format")

	recordColumns = []string{
		domain.FieldRow,
		domain.FieldEmail,
		domain.FieldPhone,
		domain.FieldFirst,
		domain.FieldLast,
		domain.FieldIdentifier,
		"created_at",
	}
	recordErrorColumns = []string{
		domain.FieldRow,
		domain.FieldText,
		domain.FieldIdentifier,
		"created_at",
	}
)

func ParseKind(value string) (Kind, error) {
	switch kind := Kind(strings.ToLower(strings.TrimSpace(value))); kind {
	case KindRecords, KindErrors:
		return kind, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedKind, value)
	}
}

func ParseFormat(value string) (Format, error) {
	switch format := Format(strings.ToLower(strings.TrimSpace(value))); format {
	case FormatCSV, FormatXLSX:
		return format, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, value)
	}
}

// Request describes one export.
type Request struct {
	Identifier string
	Kind       Kind
	Format     Format
}

type Service struct {
	identifiers  repository.IdentifierRepository
	records      repository.RecordRepository
	recordErrors repository.RecordErrorRepository

	pageSize int
	logger   *slog.Logger
}

type Option func(*Service)

func WithPageSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.pageSize = size
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewService(
	identifiers repository.IdentifierRepository,
	records repository.RecordRepository,
	recordErrors repository.RecordErrorRepository,
	opts ...Option,
) *Service {
	service := &Service{
		identifiers:  identifiers,
		records:      records,
		recordErrors: recordErrors,
		pageSize:     1000,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// Export streams every record or record error of the identifier to w and
// returns the number of data rows written.
func (s *Service) Export(ctx context.Context, req Request, w io.Writer) (int, error) {
	kind, err := ParseKind(string(req.Kind))
	if err != nil {
		return 0, err
	}
	format, err := ParseFormat(string(req.Format))
	if err != nil {
		return 0, err
	}

	key := strings.TrimSpace(req.Identifier)
	if _, err := s.identifiers.GetByKey(ctx, key); err != nil {
		return 0, fmt.Errorf("failed to load identifier: %w", err)
	}

	counter := &countingWriter{writer: w}
	var sink rowSink
	switch format {
	case FormatXLSX:
		sink, err = newXLSXSink(counter, string(kind))
	default:
		sink = newCSVSink(counter)
	}
	if err != nil {
		return 0, err
	}

	columns := recordColumns
	fetch := s.recordPage
	if kind == KindErrors {
		columns = recordErrorColumns
		fetch = s.recordErrorPage
	}

	if err := sink.WriteRow(columns); err != nil {
		return 0, fmt.Errorf("failed to write header: %w", err)
	}

	rowsExported := 0
	for offset := 0; ; offset += s.pageSize {
		if ctx.Err() != nil {
			return rowsExported, ctx.Err()
		}
		rows, err := fetch(ctx, key, offset)
		if err != nil {
			return rowsExported, err
		}
		for _, row := range rows {
			if err := sink.WriteRow(row); err != nil {
				return rowsExported, fmt.Errorf("failed to write row: %w", err)
			}
			rowsExported++
		}
		if len(rows) < s.pageSize {
			break
		}
	}

	if err := sink.Close(); err != nil {
		return rowsExported, fmt.Errorf("failed to finish export: %w", err)
	}

	s.logger.Info("export completed",
		"identifier", key,
		"kind", kind,
		"format", format,
		"rows", rowsExported,
		"bytes", counter.count,
	)
	return rowsExported, nil
}

// FileName suggests an output file name for the request.
func FileName(req Request) string {
	base := sanitizeFileComponent(req.Identifier)
	kind := string(req.Kind)
	if kind == "" {
		kind = string(KindRecords)
	}
	format := string(req.Format)
	if format == "" {
		format = string(FormatCSV)
	}
	return fmt.Sprintf("%s-%s.%s", base, kind, format)
}

func (s *Service) recordPage(ctx context.Context, key string, offset int) ([][]string, error) {
	records, err := s.records.ListByIdentifier(ctx, key, s.pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	rows := make([][]string, len(records))
	for i, record := range records {
		rows[i] = []string{
			strconv.FormatInt(record.Row, 10),
			record.Email,
			record.Phone,
			record.First,
			record.Last,
			record.Identifier,
			formatTime(record.CreatedAt),
		}
	}
	return rows, nil
}

func (s *Service) recordErrorPage(ctx context.Context, key string, offset int) ([][]string, error) {
	recordErrors, err := s.recordErrors.ListByIdentifier(ctx, key, s.pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list record errors: %w", err)
	}
	rows := make([][]string, len(recordErrors))
	for i, recordError := range recordErrors {
		rows[i] = []string{
			strconv.FormatInt(recordError.Row, 10),
			recordError.Text,
			recordError.Identifier,
			formatTime(recordError.CreatedAt),
		}
	}
	return rows, nil
}

type rowSink interface {
	WriteRow(values []string) error
	Close() error
}

type csvSink struct {
	buffered *bufio.Writer
	writer   *csv.Writer
}

func newCSVSink(w io.Writer) *csvSink {
	buffered := bufio.NewWriterSize(w, 1<<16)
	return &csvSink{buffered: buffered, writer: csv.NewWriter(buffered)}
}

func (c *csvSink) WriteRow(values []string) error {
	return c.writer.Write(values)
}

func (c *csvSink) Close() error {
	c.writer.Flush()
	if err := c.writer.Error(); err != nil {
		return err
	}
	return c.buffered.Flush()
}

type xlsxSink struct {
	file   *excelize.File
	stream *excelize.StreamWriter
	out    io.Writer
	row    int
}

func newXLSXSink(w io.Writer, sheet string) (*xlsxSink, error) {
	file := excelize.NewFile()
	if err := file.SetSheetName("Sheet1", sheet); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}
	stream, err := file.NewStreamWriter(sheet)
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to open sheet stream: %w", err)
	}
	return &xlsxSink{file: file, stream: stream, out: w}, nil
}

func (x *xlsxSink) WriteRow(values []string) error {
	x.row++
	cell, err := excelize.CoordinatesToCellName(1, x.row)
	if err != nil {
		return err
	}
	cells := make([]interface{}, len(values))
	for i, value := range values {
		cells[i] = value
	}
	return x.stream.SetRow(cell, cells)
}

func (x *xlsxSink) Close() error {
	defer func() { _ = x.file.Close() }()
	if err := x.stream.Flush(); err != nil {
		return err
	}
	return x.file.Write(x.out)
}

type countingWriter struct {
	writer io.Writer
	count  int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.writer.Write(p)
	c.count += int64(n)
	return n, err
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func sanitizeFileComponent(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	builder := strings.Builder{}
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-' || r == '_':
			builder.WriteRune(r)
		default:
			builder.WriteRune('-')
		}
	}
	result := strings.Trim(builder.String(), "-")
	if result == "" {
		return "export"
	}
	return result
}
