package ingestion

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rpattn/recordkeep/internal/domain"

	"github.com/xuri/excelize/v2"
)

var byteOrderMark = []byte{0xEF, 0xBB, 0xBF}

// headerAliases maps normalized header labels onto record fields.
var headerAliases = map[string]string{
	"row":            domain.FieldRow,
	"row_number":     domain.FieldRow,
	"line":           domain.FieldRow,
	"email":          domain.FieldEmail,
	"email_address":  domain.FieldEmail,
	"phone":          domain.FieldPhone,
	"phone_number":   domain.FieldPhone,
	"telephone":      domain.FieldPhone,
	"first":          domain.FieldFirst,
	"first_name":     domain.FieldFirst,
	"firstname":      domain.FieldFirst,
	"last":           domain.FieldLast,
	"last_name":      domain.FieldLast,
	"lastname":       domain.FieldLast,
	"surname":        domain.FieldLast,
	"identifier":     domain.FieldIdentifier,
	"identifier_key": domain.FieldIdentifier,
}

type tableData struct {
	headers        []string
	rawHeaders     []string
	rows           [][]string
	rowNumbers     []int
	headerRowIndex int
}

// columnMapping is field -> column index.
type columnMapping map[string]int

func (m columnMapping) value(field string, row []string) (string, bool) {
	idx, ok := m[field]
	if !ok || idx >= len(row) {
		return "", false
	}
	return strings.TrimSpace(row[idx]), true
}

// fieldFor returns the record field the header maps onto, or "".
func fieldFor(header string) string {
	return headerAliases[strings.ToLower(header)]
}

func mapColumns(headers []string) columnMapping {
	mapping := columnMapping{}
	for idx, header := range headers {
		field := fieldFor(header)
		if field == "" {
			continue
		}
		if _, taken := mapping[field]; taken {
			continue
		}
		mapping[field] = idx
	}
	return mapping
}

func parseTable(fileName string, payload []byte, headerRowIndex *int) (tableData, [][]string, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	switch ext {
	case ".csv":
		return parseCSV(payload, headerRowIndex)
	case ".xlsx":
		return parseExcel(payload, headerRowIndex)
	default:
		return tableData{}, nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

func parseCSV(payload []byte, headerRowIndex *int) (tableData, [][]string, error) {
	reader := bufio.NewReader(bytes.NewReader(payload))
	if prefix, err := reader.Peek(len(byteOrderMark)); err == nil && bytes.Equal(prefix, byteOrderMark) {
		_, _ = reader.Discard(len(byteOrderMark))
	}

	csvReader := csv.NewReader(reader)
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	lines, err := csvReader.ReadAll()
	if err != nil {
		return tableData{}, nil, fmt.Errorf("failed to read csv: %w", err)
	}

	table, err := normalizeTable(lines, headerRowIndex)
	if err != nil {
		return tableData{}, nil, err
	}
	return table, lines, nil
}

func parseExcel(payload []byte, headerRowIndex *int) (tableData, [][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		return tableData{}, nil, fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return tableData{}, nil, errors.New("excel file has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return tableData{}, nil, fmt.Errorf("failed to read rows from xlsx: %w", err)
	}

	table, err := normalizeTable(rows, headerRowIndex)
	if err != nil {
		return tableData{}, nil, err
	}
	return table, rows, nil
}

// normalizeTable picks the header row and keeps every non-empty data row
// together with its 1-based position in the sheet.
func normalizeTable(lines [][]string, headerRowIndex *int) (tableData, error) {
	if len(lines) == 0 {
		return tableData{}, errors.New("no rows found in file")
	}

	headerIndex := -1
	if headerRowIndex != nil {
		if *headerRowIndex < 0 || *headerRowIndex >= len(lines) {
			return tableData{}, fmt.Errorf("header row index %d out of range", *headerRowIndex)
		}
		if isBlankRow(lines[*headerRowIndex]) {
			return tableData{}, fmt.Errorf("selected header row %d is empty", *headerRowIndex+1)
		}
		headerIndex = *headerRowIndex
	} else {
		for idx, line := range lines {
			if !isBlankRow(line) {
				headerIndex = idx
				break
			}
		}
	}

	if headerIndex < 0 {
		return tableData{}, errors.New("header row could not be detected")
	}

	headerRow := lines[headerIndex]
	headers := sanitizeHeaders(headerRow)
	rawHeaders := make([]string, len(headerRow))
	for i, value := range headerRow {
		rawHeaders[i] = strings.TrimSpace(value)
	}

	var rows [][]string
	var rowNumbers []int
	for idx := headerIndex + 1; idx < len(lines); idx++ {
		if isBlankRow(lines[idx]) {
			continue
		}
		rows = append(rows, padRow(lines[idx], len(headers)))
		rowNumbers = append(rowNumbers, idx+1)
	}

	return tableData{
		headers:        headers,
		rawHeaders:     rawHeaders,
		rows:           rows,
		rowNumbers:     rowNumbers,
		headerRowIndex: headerIndex,
	}, nil
}

func buildHeaderCandidates(lines [][]string, limit int, currentIndex int) []HeaderCandidate {
	if limit <= 0 {
		limit = 10
	}

	candidates := make([]HeaderCandidate, 0, limit)
	for idx, line := range lines {
		if isBlankRow(line) {
			continue
		}

		values := make([]string, len(line))
		for i, cell := range line {
			values[i] = strings.TrimSpace(cell)
		}

		candidates = append(candidates, HeaderCandidate{
			Index:   idx,
			Values:  values,
			Current: idx == currentIndex,
		})

		if len(candidates) >= limit {
			break
		}
	}

	return candidates
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func sanitizeHeaders(raw []string) []string {
	headers := make([]string, len(raw))
	seen := make(map[string]int)

	for idx, value := range raw {
		name := strings.ToLower(strings.TrimSpace(value))
		name = strings.ReplaceAll(name, " ", "_")
		name = strings.ReplaceAll(name, ".", "_")
		name = strings.ReplaceAll(name, "-", "_")
		name = strings.Trim(name, "_")
		if name == "" {
			name = fmt.Sprintf("column_%d", idx+1)
		}

		base := name
		count := seen[base]
		if count > 0 {
			name = fmt.Sprintf("%s_%d", base, count+1)
		}
		seen[base] = count + 1

		headers[idx] = name
	}

	return headers
}

func padRow(row []string, length int) []string {
	if len(row) >= length {
		return row[:length]
	}
	padded := make([]string, length)
	copy(padded, row)
	return padded
}
