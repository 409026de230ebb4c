package services

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/tealeg/xlsx"
	"go.uber.org/zap"

	"github.com/ekaya-inc/cleanlist/pkg/apperrors"
	"github.com/ekaya-inc/cleanlist/pkg/models"
)

var (
	utf8BOM  = []byte{0xEF, 0xBB, 0xBF}
	zipMagic = []byte{'P', 'K', 0x03, 0x04}

	// candidateDelimiters in preference order for ties.
	candidateDelimiters = []rune{',', ';', '\t', '|'}
)

// sniffRecords is how many records are sampled per candidate delimiter.
const sniffRecords = 20

// DataLoader parses uploaded tabular files. It has no side effects.
type DataLoader struct {
	logger *zap.Logger
}

// NewDataLoader creates a new DataLoader.
func NewDataLoader(logger *zap.Logger) *DataLoader {
	return &DataLoader{logger: logger.Named("loader")}
}

// Load parses raw into a SourceTable. Spreadsheets (.xlsx) are read from
// their first sheet; everything else is treated as delimited text with an
// optional UTF-8 byte-order mark and a sniffed delimiter. Any failure is
// returned as ErrLoad with a human-readable cause.
func (l *DataLoader) Load(filename string, raw []byte) (*models.SourceTable, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, loadError("file is empty")
	}

	var (
		table *models.SourceTable
		err   error
	)
	if strings.EqualFold(filepath.Ext(filename), ".xlsx") || bytes.HasPrefix(raw, zipMagic) {
		table, err = parseXLSX(raw)
	} else {
		table, err = parseDelimited(raw)
	}
	if err != nil {
		l.logger.Debug("Failed to load upload",
			zap.String("filename", filename),
			zap.Int("bytes", len(raw)),
			zap.Error(err))
		return nil, err
	}

	l.logger.Debug("Loaded upload",
		zap.String("filename", filename),
		zap.Int("columns", len(table.Columns)),
		zap.Int("rows", len(table.Rows)))
	return table, nil
}

func loadError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", apperrors.ErrLoad, fmt.Sprintf(format, args...))
}

func parseDelimited(raw []byte) (*models.SourceTable, error) {
	raw = bytes.TrimPrefix(raw, utf8BOM)
	if !utf8.Valid(raw) {
		return nil, loadError("file is not valid UTF-8 text")
	}

	delim, err := sniffDelimiter(raw)
	if err != nil {
		return nil, err
	}

	r := newCSVReader(raw, delim)
	header, err := r.Read()
	if err != nil {
		return nil, loadError("cannot read header: %v", err)
	}
	columns := normalizeHeader(header)

	table := &models.SourceTable{Columns: columns}
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, loadError("%v", err)
		}
		if len(record) > len(columns) {
			line, _ := r.FieldPos(0)
			return nil, loadError("line %d: expected %d fields, found %d", line, len(columns), len(record))
		}
		table.Rows = append(table.Rows, toRow(columns, record))
	}
	return table, nil
}

func newCSVReader(raw []byte, delim rune) *csv.Reader {
	r := csv.NewReader(bytes.NewReader(raw))
	r.Comma = delim
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	return r
}

// sniffDelimiter picks the candidate whose sampled records most consistently
// match the header's field count. A header that no candidate splits is a
// single-column file and parses with a comma.
func sniffDelimiter(raw []byte) (rune, error) {
	type score struct {
		delim     rune
		fields    int
		agreement float64
	}

	var best *score
	splittable := false
	for _, delim := range candidateDelimiters {
		r := newCSVReader(raw, delim)
		header, err := r.Read()
		if err != nil || len(header) < 2 {
			continue
		}
		splittable = true

		matched, total := 0, 0
		for total < sniffRecords {
			record, err := r.Read()
			if err != nil {
				break
			}
			total++
			if len(record) == len(header) {
				matched++
			}
		}

		s := score{delim: delim, fields: len(header), agreement: 1}
		if total > 0 {
			s.agreement = float64(matched) / float64(total)
		}
		if s.agreement < 0.5 {
			continue
		}
		if best == nil || s.agreement > best.agreement ||
			(s.agreement == best.agreement && s.fields > best.fields) {
			best = &s
		}
	}

	switch {
	case best != nil:
		return best.delim, nil
	case splittable:
		return 0, loadError("could not determine the field delimiter")
	default:
		return ',', nil
	}
}

// normalizeHeader names blank headers "Unnamed: N" and suffixes repeated
// names with ".1", ".2", skipping suffixes already taken, so every column is
// addressable.
func normalizeHeader(header []string) []string {
	columns := make([]string, len(header))
	taken := make(map[string]bool, len(header))
	suffix := make(map[string]int, len(header))
	for i, name := range header {
		if strings.TrimSpace(name) == "" {
			name = "Unnamed: " + strconv.Itoa(i)
		}
		column := name
		if taken[column] {
			n := suffix[name]
			for taken[column] {
				n++
				column = name + "." + strconv.Itoa(n)
			}
			suffix[name] = n
		}
		taken[column] = true
		columns[i] = column
	}
	return columns
}

func toRow(columns, record []string) models.SourceRow {
	row := make(models.SourceRow, len(columns))
	for i, c := range columns {
		if i < len(record) {
			row[c] = record[i]
		} else {
			row[c] = ""
		}
	}
	return row
}

func parseXLSX(raw []byte) (*models.SourceTable, error) {
	f, err := xlsx.OpenBinary(raw)
	if err != nil {
		return nil, loadError("cannot open spreadsheet: %v", err)
	}
	if len(f.Sheets) == 0 {
		return nil, loadError("spreadsheet has no sheets")
	}

	var (
		columns []string
		table   = &models.SourceTable{}
	)
	for _, row := range f.Sheets[0].Rows {
		if row == nil || isEmptyRow(row) {
			continue
		}
		cells := make([]string, len(row.Cells))
		for i, cell := range row.Cells {
			cells[i] = cell.String()
		}
		if columns == nil {
			columns = normalizeHeader(trimTrailingBlank(cells))
			table.Columns = columns
			continue
		}
		table.Rows = append(table.Rows, toRow(columns, cells))
	}

	if columns == nil {
		return nil, loadError("spreadsheet has no header row")
	}
	return table, nil
}

func isEmptyRow(r *xlsx.Row) bool {
	for _, cell := range r.Cells {
		if strings.TrimSpace(cell.String()) != "" {
			return false
		}
	}
	return true
}

func trimTrailingBlank(cells []string) []string {
	end := len(cells)
	for end > 0 && strings.TrimSpace(cells[end-1]) == "" {
		end--
	}
	return cells[:end]
}
