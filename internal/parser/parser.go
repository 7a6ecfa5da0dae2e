// Package parser implements the Record Parser component (C2): it
// streams a delimited text file from a scratch path, applies a
// column mapping, validates required fields, and emits canonical Part
// records in batches.
package parser

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/partsform/syncengine/internal/entity"
)

const defaultBatchSize = 1000

const maxRowErrors = 100

var delimiterCandidates = []rune{',', ';', '\t', '|'}

// RowError records a per-row validation failure. The file continues
// parsing past it; the row is counted as skipped.
type RowError struct {
	Row     int
	Message string
}

// FileResult is the outcome of parsing one file.
type FileResult struct {
	RecordsTotal   int
	RecordsValid   int
	RecordsSkipped int
	Errors         []RowError
	EncodingFallback bool
}

func (r *FileResult) addError(row int, msg string) {
	r.RecordsSkipped++
	if len(r.Errors) < maxRowErrors {
		r.Errors = append(r.Errors, RowError{Row: row, Message: msg})
	}
}

// Parser streams a delimited file into canonical Part records.
type Parser struct {
	BatchSize int
}

// New creates a Parser with the default batch size.
func New() *Parser {
	return &Parser{BatchSize: defaultBatchSize}
}

// ParseFile streams scratchPath, applies columnMapping (source header
// -> canonical field name, per ColumnMapping keys), and invokes
// onBatch with up to BatchSize parsed records at a time. Columns not
// present in columnMapping are preserved into each Part's Attributes.
func (p *Parser) ParseFile(scratchPath string, columnMapping map[string]string, integrationID entity.IntegrationID, integrationName string, onBatch func([]*entity.Part) error) (*FileResult, error) {
	f, err := os.Open(scratchPath)
	if err != nil {
		return nil, fmt.Errorf("open scratch file: %w", err)
	}
	defer f.Close()

	reader, fallback, err := decodeWithFallback(f)
	if err != nil {
		return nil, fmt.Errorf("detect encoding: %w", err)
	}

	buffered := bufio.NewReader(reader)
	delim, err := sniffDelimiter(buffered)
	if err != nil {
		return nil, fmt.Errorf("sniff delimiter: %w", err)
	}

	csvReader := csv.NewReader(buffered)
	csvReader.Comma = delim
	csvReader.FieldsPerRecord = -1
	csvReader.LazyQuotes = true

	header, err := csvReader.Read()
	if err == io.EOF {
		return &FileResult{EncodingFallback: fallback}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	header = trimBOM(header)
	for i, h := range header {
		header[i] = strings.TrimSpace(h)
	}

	mapping := newColumnMapper(header, columnMapping)

	result := &FileResult{EncodingFallback: fallback}
	batchSize := p.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	// last-row-wins within a batch: later duplicate keys replace earlier
	// ones in the same slice rather than being appended twice.
	batch := make([]*entity.Part, 0, batchSize)
	indexInBatch := make(map[entity.PartKey]int, batchSize)

	rowNum := 1
	for {
		row, err := csvReader.Read()
		if err == io.EOF {
			break
		}
		rowNum++
		if err != nil {
			result.addError(rowNum, err.Error())
			continue
		}
		if isBlankRow(row) {
			continue
		}
		result.RecordsTotal++

		part, validationErr := mapping.toPart(row, integrationID, integrationName)
		if validationErr != "" {
			result.addError(rowNum, validationErr)
			continue
		}
		result.RecordsValid++

		key := part.Key()
		if idx, exists := indexInBatch[key]; exists {
			batch[idx] = part
		} else {
			indexInBatch[key] = len(batch)
			batch = append(batch, part)
		}

		if len(batch) >= batchSize {
			if err := onBatch(batch); err != nil {
				return result, err
			}
			batch = make([]*entity.Part, 0, batchSize)
			indexInBatch = make(map[entity.PartKey]int, batchSize)
		}
	}

	if len(batch) > 0 {
		if err := onBatch(batch); err != nil {
			return result, err
		}
	}

	return result, nil
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func trimBOM(header []string) []string {
	if len(header) == 0 {
		return header
	}
	header[0] = strings.TrimPrefix(header[0], "﻿")
	return header
}

// sniffDelimiter samples the first line of r (without consuming
// anything past it, since r is a *bufio.Reader) and counts candidate
// delimiter occurrences, picking the most frequent.
func sniffDelimiter(r *bufio.Reader) (rune, error) {
	peek, err := r.Peek(4096)
	if err != nil && err != io.EOF && len(peek) == 0 {
		return ',', err
	}

	firstLine := peek
	if idx := strings.IndexByte(string(peek), '\n'); idx >= 0 {
		firstLine = peek[:idx]
	}

	best := ','
	bestCount := -1
	for _, d := range delimiterCandidates {
		count := strings.Count(string(firstLine), string(d))
		if count > bestCount {
			bestCount = count
			best = d
		}
	}
	return best, nil
}

// parsePrice accepts an empty string (unset) or a non-negative decimal.
func parsePrice(raw string) (*entity.Price, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, true
	}
	raw = strings.TrimPrefix(raw, "$")
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil || value < 0 {
		return nil, false
	}
	return &entity.Price{MinorUnits: int64(value*100 + 0.5), Currency: "USD"}, true
}

// parseQuantity accepts an empty string (defaults to 0) or a
// non-negative integer.
func parseQuantity(raw string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, true
	}
	qty, err := strconv.Atoi(raw)
	if err != nil || qty < 0 {
		return 0, false
	}
	return qty, true
}

func parseOptionalInt(raw string) *int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil
	}
	return &v
}

func parseOptionalFloat(raw string) *float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}
	return &v
}
