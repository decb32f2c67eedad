package pipeline

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/transform"

	"studentoutcome/ml"
)

// CSVOptions 数据集读取配置
type CSVOptions struct {
	// SkipLines is the number of records before the header row.
	SkipLines int
	Delimiter rune
	// Encoding names the file's character set; empty means UTF-8.
	Encoding string
}

// Table 原始数据表
type Table struct {
	Columns []string
	Rows    [][]string
	Source  string
}

// LoadCSV 读取数据集文件
func LoadCSV(path string, opts CSVOptions) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer file.Close()

	return ReadCSV(file, path, opts)
}

// ReadCSV parses a CSV stream with a header row.
func ReadCSV(r io.Reader, source string, opts CSVOptions) (*Table, error) {
	enc, err := lookupEncoding(opts.Encoding)
	if err != nil {
		return nil, err
	}
	if enc != nil {
		r = transform.NewReader(r, enc.NewDecoder())
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}

	for i := 0; i < opts.SkipLines; i++ {
		if _, err := reader.Read(); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("dataset %s ends before header (skip_lines=%d)", source, opts.SkipLines)
			}
			return nil, fmt.Errorf("read preamble: %w", err)
		}
	}

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("dataset %s has no header", source)
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	columns := make([]string, len(header))
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		columns[i] = strings.TrimSpace(name)
	}

	table := &Table{Columns: columns, Source: source}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read record %d: %w", len(table.Rows)+1, err)
		}
		if isBlank(record) {
			continue
		}
		table.Rows = append(table.Rows, append([]string(nil), record...))
	}
	return table, nil
}

func isBlank(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// lookupEncoding returns nil for UTF-8.
func lookupEncoding(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return nil, nil
	case "latin1", "latin-1", "iso-8859-1":
		return charmap.ISO8859_1, nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252, nil
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil || enc == nil {
		return nil, fmt.Errorf("unsupported dataset encoding %q", name)
	}
	return enc, nil
}

// Frame hands the table to the trainer.
func (t *Table) Frame() ml.Frame {
	return ml.Frame{Columns: t.Columns, Rows: t.Rows, Source: t.Source}
}

// validUTF8 reports whether every cell decoded cleanly.
func (t *Table) validUTF8() bool {
	for _, row := range t.Rows {
		for _, cell := range row {
			if !utf8.ValidString(cell) {
				return false
			}
		}
	}
	return true
}
