// Package records reads taxonomy tables and writes the enriched output.
package records

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/qidlink/internal/model"
)

// Table is a header-driven table of records
type Table struct {
	Header  []string
	Records []model.Record
}

// ReadCSV reads a CSV (or TSV, by extension) file with a header row.
// A leading UTF-8 BOM is ignored and short rows are padded with empty fields.
func ReadCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	table, err := Read(f, delimiterFor(path))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return table, nil
}

// Read parses delimited records from r
func Read(r io.Reader, comma rune) (*Table, error) {
	reader := csv.NewReader(r)
	reader.Comma = comma
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.New("empty input: missing header row")
	}

	header := make([]string, len(rows[0]))
	seen := make(map[string]struct{}, len(header))
	for i, cell := range rows[0] {
		name := cleanHeader(cell)
		if name == "" {
			return nil, fmt.Errorf("header column %d is empty", i+1)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("duplicate header column %q", name)
		}
		seen[name] = struct{}{}
		header[i] = name
	}

	records := make([]model.Record, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if len(row) > len(header) {
			return nil, fmt.Errorf("row %d has %d fields, header has %d", i+2, len(row), len(header))
		}
		fields := make(map[string]string, len(header))
		for col, name := range header {
			if col < len(row) {
				fields[name] = row[col]
			} else {
				fields[name] = ""
			}
		}
		records = append(records, model.NewRecord(len(records), fields))
	}

	return &Table{Header: header, Records: records}, nil
}

// OutputHeader returns the input header followed by any added column it lacks
func OutputHeader(input []string, added ...string) []string {
	header := append([]string(nil), input...)
	present := make(map[string]struct{}, len(input))
	for _, name := range input {
		present[name] = struct{}{}
	}
	for _, name := range added {
		if _, ok := present[name]; ok {
			continue
		}
		present[name] = struct{}{}
		header = append(header, name)
	}
	return header
}

// WriteCSV writes rows in header order
func WriteCSV(path string, header []string, rows []model.Record) error {
	return writeFile(path, func(w io.Writer) error {
		writer := csv.NewWriter(w)
		writer.Comma = delimiterFor(path)
		if err := writer.Write(header); err != nil {
			return err
		}
		line := make([]string, len(header))
		for _, row := range rows {
			for i, name := range header {
				line[i] = row.Get(name)
			}
			if err := writer.Write(line); err != nil {
				return err
			}
		}
		writer.Flush()
		return writer.Error()
	})
}

// WriteJSON writes rows as a JSON array of objects whose keys follow header order
func WriteJSON(path string, header []string, rows []model.Record) error {
	return writeFile(path, func(w io.Writer) error {
		return EncodeJSON(w, header, rows)
	})
}

// EncodeJSON encodes rows as an indented JSON array with ordered keys
func EncodeJSON(w io.Writer, header []string, rows []model.Record) error {
	var buf bytes.Buffer
	buf.WriteString("[")
	for i, row := range rows {
		if i > 0 {
			buf.WriteString(",")
		}
		buf.WriteString("\n  {")
		for j, name := range header {
			if j > 0 {
				buf.WriteString(",")
			}
			buf.WriteString("\n    ")
			if err := writeJSONString(&buf, name); err != nil {
				return err
			}
			buf.WriteString(": ")
			if err := writeJSONString(&buf, row.Get(name)); err != nil {
				return err
			}
		}
		if len(header) > 0 {
			buf.WriteString("\n  ")
		}
		buf.WriteString("}")
	}
	if len(rows) > 0 {
		buf.WriteString("\n")
	}
	buf.WriteString("]\n")

	_, err := w.Write(buf.Bytes())
	return err
}

func writeJSONString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	buf.Write(bytes.TrimRight(tmp.Bytes(), "\n"))
	return nil
}

// writeFile writes through a temporary file in the same directory and renames it into place
func writeFile(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := write(tmp); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return nil
}

func delimiterFor(path string) rune {
	if strings.EqualFold(filepath.Ext(path), ".tsv") {
		return '\t'
	}
	return ','
}

func cleanHeader(v string) string {
	v = strings.TrimPrefix(v, "\ufeff")
	return strings.TrimSpace(v)
}
