package storage

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/Veraticus/click-thru/internal/model"
)

// Default file names inside the data directory.
const (
	DefaultDataDir     = "data"
	DefaultEmailsFile  = "email_table.csv"
	DefaultOpenedFile  = "email_opened_table.csv"
	DefaultClickedFile = "link_clicked_table.csv"
)

const utf8BOM = "\ufeff"

// CSVSource reads the three tables from comma-separated files with a header row.
type CSVSource struct {
	Dir         string
	EmailsFile  string
	OpenedFile  string
	ClickedFile string
}

// NewCSVSource creates a source reading the default file names from dir.
func NewCSVSource(dir string) *CSVSource {
	return &CSVSource{
		Dir:         dir,
		EmailsFile:  DefaultEmailsFile,
		OpenedFile:  DefaultOpenedFile,
		ClickedFile: DefaultClickedFile,
	}
}

// LoadTables reads the email, opened and clicked tables.
func (s *CSVSource) LoadTables(ctx context.Context) (*model.Dataset, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	files := []struct {
		dst  **model.Table
		name string
	}{
		{name: s.EmailsFile},
		{name: s.OpenedFile},
		{name: s.ClickedFile},
	}

	ds := &model.Dataset{}
	files[0].dst = &ds.Emails
	files[1].dst = &ds.Opened
	files[2].dst = &ds.Clicked

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		path := filepath.Join(s.Dir, f.name)
		table, err := ReadCSVFile(path)
		if err != nil {
			return nil, err
		}
		*f.dst = table

		slog.Debug("Loaded table", "path", path, "rows", table.Len(), "columns", len(table.Columns))
	}

	return ds, nil
}

// ReadCSVFile reads one table from path. The table is named after the file
// without its extension.
func ReadCSVFile(path string) (*model.Table, error) {
	if err := validateString(path, "path"); err != nil {
		return nil, err
	}

	file, err := os.Open(path) //nolint:gosec // paths come from user configuration
	if err != nil {
		return nil, fmt.Errorf("failed to open table: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			slog.Warn("Failed to close table file", "path", path, "error", closeErr)
		}
	}()

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	table, err := ReadCSV(name, file)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return table, nil
}

// ReadCSV parses a comma-separated table with a header row. Every record must
// have as many fields as the header.
func ReadCSV(name string, r io.Reader) (*model.Table, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyHeader
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse header: %w", err)
	}

	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = strings.TrimSpace(h)
	}
	columns[0] = strings.TrimPrefix(columns[0], utf8BOM)

	if err := validateHeader(columns); err != nil {
		return nil, err
	}

	table := &model.Table{
		Name:    name,
		Columns: columns,
	}

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse row %d: %w", len(table.Rows)+1, err)
		}

		for i := range record {
			record[i] = strings.TrimSpace(record[i])
		}
		table.Rows = append(table.Rows, record)
	}

	return table, nil
}
