package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/Veraticus/click-thru/internal/model"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Default table names inside a SQLite database.
const (
	DefaultEmailsTable  = "email_table"
	DefaultOpenedTable  = "email_opened_table"
	DefaultClickedTable = "link_clicked_table"
)

const memoryDB = ":memory:"

// SQLiteSource reads the three tables from an existing SQLite database.
// It never writes to the database.
type SQLiteSource struct {
	db           *sql.DB
	dbPath       string
	EmailsTable  string
	OpenedTable  string
	ClickedTable string
}

// NewSQLiteSource opens the database at dbPath. The file must already exist.
func NewSQLiteSource(dbPath string) (*SQLiteSource, error) {
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	if dbPath != memoryDB {
		if _, err := os.Stat(dbPath); err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection keeps ":memory:" databases coherent.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteSource{
		db:           db,
		dbPath:       dbPath,
		EmailsTable:  DefaultEmailsTable,
		OpenedTable:  DefaultOpenedTable,
		ClickedTable: DefaultClickedTable,
	}, nil
}

// Close closes the database connection.
func (s *SQLiteSource) Close() error {
	return s.db.Close()
}

// LoadTables reads the email, opened and clicked tables.
func (s *SQLiteSource) LoadTables(ctx context.Context) (*model.Dataset, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	emails, err := s.ReadTable(ctx, s.EmailsTable)
	if err != nil {
		return nil, err
	}
	opened, err := s.ReadTable(ctx, s.OpenedTable)
	if err != nil {
		return nil, err
	}
	clicked, err := s.ReadTable(ctx, s.ClickedTable)
	if err != nil {
		return nil, err
	}

	return &model.Dataset{
		Emails:  emails,
		Opened:  opened,
		Clicked: clicked,
	}, nil
}

// ReadTable reads every row of the named table as text. NULL reads as "".
func (s *SQLiteSource) ReadTable(ctx context.Context, name string) (*model.Table, error) {
	if err := validateTableName(name); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT * FROM "%s"`, name))
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", name, err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", name, err)
	}
	if err := validateHeader(columns); err != nil {
		return nil, fmt.Errorf("table %s: %w", name, err)
	}

	table := &model.Table{
		Name:    name,
		Columns: columns,
	}

	cells := make([]sql.NullString, len(columns))
	dest := make([]any, len(columns))
	for i := range cells {
		dest[i] = &cells[i]
	}

	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan %s row %d: %w", name, len(table.Rows)+1, err)
		}

		record := make([]string, len(columns))
		for i, c := range cells {
			if c.Valid {
				record[i] = c.String
			}
		}
		table.Rows = append(table.Rows, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s: %w", name, err)
	}

	return table, nil
}
