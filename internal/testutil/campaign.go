// Package testutil builds campaign fixtures on disk so tests can exercise the
// real CSV and SQLite sources.
package testutil

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Email is one row of the email table.
type Email struct {
	ID            string
	Text          string
	Version       string
	Weekday       string
	Country       string
	Hour          int
	PastPurchases int
}

// Campaign is a complete set of source tables.
type Campaign struct {
	Emails  []Email
	Opened  []string
	Clicked []string
}

// ThreeEmails returns a small campaign where only email 1 is opened and clicked.
func ThreeEmails() Campaign {
	return Campaign{
		Emails: []Email{
			{ID: "1", Text: "short_email", Version: "personalized", Hour: 2, Weekday: "Sunday", Country: "US", PastPurchases: 5},
			{ID: "2", Text: "long_email", Version: "generic", Hour: 12, Weekday: "Sunday", Country: "UK", PastPurchases: 2},
			{ID: "3", Text: "long_email", Version: "personalized", Hour: 11, Weekday: "Wednesday", Country: "FR", PastPurchases: 0},
		},
		Opened:  []string{"1"},
		Clicked: []string{"1"},
	}
}

const emailHeader = "email_id,email_text,email_version,hour,weekday,user_country,user_past_purchases"

// WriteCSV writes the three tables under a fresh temporary directory and
// returns it.
func (c Campaign) WriteCSV(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()

	lines := []string{emailHeader}
	for _, e := range c.Emails {
		lines = append(lines, fmt.Sprintf("%s,%s,%s,%d,%s,%s,%d",
			e.ID, e.Text, e.Version, e.Hour, e.Weekday, e.Country, e.PastPurchases))
	}

	files := map[string][]string{
		"email_table.csv":        lines,
		"email_opened_table.csv": append([]string{"email_id"}, c.Opened...),
		"link_clicked_table.csv": append([]string{"email_id"}, c.Clicked...),
	}
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(strings.Join(content, "\n")+"\n"), 0o600); err != nil {
			t.Fatalf("failed to write %s: %v", path, err)
		}
	}

	return dir
}

// WriteSQLite stores the tables in a fresh SQLite file and returns its path.
func (c Campaign) WriteSQLite(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "campaign.db")
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			t.Logf("Failed to close test database: %v", closeErr)
		}
	}()

	schema := []string{
		`CREATE TABLE email_table (
			email_id INTEGER,
			email_text TEXT,
			email_version TEXT,
			hour INTEGER,
			weekday TEXT,
			user_country TEXT,
			user_past_purchases INTEGER
		)`,
		`CREATE TABLE email_opened_table (email_id INTEGER)`,
		`CREATE TABLE link_clicked_table (email_id INTEGER)`,
	}
	for _, q := range schema {
		if _, err := db.Exec(q); err != nil {
			t.Fatalf("failed to create schema: %v", err)
		}
	}

	for _, e := range c.Emails {
		if _, err := db.Exec(`INSERT INTO email_table VALUES (?, ?, ?, ?, ?, ?, ?)`,
			e.ID, e.Text, e.Version, e.Hour, e.Weekday, e.Country, e.PastPurchases); err != nil {
			t.Fatalf("failed to seed email %s: %v", e.ID, err)
		}
	}
	seedIDs(t, db, "email_opened_table", c.Opened)
	seedIDs(t, db, "link_clicked_table", c.Clicked)

	return path
}

func seedIDs(t *testing.T, db *sql.DB, table string, ids []string) {
	t.Helper()
	for _, id := range ids {
		if _, err := db.Exec(fmt.Sprintf(`INSERT INTO %s (email_id) VALUES (?)`, table), id); err != nil {
			t.Fatalf("failed to seed %s: %v", table, err)
		}
	}
}
