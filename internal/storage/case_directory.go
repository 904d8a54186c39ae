package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/adv-tools/audsync/internal/remote"
)

// CaseDirectory is a read-only lookup against the case collaborator's data,
// used only to compose remote event text. The case records themselves are
// owned and managed elsewhere.
type CaseDirectory struct {
	db *sql.DB
}

// NewCaseDirectory creates a directory backed by db.
func NewCaseDirectory(db *DB) *CaseDirectory {
	return &CaseDirectory{db: db.sql}
}

// Lookup returns the case number and title for the given case id.
func (d *CaseDirectory) Lookup(ctx context.Context, caseID string) (remote.CaseInfo, error) {
	row := d.db.QueryRowContext(ctx, `SELECT number, title FROM cases WHERE id = ?`, caseID)

	var info remote.CaseInfo
	err := row.Scan(&info.Number, &info.Title)
	if errors.Is(err, sql.ErrNoRows) {
		return remote.CaseInfo{}, fmt.Errorf("case %s not found", caseID)
	}
	if err != nil {
		return remote.CaseInfo{}, fmt.Errorf("failed to look up case %s: %w", caseID, err)
	}
	return info, nil
}

// Put registers or replaces a case entry. It exists so the surrounding
// application (and tests) can seed the directory.
func (d *CaseDirectory) Put(ctx context.Context, caseID, number, title string) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO cases (id, number, title) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET number = excluded.number, title = excluded.title`,
		caseID, number, title)
	if err != nil {
		return fmt.Errorf("failed to store case %s: %w", caseID, err)
	}
	return nil
}
