package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/grkhmz23/solaudit-agent/internal/ir"
)

// ErrNotFound is returned when a scan ID does not exist.
var ErrNotFound = errors.New("scan not found")

// ListScans returns recorded scans, most recent first, capped at limit
// (0 means no cap).
func (s *Store) ListScans(ctx context.Context, limit int) ([]Scan, error) {
	query := `
		SELECT id, program, program_hash, fixture_path, created_at, finding_count, defect_count
		FROM scans
		ORDER BY created_at DESC, id DESC
	`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list scans: %w", err)
	}
	defer rows.Close()

	var scans []Scan
	for rows.Next() {
		scan, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		scans = append(scans, scan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list scans: %w", err)
	}
	return scans, nil
}

// ReadScan returns one recorded scan by ID.
func (s *Store) ReadScan(ctx context.Context, id string) (Scan, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, program, program_hash, fixture_path, created_at, finding_count, defect_count
		FROM scans
		WHERE id = ?
	`, id)

	scan, err := scanRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Scan{}, fmt.Errorf("read scan %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Scan{}, err
	}
	return scan, nil
}

// ReadFindings returns the findings recorded for a scan, in the
// deterministic report order they were produced in.
func (s *Store) ReadFindings(ctx context.Context, scanID string) ([]ir.Finding, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT instruction, location, rule, severity, message
		FROM findings
		WHERE scan_id = ?
		ORDER BY
			CASE severity
				WHEN 'critical' THEN 0
				WHEN 'high' THEN 1
				WHEN 'medium' THEN 2
				ELSE 3
			END,
			instruction, rule, location
	`, scanID)
	if err != nil {
		return nil, fmt.Errorf("read findings for scan %s: %w", scanID, err)
	}
	defer rows.Close()

	var findings []ir.Finding
	for rows.Next() {
		var f ir.Finding
		var rule, severity string
		if err := rows.Scan(&f.Instruction, &f.Location, &rule, &severity, &f.Message); err != nil {
			return nil, fmt.Errorf("read findings for scan %s: %w", scanID, err)
		}
		f.Rule = ir.RuleID(rule)
		f.Severity = ir.Severity(severity)
		findings = append(findings, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read findings for scan %s: %w", scanID, err)
	}
	return findings, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRow(row rowScanner) (Scan, error) {
	var scan Scan
	var createdAt string
	err := row.Scan(
		&scan.ID,
		&scan.Program,
		&scan.ProgramHash,
		&scan.FixturePath,
		&createdAt,
		&scan.FindingCount,
		&scan.DefectCount,
	)
	if err != nil {
		return Scan{}, err
	}

	scan.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return Scan{}, fmt.Errorf("parse created_at %q: %w", createdAt, err)
	}
	return scan, nil
}
