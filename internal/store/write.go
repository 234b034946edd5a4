package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/grkhmz23/solaudit-agent/internal/ir"
)

// Scan is one recorded analysis run.
type Scan struct {
	ID           string    `json:"id"`
	Program      string    `json:"program"`
	ProgramHash  string    `json:"program_hash"`
	FixturePath  string    `json:"fixture_path"`
	CreatedAt    time.Time `json:"created_at"`
	FindingCount int       `json:"finding_count"`
	DefectCount  int       `json:"defect_count"`
}

// RecordScan persists one scan run and its findings in a single
// transaction. The scan ID is a fresh UUID; finding rows are keyed by
// content-addressed IDs, so re-recording the same findings under the
// same scan is idempotent.
func (s *Store) RecordScan(ctx context.Context, p *ir.Program, fixturePath string, findings []ir.Finding, defectCount int) (Scan, error) {
	programHash, err := ir.ProgramHash(p)
	if err != nil {
		return Scan{}, fmt.Errorf("record scan: %w", err)
	}

	scan := Scan{
		ID:           uuid.NewString(),
		Program:      p.Name,
		ProgramHash:  programHash,
		FixturePath:  fixturePath,
		CreatedAt:    time.Now().UTC(),
		FindingCount: len(findings),
		DefectCount:  defectCount,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Scan{}, fmt.Errorf("record scan: begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO scans
		(id, program, program_hash, fixture_path, created_at, finding_count, defect_count)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		scan.ID,
		scan.Program,
		scan.ProgramHash,
		scan.FixturePath,
		scan.CreatedAt.Format(time.RFC3339),
		scan.FindingCount,
		scan.DefectCount,
	)
	if err != nil {
		return Scan{}, fmt.Errorf("record scan %s: %w", scan.ID, err)
	}

	for _, f := range findings {
		if err := writeFinding(ctx, tx, scan.ID, f); err != nil {
			return Scan{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return Scan{}, fmt.Errorf("record scan %s: commit: %w", scan.ID, err)
	}
	return scan, nil
}

// writeFinding inserts one finding row. ON CONFLICT DO NOTHING keeps
// duplicate submissions idempotent.
func writeFinding(ctx context.Context, tx execer, scanID string, f ir.Finding) error {
	id, err := ir.FindingID(f)
	if err != nil {
		return fmt.Errorf("write finding: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO findings
		(id, scan_id, instruction, location, rule, severity, message)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		id,
		scanID,
		f.Instruction,
		f.Location,
		string(f.Rule),
		string(f.Severity),
		f.Message,
	)
	if err != nil {
		return fmt.Errorf("write finding %s: %w", id, err)
	}
	return nil
}

// execer is satisfied by *sql.Tx and *sql.DB.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}
