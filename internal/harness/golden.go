package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/grkhmz23/solaudit-agent/internal/ir"
)

// ReportSnapshot captures the complete report for one scenario run.
// Serialized with canonical JSON so golden comparison is byte-stable.
type ReportSnapshot struct {
	Program  string
	Findings []ir.Finding
	Defects  []*graphDefect
}

type graphDefect struct {
	Code        string
	Instruction string
	Message     string
}

// toCanonicalMap converts a ReportSnapshot to a map[string]any for
// canonical JSON serialization. ir.MarshalCanonical only handles maps,
// slices, and primitives.
func (s *ReportSnapshot) toCanonicalMap() map[string]any {
	findingList := make([]any, len(s.Findings))
	for i, f := range s.Findings {
		findingList[i] = map[string]any{
			"instruction": f.Instruction,
			"location":    f.Location,
			"rule":        string(f.Rule),
			"severity":    string(f.Severity),
			"message":     f.Message,
		}
	}

	result := map[string]any{
		"program":  s.Program,
		"findings": findingList,
	}

	if len(s.Defects) > 0 {
		defectList := make([]any, len(s.Defects))
		for i, d := range s.Defects {
			defectList[i] = map[string]any{
				"code":        d.Code,
				"instruction": d.Instruction,
				"message":     d.Message,
			}
		}
		result["defects"] = defectList
	}
	return result
}

// RunWithGolden executes a scenario and compares the report against a
// golden file stored in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails. Test failure (via goldie)
// occurs if the report doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}

	snapshot := ReportSnapshot{
		Program:  result.Program,
		Findings: result.Findings,
	}
	for _, d := range result.Defects {
		snapshot.Defects = append(snapshot.Defects, &graphDefect{
			Code:        string(d.Code),
			Instruction: d.Instruction,
			Message:     d.Message,
		})
	}

	reportJSON, err := ir.MarshalCanonical(snapshot.toCanonicalMap())
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, reportJSON)

	return nil
}
