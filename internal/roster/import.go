package roster

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/sells-group/kolscout/internal/model"
	"github.com/sells-group/kolscout/internal/store"
)

// RowError records a row that could not be imported. Row numbers are
// 1-based spreadsheet rows including the header.
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// ImportReport summarizes one import run.
type ImportReport struct {
	Rows     int        `json:"rows"`
	Imported int        `json:"imported"`
	Skipped  int        `json:"skipped"`
	Errors   []RowError `json:"errors,omitempty"`
}

// hcpColumns are the required HCP roster columns.
var hcpColumns = []string{"npi", "first_name", "last_name"}

// ImportHcps loads an HCP roster spreadsheet into the registry. Expected
// columns: npi, first_name, last_name, and optionally specialty, city, state.
// Rows whose NPI is already registered are counted as skipped; invalid rows
// are reported without aborting the run.
func ImportHcps(ctx context.Context, st store.HcpRepository, path string) (*ImportReport, error) {
	sh, err := readSheet(path)
	if err != nil {
		return nil, err
	}
	if err := sh.requireColumns(hcpColumns...); err != nil {
		return nil, err
	}

	report := &ImportReport{Rows: len(sh.rows)}
	for i, row := range sh.rows {
		rowNum := i + 2

		h := &model.HCP{
			NPI:       sh.cell(row, "npi"),
			FirstName: sh.cell(row, "first_name"),
			LastName:  sh.cell(row, "last_name"),
			Specialty: sh.cell(row, "specialty"),
			City:      sh.cell(row, "city"),
			State:     sh.cell(row, "state"),
		}

		err := st.CreateHcp(ctx, h)
		switch {
		case err == nil:
			report.Imported++
		case model.IsConflict(err):
			report.Skipped++
		case model.IsValidation(err):
			report.Errors = append(report.Errors, RowError{Row: rowNum, Message: err.Error()})
		default:
			return nil, err
		}
	}

	zap.L().Info("hcp roster imported",
		zap.String("path", path),
		zap.Int("rows", report.Rows),
		zap.Int("imported", report.Imported),
		zap.Int("skipped", report.Skipped),
		zap.Int("errors", len(report.Errors)),
	)
	return report, nil
}

// segmentColumns maps spreadsheet columns to SegmentScores fields.
var segmentColumns = []struct {
	name string
	set  func(*model.SegmentScores, float64)
}{
	{"publications", func(s *model.SegmentScores, v float64) { s.Publications = v }},
	{"clinical_trials", func(s *model.SegmentScores, v float64) { s.ClinicalTrials = v }},
	{"congress", func(s *model.SegmentScores, v float64) { s.Congress = v }},
	{"guidelines", func(s *model.SegmentScores, v float64) { s.Guidelines = v }},
	{"claims", func(s *model.SegmentScores, v float64) { s.Claims = v }},
	{"digital_presence", func(s *model.SegmentScores, v float64) { s.DigitalPresence = v }},
	{"grants", func(s *model.SegmentScores, v float64) { s.Grants = v }},
	{"societies", func(s *model.SegmentScores, v float64) { s.Societies = v }},
}

// ImportSegments loads vendor segment scores into the store. Expected
// columns: npi, disease_area_id, plus one column per segment. Missing segment
// columns read as zero; each value must parse as a number in [0, 100]. Rows
// whose NPI is not registered are reported and skipped.
func ImportSegments(ctx context.Context, st store.Store, path string) (*ImportReport, error) {
	sh, err := readSheet(path)
	if err != nil {
		return nil, err
	}
	if err := sh.requireColumns("npi", "disease_area_id"); err != nil {
		return nil, err
	}

	report := &ImportReport{Rows: len(sh.rows)}
	for i, row := range sh.rows {
		rowNum := i + 2

		hcp, err := st.GetHcpByNPI(ctx, sh.cell(row, "npi"))
		if model.IsNotFound(err) {
			report.Errors = append(report.Errors, RowError{
				Row: rowNum, Message: "npi not registered: " + sh.cell(row, "npi"),
			})
			continue
		}
		if err != nil {
			return nil, err
		}

		var seg model.SegmentScores
		rowOK := true
		for _, col := range segmentColumns {
			raw := sh.cell(row, col.name)
			if raw == "" {
				continue
			}
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil || v < 0 || v > 100 {
				report.Errors = append(report.Errors, RowError{
					Row: rowNum, Message: fmt.Sprintf("%s: invalid score %q", col.name, raw),
				})
				rowOK = false
				break
			}
			col.set(&seg, v)
		}
		if !rowOK {
			continue
		}

		if err := st.UpsertSegmentScores(ctx, hcp.ID, sh.cell(row, "disease_area_id"), seg); err != nil {
			return nil, err
		}
		report.Imported++
	}

	zap.L().Info("segment scores imported",
		zap.String("path", path),
		zap.Int("rows", report.Rows),
		zap.Int("imported", report.Imported),
		zap.Int("errors", len(report.Errors)),
	)
	return report, nil
}
