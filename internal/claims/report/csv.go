// Package report renders committed claims to the CSV ledger file and per-claimant PDF
// reports.
package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"claimverifier/internal/claims/models"
)

const dateLayout = "2006-01-02"

// CSVWriter appends one row per claim: name, email, policy_number, claim_amount, claim_date,
// result. The file has no header row.
type CSVWriter struct {
	mu   sync.Mutex
	path string
}

func NewCSVWriter(path string) *CSVWriter {
	return &CSVWriter{path: path}
}

func (w *CSVWriter) Name() string { return "csv" }

func (w *CSVWriter) Write(_ context.Context, rec models.ClaimRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if dir := filepath.Dir(w.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create csv directory: %w", err)
		}
	}
	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open csv: %w", err)
	}

	cw := csv.NewWriter(f)
	writeErr := cw.Write([]string{
		rec.Policy.Name,
		rec.Policy.Email,
		rec.Policy.PolicyNumber,
		rec.Claim.Amount.StringFixed(2),
		rec.Claim.Date.Format(dateLayout),
		rec.Result.Decision.String(),
	})
	cw.Flush()
	if writeErr == nil {
		writeErr = cw.Error()
	}
	if err := f.Close(); err != nil && writeErr == nil {
		writeErr = err
	}
	if writeErr != nil {
		return fmt.Errorf("write csv row: %w", writeErr)
	}
	return nil
}
