package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-pdf/fpdf"

	"claimverifier/internal/claims/models"
)

// PDFRenderer writes reports/Claim_Report_<name>.pdf. A later claim by the same name
// overwrites the earlier report.
type PDFRenderer struct {
	dir string
}

func NewPDFRenderer(dir string) *PDFRenderer {
	return &PDFRenderer{dir: dir}
}

func (r *PDFRenderer) Name() string { return "pdf" }

// Path returns the report file for a policyholder name.
func (r *PDFRenderer) Path(name string) string {
	safe := strings.Map(func(c rune) rune {
		switch c {
		case ' ', '/', '\\':
			return '_'
		}
		return c
	}, name)
	safe = strings.ReplaceAll(safe, "..", "_")
	return filepath.Join(r.dir, "Claim_Report_"+safe+".pdf")
}

func (r *PDFRenderer) Write(_ context.Context, rec models.ClaimRecord) error {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}

	pdf := fpdf.New("P", "pt", "Letter", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "", 12)

	y := 42.0
	line := func(x float64, text string) {
		pdf.Text(x, y, tr(text))
		y += 20
	}

	line(50, "Insurance Claim Verification Report")
	y += 10

	line(50, "User Details:")
	for _, kv := range [][2]string{
		{"name", rec.Policy.Name},
		{"email", rec.Policy.Email},
		{"policy_number", rec.Policy.PolicyNumber},
		{"policy_type", rec.Policy.PolicyType},
		{"policy_expiry", rec.Policy.Expiry.Format(dateLayout)},
		{"coverage_amount", rec.Policy.CoverageAmount.StringFixed(2)},
	} {
		line(70, kv[0]+": "+kv[1])
	}
	y += 10

	line(50, "Claim Details:")
	for _, kv := range [][2]string{
		{"claim_date", rec.Claim.Date.Format(dateLayout)},
		{"claim_amount", rec.Claim.Amount.StringFixed(2)},
		{"claim_reason", rec.Claim.Reason},
	} {
		line(70, kv[0]+": "+kv[1])
	}
	y += 10

	line(50, "Verification Result: "+rec.Result.Decision.String())
	line(70, rec.Result.Message)

	if err := pdf.OutputFileAndClose(r.Path(rec.Policy.Name)); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return nil
}
