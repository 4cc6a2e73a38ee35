// Package export writes prospects to spreadsheet files for offline review.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"ProspectScanner/internal/domain"
)

// SheetName is the worksheet holding the prospect rows.
const SheetName = "Prospects"

var headers = []string{
	"id", "url", "organization_name", "emails", "phones", "addresses",
	"sustainability_score", "donation_probability", "engagement_score", "final_score", "created_at",
}

// WriteProspects renders prospects as one header row plus one row per prospect, in the given order.
func WriteProspects(w io.Writer, prospects []domain.Prospect) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	if err := setRow(f, 1, toAny(headers)); err != nil {
		return err
	}
	for i, p := range prospects {
		row := []any{
			p.ID,
			p.URL,
			p.OrganizationName,
			strings.Join(p.Emails, "; "),
			strings.Join(p.Phones, "; "),
			strings.Join(p.Addresses, "; "),
			p.Scores.Sustainability,
			p.Scores.DonationProbability,
			p.Scores.Engagement,
			p.Scores.Final,
			p.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
		}
		if err := setRow(f, i+2, row); err != nil {
			return err
		}
	}

	if err := f.SetPanes(SheetName, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("cell name: %w", err)
	}
	if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
		return fmt.Errorf("set row %d: %w", row, err)
	}
	return nil
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
