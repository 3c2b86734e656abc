package service

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/festy23/contribution_engine/internal/ranking/model"
)

const (
	boardSheet = "Leaderboard"
	runSheet   = "Run"
)

// WriteXLSX writes a leaderboard run as a workbook with a ranked sheet and a
// run description sheet.
func WriteXLSX(w io.Writer, lb *model.Leaderboard) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", boardSheet); err != nil {
		return err
	}
	if err := f.SetSheetRow(boardSheet, "A1", &[]interface{}{"Rank", "User", "Points"}); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(boardSheet, "A1", "C1", bold); err != nil {
		return err
	}
	for i, e := range lb.Entries {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(boardSheet, cell, &[]interface{}{e.Rank, e.UserID, e.Points}); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	if err := f.SetColWidth(boardSheet, "B", "B", 32); err != nil {
		return err
	}

	if _, err := f.NewSheet(runSheet); err != nil {
		return err
	}
	meta := [][]interface{}{
		{"Run ID", lb.RunID},
		{"Leaderboard", string(lb.Type)},
		{"Period", lb.Period},
		{"Snapshot At", lb.SnapshotAt.UTC().Format(time.RFC3339)},
		{"Users", lb.Total},
	}
	for i, row := range meta {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(runSheet, cell, &row); err != nil {
			return err
		}
	}

	return f.Write(w)
}
