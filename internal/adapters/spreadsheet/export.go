// Package spreadsheet writes the plan set as CSV or XLSX downloads.
package spreadsheet

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	"vitality/internal/domain/member"
)

// Download names.
const (
	CSVFilename  = "member-programs.csv"
	XLSXFilename = "member-programs.xlsx"
)

// Sheet names in the XLSX workbook.
const (
	SheetMembers = "Members"
	SheetPlans   = "Plans"
)

// MemberHeaders are the columns of the member export, in order.
var MemberHeaders = []string{
	"MemberID", "BMI", "BodyFat%", "VO2max", "EnduranceScore",
	"FlexibilityScore", "WeeklyWorkouts", "Cluster", "ProgramType", "Details",
}

// PlanHeaders are the columns of the XLSX plan summary sheet.
var PlanHeaders = []string{
	"MemberID", "ProgramType", "WorkoutDays", "Sessions", "TotalCalories",
	"ProteinG", "CarbsG", "FatG", "HydrationML", "Meals",
}

// memberRow returns typed cells; missing values are nil.
func memberRow(m member.WithPlans) []any {
	var cluster any
	if m.PredictedCluster != nil {
		cluster = *m.PredictedCluster
	}
	return []any{
		m.MemberID.String(),
		deref(m.BMI),
		deref(m.BodyFatPercent),
		deref(m.VO2max),
		deref(m.EnduranceScore),
		deref(m.FlexibilityScore),
		deref(m.WeeklyWorkouts),
		cluster,
		m.ProgramType,
		m.Details,
	}
}

func planRow(m member.WithPlans) []any {
	row := []any{m.MemberID.String(), m.ProgramType, nil, nil, nil, nil, nil, nil, nil, nil}
	if bio := m.BiometricsPlan; bio != nil {
		sessions := 0
		for _, d := range bio.WeeklyWorkoutPlan {
			sessions += len(d.Sessions)
		}
		row[2], row[3] = len(bio.WeeklyWorkoutPlan), sessions
	}
	if nut := m.NutritionPlan; nut != nil {
		row[9] = len(nut.DailyMealSchedule)
		if s := nut.Summary; s != nil {
			row[4] = deref(s.TotalCalories)
			row[8] = deref(s.HydrationML)
			if t := s.MacroTargetsG; t != nil {
				row[5], row[6], row[7] = t.Protein, t.Carbs, t.Fat
			}
		}
	}
	return row
}

func deref(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func cellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	default:
		return fmt.Sprint(x)
	}
}

// WriteCSV writes one row per member under MemberHeaders.
func WriteCSV(w io.Writer, members []member.WithPlans) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(MemberHeaders); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, m := range members {
		cells := memberRow(m)
		rec := make([]string, len(cells))
		for i, c := range cells {
			rec[i] = cellString(c)
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write csv row %s: %w", m.MemberID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes a workbook with a Members sheet and a Plans summary sheet.
// Numeric cells stay numeric; missing values are left blank.
func WriteXLSX(w io.Writer, members []member.WithPlans) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetMembers); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(SheetPlans); err != nil {
		return fmt.Errorf("add plans sheet: %w", err)
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"1F6FEB"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}

	if err := writeSheet(f, SheetMembers, MemberHeaders, members, memberRow, headerStyle); err != nil {
		return err
	}
	if err := writeSheet(f, SheetPlans, PlanHeaders, members, planRow, headerStyle); err != nil {
		return err
	}
	if err := f.SetColWidth(SheetMembers, "J", "J", 60); err != nil {
		return fmt.Errorf("column width: %w", err)
	}
	f.SetActiveSheet(0)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, headers []string, members []member.WithPlans, row func(member.WithPlans) []any, headerStyle int) error {
	if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
		return fmt.Errorf("%s header: %w", sheet, err)
	}
	if err := f.SetRowStyle(sheet, 1, 1, headerStyle); err != nil {
		return fmt.Errorf("%s header style: %w", sheet, err)
	}
	for i, m := range members {
		cells := row(m)
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
			return fmt.Errorf("%s row %s: %w", sheet, m.MemberID, err)
		}
	}
	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("%s freeze header: %w", sheet, err)
	}
	last, err := excelize.CoordinatesToCellName(len(headers), len(members)+1)
	if err != nil {
		return err
	}
	if err := f.AutoFilter(sheet, "A1:"+last, nil); err != nil {
		return fmt.Errorf("%s filter: %w", sheet, err)
	}
	return nil
}
