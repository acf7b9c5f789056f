package spreadsheet

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"vitality/internal/domain/member"
)

// ImportResult holds the members read from a CSV and per-row problems.
type ImportResult struct {
	Members []member.Member
	Total   int
	Errors  []ImportRowError
	Unknown []string // header columns that map to no member field
}

// ImportRowError describes a row that was skipped.
type ImportRowError struct {
	Row     int
	Message string
}

// ImportValidationError is returned when the CSV structure is unusable.
type ImportValidationError struct {
	Message string
}

func (e *ImportValidationError) Error() string {
	return e.Message
}

// columnAliases maps normalized header names to member fields. Header
// normalization drops case, spaces, underscores and percent signs, so
// "BodyFat_Percent", "BodyFatPercent" and "BodyFat%" all land on one field.
var columnAliases = map[string]string{
	"memberid":         "MemberID",
	"id":               "MemberID",
	"bmi":              "BMI",
	"bodyfatpercent":   "BodyFat_Percent",
	"bodyfat":          "BodyFat_Percent",
	"vo2max":           "VO2max",
	"endurancescore":   "EnduranceScore",
	"flexibilityscore": "FlexibilityScore",
	"strengthscore":    "StrengthScore",
	"weeklyworkouts":   "WeeklyWorkouts",
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF")))
	return strings.NewReplacer(" ", "", "_", "", "%", "", "-", "").Replace(h)
}

// ReadMembers parses a member biometrics CSV.
// PRE: r yields a CSV with a header row
// POST: Members holds every row that parsed and validated; other rows are
// listed in Errors with their 1-based line number
// INVARIANT: an empty cell leaves the field nil, never zero
func ReadMembers(r io.Reader) (ImportResult, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return ImportResult{}, &ImportValidationError{Message: "CSV file is empty"}
	}
	if err != nil {
		return ImportResult{}, fmt.Errorf("read csv header: %w", err)
	}

	colIdx := make(map[string]int, len(header))
	var unknown []string
	for i, h := range header {
		field, ok := columnAliases[normalizeHeader(h)]
		if !ok {
			unknown = append(unknown, h)
			continue
		}
		if _, dup := colIdx[field]; !dup {
			colIdx[field] = i
		}
	}
	if _, ok := colIdx["MemberID"]; !ok {
		return ImportResult{}, &ImportValidationError{Message: "CSV missing required column: MemberID"}
	}

	getCol := func(row []string, col string) string {
		i, ok := colIdx[col]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	result := ImportResult{Unknown: unknown}
	rowNum := 1
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		rowNum++
		if err != nil {
			result.Errors = append(result.Errors, ImportRowError{Row: rowNum, Message: err.Error()})
			continue
		}
		if blankRow(row) {
			continue
		}
		result.Total++

		m := member.Member{MemberID: member.NewID(getCol(row, "MemberID"))}
		var bad string
		for field, dst := range map[string]**float64{
			"BMI":              &m.BMI,
			"BodyFat_Percent":  &m.BodyFatPercent,
			"VO2max":           &m.VO2max,
			"EnduranceScore":   &m.EnduranceScore,
			"FlexibilityScore": &m.FlexibilityScore,
			"StrengthScore":    &m.StrengthScore,
			"WeeklyWorkouts":   &m.WeeklyWorkouts,
		} {
			raw := getCol(row, field)
			if raw == "" {
				continue
			}
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				bad = fmt.Sprintf("%s is not a number: %q", field, raw)
				break
			}
			*dst = &v
		}
		if bad == "" {
			if err := m.Validate(); err != nil {
				bad = err.Error()
			}
		}
		if bad != "" {
			result.Errors = append(result.Errors, ImportRowError{Row: rowNum, Message: bad})
			continue
		}
		result.Members = append(result.Members, m)
	}

	slog.Debug("members_import",
		"total", result.Total,
		"read", len(result.Members),
		"errors", len(result.Errors),
		"unknown_columns", len(unknown),
	)
	return result, nil
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
