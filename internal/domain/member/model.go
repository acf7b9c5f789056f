package member

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Score bounds for the 0-100 fitness scores.
const (
	MinScore = 0
	MaxScore = 100
)

// Domain errors
var (
	ErrMissingID        = errors.New("member id is required")
	ErrScoreOutOfRange  = errors.New("scores must be between 0 and 100")
	ErrNegativeWorkouts = errors.New("weekly workouts cannot be negative")
)

// ID identifies a member. Upstream sends it either as a JSON string or a JSON
// number; the original form is kept so records round-trip unchanged.
// INVARIANT: two IDs are equal when their String forms are equal.
type ID struct {
	value   string
	numeric bool
}

// NewID builds an ID from CSV text. Text that parses as a number is numeric.
func NewID(s string) ID {
	s = strings.TrimSpace(s)
	if _, err := strconv.ParseFloat(s, 64); err == nil && s != "" {
		return ID{value: s, numeric: true}
	}
	return ID{value: s}
}

// StringID builds an ID that always serializes as a JSON string.
func StringID(s string) ID {
	return ID{value: s}
}

// String returns the textual form used for lookups and URLs.
func (id ID) String() string { return id.value }

// IsZero reports whether the ID is empty.
func (id ID) IsZero() bool { return id.value == "" }

// Numeric reports whether the ID was sent as a JSON number.
func (id ID) Numeric() bool { return id.numeric }

// MarshalJSON writes the ID in the form it was received.
func (id ID) MarshalJSON() ([]byte, error) {
	if id.numeric {
		return []byte(id.value), nil
	}
	return json.Marshal(id.value)
}

// UnmarshalJSON accepts a JSON string or number.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ID{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID{value: s}
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("member id must be a string or number: %w", err)
	}
	*id = ID{value: n.String(), numeric: true}
	return nil
}

// Member is one row of raw biometrics. Missing numbers stay nil.
type Member struct {
	MemberID         ID       `json:"MemberID"`
	BMI              *float64 `json:"BMI,omitempty"`
	BodyFatPercent   *float64 `json:"BodyFat_Percent,omitempty"`
	VO2max           *float64 `json:"VO2max,omitempty"`
	EnduranceScore   *float64 `json:"EnduranceScore,omitempty"`
	FlexibilityScore *float64 `json:"FlexibilityScore,omitempty"`
	StrengthScore    *float64 `json:"StrengthScore,omitempty"`
	WeeklyWorkouts   *float64 `json:"WeeklyWorkouts,omitempty"`
}

// Validate checks identity and ranges of the values that are present.
// PRE: Member struct is initialized
// POST: Returns error if validation fails, nil otherwise
// INVARIANT: absent values are never rejected
func (m *Member) Validate() error {
	if m.MemberID.IsZero() {
		return ErrMissingID
	}
	for _, s := range []*float64{m.EnduranceScore, m.FlexibilityScore, m.StrengthScore} {
		if s != nil && (*s < MinScore || *s > MaxScore) {
			return ErrScoreOutOfRange
		}
	}
	if m.WeeklyWorkouts != nil && *m.WeeklyWorkouts < 0 {
		return ErrNegativeWorkouts
	}
	return nil
}

// WithProgram is a member after program assignment.
type WithProgram struct {
	Member
	PredictedCluster *int   `json:"Predicted_Cluster,omitempty"`
	ProgramType      string `json:"Program_Type,omitempty"`
	Details          string `json:"Details,omitempty"`
}

// HasProgram reports whether assignment produced a program label.
func (w WithProgram) HasProgram() bool {
	return w.ProgramType != ""
}

// WithPlans is the terminal record: a member with program and optional plans.
// Assignment results use it too, with both plans nil.
// Fields the upstream sends that are not modelled here are kept in Extra and
// written back on marshal.
type WithPlans struct {
	WithProgram
	BiometricsPlan *BiometricsPlan `json:"Biometrics_Plan,omitempty"`
	NutritionPlan  *NutritionPlan  `json:"Nutrition_Plan,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

// knownKeys are the JSON keys owned by the typed fields of WithPlans.
var knownKeys = map[string]bool{
	"MemberID": true, "BMI": true, "BodyFat_Percent": true, "VO2max": true,
	"EnduranceScore": true, "FlexibilityScore": true, "StrengthScore": true,
	"WeeklyWorkouts": true, "Predicted_Cluster": true, "Program_Type": true,
	"Details": true, "Biometrics_Plan": true, "Nutrition_Plan": true,
}

type withPlansFields WithPlans

// UnmarshalJSON decodes the typed fields and keeps unknown keys in Extra.
func (w *WithPlans) UnmarshalJSON(data []byte) error {
	var fields withPlansFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for k, v := range raw {
		if knownKeys[k] {
			continue
		}
		if fields.Extra == nil {
			fields.Extra = make(map[string]json.RawMessage)
		}
		fields.Extra[k] = v
	}
	*w = WithPlans(fields)
	return nil
}

// MarshalJSON writes the typed fields followed by any preserved unknown keys.
func (w WithPlans) MarshalJSON() ([]byte, error) {
	typed, err := json.Marshal(withPlansFields(w))
	if err != nil {
		return nil, err
	}
	if len(w.Extra) == 0 {
		return typed, nil
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(typed, &merged); err != nil {
		return nil, err
	}
	for k, v := range w.Extra {
		if _, taken := merged[k]; !taken {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}

// HasPlans reports whether generation produced at least one plan.
func (w WithPlans) HasPlans() bool {
	return w.BiometricsPlan != nil || w.NutritionPlan != nil
}

// StripPlans returns copies of list without plans, as sent to plan
// generation. Unknown upstream fields are kept.
// POST: len(result) == len(list); member and program fields unchanged
func StripPlans(list []WithPlans) []WithPlans {
	out := make([]WithPlans, len(list))
	for i, p := range list {
		p.BiometricsPlan = nil
		p.NutritionPlan = nil
		out[i] = p
	}
	return out
}

// CountWithPlans returns how many records carry at least one plan.
func CountWithPlans(list []WithPlans) int {
	n := 0
	for _, m := range list {
		if m.HasPlans() {
			n++
		}
	}
	return n
}

// Find returns the first record whose id matches id as a string.
func Find(list []WithPlans, id string) (WithPlans, bool) {
	for _, m := range list {
		if m.MemberID.String() == id {
			return m, true
		}
	}
	return WithPlans{}, false
}

// MergePlans overlays generated records onto the records they were
// generated from, matched by id. Member fields always come from basic;
// program fields come from basic when the generated record lacks them.
// Generated records with no basic counterpart are kept as returned.
// POST: len(result) == len(generated)
func MergePlans(basic, generated []WithPlans) []WithPlans {
	byID := make(map[string]WithPlans, len(basic))
	for _, b := range basic {
		byID[b.MemberID.String()] = b
	}
	out := make([]WithPlans, len(generated))
	for i, g := range generated {
		b, ok := byID[g.MemberID.String()]
		if ok {
			g.Member = b.Member
			if !g.HasProgram() {
				g.PredictedCluster = b.PredictedCluster
				g.ProgramType = b.ProgramType
				g.Details = b.Details
			}
			for k, v := range b.Extra {
				if _, taken := g.Extra[k]; taken {
					continue
				}
				if g.Extra == nil {
					g.Extra = make(map[string]json.RawMessage)
				}
				g.Extra[k] = v
			}
		}
		out[i] = g
	}
	return out
}
