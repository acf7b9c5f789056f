package report

import (
	"strings"
	"time"

	"vitality/internal/domain/member"
)

// Brand printed in report headers.
const Brand = "Nightfall Fitness"

// Fallback messages for absent sections.
const (
	MsgNoWorkout  = "No workout plan available. Please contact your trainer for a customized plan."
	MsgNoMeals    = "No meal schedule available. Please contact your nutritionist for a personalized meal plan."
	MsgNoMacros   = "No macro distribution data available."
	MsgNoSummary  = "No nutrition summary available."
	MsgNoGuidance = "No training guidelines available."
)

// Pie colours for the macro chart.
const (
	ColorProtein = "#3b82f6"
	ColorCarbs   = "#10b981"
	ColorFat     = "#f97316"
)

// Chart sizes used by the PDF document.
const (
	PieSize   = 80
	RadarSize = 100
)

// Metric is one labelled value.
type Metric struct {
	Label string
	Value string
}

// View is everything the report templates render for one member. Every
// optional block is decided here, once.
type View struct {
	MemberID    string
	ProgramType string
	Cluster     string
	Details     string
	GeneratedOn string

	Snapshot []Metric // health metrics for the PDF overview
	Current  []Metric // metrics block of the print page
	Scores   []Metric // fitness scores out of 100
	Radar    Radar

	Workout       Section[[]member.WorkoutDay]
	Guidelines    Section[member.TrainingGuidelines]
	WorkoutNote   Section[string]
	Meals         Section[[]member.Meal]
	Summary       Section[member.NutritionSummary]
	Macros        Section[member.MacroTargets]
	MacroPie      Section[[]PieArc]
	Supplements   Section[string]
	NutritionNote Section[string]

	HasBiometrics bool
	HasNutrition  bool
}

// Build decides the sections for m. dated is shown as the plan's date.
// POST: every Section is Present only when its data is usable
// INVARIANT: m is not mutated; equal inputs give equal views
func Build(m member.WithPlans, dated time.Time) View {
	v := View{
		MemberID:    m.MemberID.String(),
		ProgramType: orPlaceholder(m.ProgramType),
		Cluster:     Fmt(m.PredictedCluster, 0),
		Details:     m.Details,
		GeneratedOn: dated.Format("January 2, 2006"),
		Snapshot: []Metric{
			{"BMI", Fmt(m.BMI, 1)},
			{"Body Fat", withUnit(Fmt(m.BodyFatPercent, 1), "%")},
			{"VO2max", Fmt(m.VO2max, 1)},
			{"Workouts/Wk", Fmt(m.WeeklyWorkouts, 0)},
		},
		Current: []Metric{
			{"BMI", Fmt(m.BMI, 1)},
			{"Body Fat %", Fmt(m.BodyFatPercent, 1)},
			{"VO2 Max", Fmt(m.VO2max, 1)},
			{"Endurance", Score(m.EnduranceScore)},
			{"Flexibility", Score(m.FlexibilityScore)},
			{"Weekly Workouts", Fmt(m.WeeklyWorkouts, 0)},
		},
		Scores: []Metric{
			{"Endurance", Score(m.EnduranceScore)},
			{"Flexibility", Score(m.FlexibilityScore)},
			{"Strength", Score(m.StrengthScore)},
		},
		Radar: NewRadar([]RadarAxis{
			{"Endurance", scoreValue(m.EnduranceScore)},
			{"Flexibility", scoreValue(m.FlexibilityScore)},
			{"Strength", scoreValue(m.StrengthScore)},
		}, RadarSize),
		Workout:       Absent[[]member.WorkoutDay](),
		Guidelines:    Absent[member.TrainingGuidelines](),
		WorkoutNote:   Absent[string](),
		Meals:         Absent[[]member.Meal](),
		Summary:       Absent[member.NutritionSummary](),
		Macros:        Absent[member.MacroTargets](),
		MacroPie:      Absent[[]PieArc](),
		Supplements:   Absent[string](),
		NutritionNote: Absent[string](),
	}

	if bio := m.BiometricsPlan; bio != nil {
		v.HasBiometrics = true
		v.Workout = presentIf(bio.WeeklyWorkoutPlan, len(bio.WeeklyWorkoutPlan) > 0)
		if g := bio.TrainingGuidelines; g != nil {
			v.Guidelines = presentIf(*g, g.Warmup != "" || g.Cooldown != "" || g.InjuryPrevention != "")
		}
		v.WorkoutNote = presentIf(bio.PersonalNote, strings.TrimSpace(bio.PersonalNote) != "")
	}

	if nut := m.NutritionPlan; nut != nil {
		v.HasNutrition = true
		v.Meals = presentIf(nut.DailyMealSchedule, len(nut.DailyMealSchedule) > 0)
		v.NutritionNote = presentIf(nut.PersonalNote, strings.TrimSpace(nut.PersonalNote) != "")
		if s := nut.Summary; s != nil {
			v.Summary = Present(*s)
			v.Supplements = presentIf(s.SupplementsNote, strings.TrimSpace(s.SupplementsNote) != "")
			if t := s.MacroTargetsG; t != nil {
				v.Macros = Present(*t)
				slices := MacroSlices(*t)
				v.MacroPie = presentIf(PieArcs(slices, PieSize), len(slices) > 0)
			}
		}
	}
	return v
}

// MacroSlices converts gram targets into percentage slices. Negative grams
// count as zero. It returns nil when the total is not positive.
func MacroSlices(t member.MacroTargets) []PieSlice {
	protein, carbs, fat := max(t.Protein, 0), max(t.Carbs, 0), max(t.Fat, 0)
	total := protein + carbs + fat
	if !(total > 0) {
		return nil
	}
	return []PieSlice{
		{"Protein", protein / total * 100, ColorProtein},
		{"Carbs", carbs / total * 100, ColorCarbs},
		{"Fat", fat / total * 100, ColorFat},
	}
}

// SessionLine formats a training session as "Type (N min) - Intensity - Notes".
func SessionLine(s member.Session) string {
	var b strings.Builder
	b.WriteString(orPlaceholder(s.Type))
	b.WriteString(" (" + Num(s.DurationMin) + " min)")
	if s.Intensity != "" {
		b.WriteString(" - " + s.Intensity)
	}
	if s.Notes != "" {
		b.WriteString(" - " + s.Notes)
	}
	return b.String()
}

// MealItems joins a meal's items for a table cell.
func MealItems(m member.Meal) string {
	return strings.Join(m.Items, ", ")
}

// MealMacros formats per-meal macros, or Placeholder when absent.
func MealMacros(m member.Meal) string {
	if m.Macros == nil {
		return Placeholder
	}
	return "Protein: " + Num(m.Macros.ProteinG) + "g | Carbs: " + Num(m.Macros.CarbsG) + "g | Fat: " + Num(m.Macros.FatG) + "g"
}

// Liters formats millilitres as litres with one decimal.
func Liters(ml *float64) string {
	if ml == nil {
		return Placeholder
	}
	return withUnit(Fmt(*ml/1000, 1), "L")
}

// WithUnit appends unit to a formatted value unless it is the placeholder.
func WithUnit(v any, unit string) string {
	return withUnit(Num(v), unit)
}

func withUnit(s, unit string) string {
	if s == Placeholder {
		return s
	}
	return s + unit
}

func scoreValue(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func orPlaceholder(s string) string {
	if strings.TrimSpace(s) == "" {
		return Placeholder
	}
	return s
}
