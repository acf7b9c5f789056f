package member

// BiometricsPlan is the generated weekly training plan.
type BiometricsPlan struct {
	WeeklyWorkoutPlan  []WorkoutDay        `json:"weekly_workout_plan,omitempty"`
	TrainingGuidelines *TrainingGuidelines `json:"training_guidelines,omitempty"`
	PersonalNote       string              `json:"personal_note,omitempty"`
}

// WorkoutDay is one day of the weekly schedule.
type WorkoutDay struct {
	Day      string    `json:"day"`
	Focus    string    `json:"focus"`
	Sessions []Session `json:"sessions,omitempty"`
}

// Session is one block of training within a day.
type Session struct {
	Type        string   `json:"type"`
	DurationMin *float64 `json:"duration_min,omitempty"`
	Intensity   string   `json:"intensity,omitempty"`
	Notes       string   `json:"notes,omitempty"`
}

// TrainingGuidelines holds the warmup/cooldown/injury advice.
type TrainingGuidelines struct {
	Warmup           string `json:"warmup,omitempty"`
	Cooldown         string `json:"cooldown,omitempty"`
	InjuryPrevention string `json:"injury_prevention,omitempty"`
}

// NutritionPlan is the generated daily meal plan.
type NutritionPlan struct {
	DailyMealSchedule []Meal            `json:"daily_meal_schedule,omitempty"`
	Summary           *NutritionSummary `json:"summary,omitempty"`
	PersonalNote      string            `json:"personal_note,omitempty"`
}

// Meal is one entry of the daily schedule.
type Meal struct {
	Time     string   `json:"time"`
	MealType string   `json:"meal_type"`
	Items    []string `json:"items,omitempty"`
	Calories *float64 `json:"calories,omitempty"`
	Macros   *Macros  `json:"macros,omitempty"`
}

// Macros are per-meal macronutrient grams.
type Macros struct {
	ProteinG float64 `json:"protein_g"`
	CarbsG   float64 `json:"carbs_g"`
	FatG     float64 `json:"fat_g"`
}

// NutritionSummary holds daily targets.
type NutritionSummary struct {
	TotalCalories   *float64      `json:"total_calories,omitempty"`
	MacroTargetsG   *MacroTargets `json:"macro_targets_g,omitempty"`
	HydrationML     *float64      `json:"hydration_ml,omitempty"`
	SupplementsNote string        `json:"supplements_note,omitempty"`
}

// MacroTargets are the daily macronutrient targets in grams.
type MacroTargets struct {
	Protein float64 `json:"protein"`
	Carbs   float64 `json:"carbs"`
	Fat     float64 `json:"fat"`
}

// Total returns the sum of the three targets.
func (m MacroTargets) Total() float64 {
	return m.Protein + m.Carbs + m.Fat
}
