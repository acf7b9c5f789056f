package plannertwin

import (
	"fmt"
	"math"

	"vitality/internal/domain/member"
)

// Program labels and clusters handed out by the twin.
const (
	ClusterStrength    = 0
	ClusterWeightLoss  = 1
	ClusterEndurance   = 2
	ClusterFlexibility = 3
)

type program struct {
	name    string
	details string
	focus   []string
}

var programs = map[int]program{
	ClusterStrength: {
		name:    "Strength Focus",
		details: "Progressive **resistance training** with compound lifts.\nRest 48h between sessions for the same muscle group.",
		focus:   []string{"Upper Body", "Lower Body", "Full Body", "Core"},
	},
	ClusterWeightLoss: {
		name:    "Weight Loss",
		details: "Calorie deficit supported by **cardio** and light resistance work.\nAim for a steady pace you can sustain.",
		focus:   []string{"Cardio", "Circuit", "Cardio", "Mobility"},
	},
	ClusterEndurance: {
		name:    "Endurance Builder",
		details: "Aerobic base building with **interval** days.\nIncrease volume by no more than 10% a week.",
		focus:   []string{"Intervals", "Long Run", "Tempo", "Recovery"},
	},
	ClusterFlexibility: {
		name:    "Flexibility & Mobility",
		details: "Daily **mobility** work with yoga and light strength.\nHold stretches 30 seconds or more.",
		focus:   []string{"Yoga", "Mobility", "Pilates", "Stretching"},
	},
}

var weekdays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

func value(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

func ptr(v float64) *float64 { return &v }

// Cluster assigns a member to one of the twin's four programs. The rules
// are fixed so the same biometrics always land in the same program.
func Cluster(m member.Member) int {
	switch {
	case value(m.BMI, 0) >= 27 || value(m.BodyFatPercent, 0) >= 30:
		return ClusterWeightLoss
	case value(m.FlexibilityScore, 100) < 40:
		return ClusterFlexibility
	case value(m.StrengthScore, 0) >= value(m.EnduranceScore, 0):
		return ClusterStrength
	default:
		return ClusterEndurance
	}
}

// Assign returns m with a program. Member fields are copied unchanged.
func Assign(m member.Member) member.WithPlans {
	c := Cluster(m)
	var out member.WithPlans
	out.Member = m
	out.PredictedCluster = &c
	out.ProgramType = programs[c].name
	out.Details = programs[c].details
	return out
}

// Plan adds a workout and nutrition plan to an assigned member. A member
// without a program is assigned first.
func Plan(w member.WithPlans) member.WithPlans {
	if !w.HasProgram() || w.PredictedCluster == nil {
		assigned := Assign(w.Member)
		if w.PredictedCluster == nil {
			w.PredictedCluster = assigned.PredictedCluster
		}
		if w.ProgramType == "" {
			w.ProgramType = assigned.ProgramType
			w.Details = assigned.Details
		}
	}
	p, ok := programs[*w.PredictedCluster]
	if !ok {
		p = programs[ClusterEndurance]
	}
	w.BiometricsPlan = workoutPlan(w.Member, p)
	w.NutritionPlan = nutritionPlan(w.Member, *w.PredictedCluster)
	return w
}

func workoutPlan(m member.Member, p program) *member.BiometricsPlan {
	days := int(math.Round(value(m.WeeklyWorkouts, 3)))
	days = min(max(days, 2), 6)
	intensity := "Moderate"
	switch vo2 := value(m.VO2max, 40); {
	case vo2 >= 50:
		intensity = "High"
	case vo2 < 32:
		intensity = "Low"
	}

	plan := &member.BiometricsPlan{
		TrainingGuidelines: &member.TrainingGuidelines{
			Warmup:           "10 minutes of easy cardio and dynamic stretches.",
			Cooldown:         "5 minutes of walking followed by static stretches.",
			InjuryPrevention: "Stop if you feel sharp pain. Keep good form over heavier loads.",
		},
		PersonalNote: fmt.Sprintf("You are on the %s program. Train %d days a week and rest on the others.", p.name, days),
	}
	// Spread training days across the week.
	step := float64(len(weekdays)) / float64(days)
	for i := range days {
		day := weekdays[int(float64(i)*step)]
		focus := p.focus[i%len(p.focus)]
		plan.WeeklyWorkoutPlan = append(plan.WeeklyWorkoutPlan, member.WorkoutDay{
			Day:   day,
			Focus: focus,
			Sessions: []member.Session{
				{Type: focus, DurationMin: ptr(float64(30 + 5*(i%3))), Intensity: intensity},
				{Type: "Stretching", DurationMin: ptr(10), Intensity: "Low", Notes: "Hold each stretch 30s"},
			},
		})
	}
	return plan
}

func nutritionPlan(m member.Member, cluster int) *member.NutritionPlan {
	calories := 2000 + 50*value(m.WeeklyWorkouts, 3)
	if cluster == ClusterWeightLoss {
		calories -= 400
	}
	if cluster == ClusterStrength {
		calories += 250
	}
	calories = math.Round(calories/10) * 10

	// Protein 30%, carbs 45%, fat 25% of calories.
	targets := &member.MacroTargets{
		Protein: math.Round(calories * 0.30 / 4),
		Carbs:   math.Round(calories * 0.45 / 4),
		Fat:     math.Round(calories * 0.25 / 9),
	}
	meals := []struct {
		time, kind string
		share      float64
		items      []string
	}{
		{"07:30", "Breakfast", 0.25, []string{"Oatmeal with berries", "Greek yogurt"}},
		{"12:30", "Lunch", 0.35, []string{"Grilled chicken", "Brown rice", "Mixed vegetables"}},
		{"16:00", "Snack", 0.10, []string{"Apple", "Almonds"}},
		{"19:00", "Dinner", 0.30, []string{"Salmon", "Sweet potato", "Green salad"}},
	}
	plan := &member.NutritionPlan{
		Summary: &member.NutritionSummary{
			TotalCalories:   ptr(calories),
			MacroTargetsG:   targets,
			HydrationML:     ptr(2000 + 250*value(m.WeeklyWorkouts, 3)),
			SupplementsNote: "A daily multivitamin is optional. Check with your doctor first.",
		},
		PersonalNote: "Spread protein evenly across meals and drink water throughout the day.",
	}
	for _, meal := range meals {
		plan.DailyMealSchedule = append(plan.DailyMealSchedule, member.Meal{
			Time:     meal.time,
			MealType: meal.kind,
			Items:    meal.items,
			Calories: ptr(math.Round(calories * meal.share)),
			Macros: &member.Macros{
				ProteinG: math.Round(targets.Protein * meal.share),
				CarbsG:   math.Round(targets.Carbs * meal.share),
				FatG:     math.Round(targets.Fat * meal.share),
			},
		})
	}
	return plan
}
