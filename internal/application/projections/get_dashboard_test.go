package projections

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	planSetStore "vitality/internal/adapters/storage/planset"
	"vitality/internal/domain/member"
	"vitality/internal/domain/planset"
)

// --- Mock plan set store ---

type mockPlanSets struct {
	set planset.PlanSet
	err error
}

func (m *mockPlanSets) Get(_ context.Context, _ string) (planset.PlanSet, error) {
	return m.set, m.err
}

func decodeMembers(t *testing.T, raw string) []member.WithPlans {
	t.Helper()
	var out []member.WithPlans
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return out
}

const dashboardMembers = `[
	{"MemberID":101,"BMI":20,"VO2max":50,"Predicted_Cluster":2,"Program_Type":"Endurance","Biometrics_Plan":{}},
	{"MemberID":102,"BMI":30,"Predicted_Cluster":0,"Program_Type":"Strength"},
	{"MemberID":"X-7","VO2max":40,"Predicted_Cluster":2,"Program_Type":"Endurance"},
	{"MemberID":104,"Predicted_Cluster":1,"Program_Type":"Weight Loss","Nutrition_Plan":{}}
]`

func TestQueryDashboard_NoData(t *testing.T) {
	deps := DashboardDeps{PlanSets: &mockPlanSets{err: planSetStore.ErrNotFound}}
	res, err := QueryDashboard(context.Background(), DashboardQuery{ProfileID: "p"}, deps)
	if err != nil {
		t.Fatalf("QueryDashboard: %v", err)
	}
	if res.HasData || len(res.Members) != 0 {
		t.Errorf("result = %+v", res)
	}
}

func TestQueryDashboard_StoreError(t *testing.T) {
	deps := DashboardDeps{PlanSets: &mockPlanSets{err: errors.New("disk")}}
	if _, err := QueryDashboard(context.Background(), DashboardQuery{ProfileID: "p"}, deps); err == nil {
		t.Error("expected error")
	}
}

func TestQueryDashboard_Stats(t *testing.T) {
	set := planset.PlanSet{ProfileID: "p", Members: decodeMembers(t, dashboardMembers), Warning: "w", Fallback: true}
	res, err := QueryDashboard(context.Background(), DashboardQuery{ProfileID: "p", Page: 1, PerPage: 24}, DashboardDeps{PlanSets: &mockPlanSets{set: set}})
	if err != nil {
		t.Fatal(err)
	}
	s := res.Stats
	if s.TotalMembers != 4 || s.AvgBMI != "25.0" || s.AvgVO2max != "45.0" || s.PlansCount != 2 {
		t.Errorf("stats = %+v", s)
	}
	if len(s.ProgramTypes) != 3 || s.ProgramTypes[0] != "Endurance" || s.ProgramTypes[2] != "Weight Loss" {
		t.Errorf("ProgramTypes = %v", s.ProgramTypes)
	}
	if len(s.Clusters) != 3 || s.Clusters[0] != 0 || s.Clusters[2] != 2 {
		t.Errorf("Clusters = %v", s.Clusters)
	}
	if !res.HasData || res.Warning != "w" || !res.Fallback {
		t.Errorf("metadata = %+v", res)
	}
}

func TestComputeStats_NoValues(t *testing.T) {
	s := ComputeStats(decodeMembers(t, `[{"MemberID":1}]`))
	if s.AvgBMI != "-" || s.AvgVO2max != "-" {
		t.Errorf("averages = %q %q, want -", s.AvgBMI, s.AvgVO2max)
	}
}

func TestFilterMembers(t *testing.T) {
	list := decodeMembers(t, dashboardMembers)
	tests := []struct {
		name                     string
		search, cluster, program string
		want                     []string
	}{
		{"all", "", "", "", []string{"101", "102", "X-7", "104"}},
		{"search id", "10", "", "", []string{"101", "102", "104"}},
		{"search program case-insensitive", "endur", "", "", []string{"101", "X-7"}},
		{"search string id", "x-7", "", "", []string{"X-7"}},
		{"cluster", "", "2", "", []string{"101", "X-7"}},
		{"cluster zero", "", "0", "", []string{"102"}},
		{"bad cluster", "", "two", "", []string{}},
		{"program exact", "", "", "Strength", []string{"102"}},
		{"combined", "x", "2", "Endurance", []string{"X-7"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterMembers(list, tt.search, tt.cluster, tt.program)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d members, want %d", len(got), len(tt.want))
			}
			for i, id := range tt.want {
				if got[i].MemberID.String() != id {
					t.Errorf("got[%d] = %s, want %s", i, got[i].MemberID.String(), id)
				}
			}
		})
	}
}

func TestQueryDashboard_Paginates(t *testing.T) {
	var raw []byte
	raw = append(raw, '[')
	for i := 0; i < 30; i++ {
		if i > 0 {
			raw = append(raw, ',')
		}
		raw = append(raw, []byte(`{"MemberID":`+itoa(i+1)+`,"Program_Type":"Cardio"}`)...)
	}
	raw = append(raw, ']')
	set := planset.PlanSet{ProfileID: "p", Members: decodeMembers(t, string(raw))}
	res, err := QueryDashboard(context.Background(), DashboardQuery{ProfileID: "p", Page: 2, PerPage: 12}, DashboardDeps{PlanSets: &mockPlanSets{set: set}})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Members) != 12 || res.Members[0].MemberID.String() != "13" {
		t.Errorf("page 2 = %d members starting at %s", len(res.Members), res.Members[0].MemberID.String())
	}
	if res.PageInfo.TotalPages != 3 || res.Filtered != 30 {
		t.Errorf("PageInfo = %+v, Filtered = %d", res.PageInfo, res.Filtered)
	}
}

func itoa(n int) string {
	b, _ := json.Marshal(n)
	return string(b)
}
