package projections

import (
	"context"
	"errors"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	planSetStore "vitality/internal/adapters/storage/planset"
	"vitality/internal/application/listutil"
	"vitality/internal/domain/member"
)

// Dashboard filter parameter names.
const (
	FilterCluster = "cluster"
	FilterProgram = "program"
)

// DashboardFilterKeys are the filters QueryDashboard understands.
var DashboardFilterKeys = []string{FilterCluster, FilterProgram}

// DashboardQuery carries the dashboard's search, filters and page.
type DashboardQuery struct {
	ProfileID string
	Search    string // matches MemberID or Program_Type, case-insensitive
	Cluster   string // exact Predicted_Cluster, "" for all
	Program   string // exact Program_Type, "" for all
	Page      int
	PerPage   int
}

// DashboardStats summarises the whole stored set, ignoring filters.
type DashboardStats struct {
	TotalMembers int
	AvgBMI       string // one decimal, "-" when no member has a BMI
	AvgVO2max    string
	ProgramTypes []string // distinct, in order of first appearance
	Clusters     []int    // distinct, ascending
	PlansCount   int
}

// DashboardResult carries the query result.
type DashboardResult struct {
	HasData    bool
	Members    []member.WithPlans // current page of the filtered list
	Filtered   int
	Stats      DashboardStats
	PageInfo   listutil.PageInfo
	SourceName string
	Warning    string
	Fallback   bool
	UpdatedAt  time.Time
}

// DashboardDeps holds dependencies for QueryDashboard.
type DashboardDeps struct {
	PlanSets PlanSetReader
}

// QueryDashboard filters and pages the profile's stored plan set.
// PRE: ProfileID is non-empty
// POST: HasData is false when nothing is stored; Stats cover the unfiltered set
// INVARIANT: Stored records are returned unmodified
func QueryDashboard(ctx context.Context, query DashboardQuery, deps DashboardDeps) (DashboardResult, error) {
	set, err := deps.PlanSets.Get(ctx, query.ProfileID)
	if errors.Is(err, planSetStore.ErrNotFound) {
		return DashboardResult{PageInfo: listutil.NewPageInfo(1, query.PerPage, 0)}, nil
	}
	if err != nil {
		return DashboardResult{}, err
	}
	if set.Corrupt || len(set.Members) == 0 {
		return DashboardResult{PageInfo: listutil.NewPageInfo(1, query.PerPage, 0)}, nil
	}

	filtered := FilterMembers(set.Members, query.Search, query.Cluster, query.Program)
	info := listutil.NewPageInfo(query.Page, query.PerPage, len(filtered))
	return DashboardResult{
		HasData:    true,
		Members:    listutil.Paginate(filtered, info),
		Filtered:   len(filtered),
		Stats:      ComputeStats(set.Members),
		PageInfo:   info,
		SourceName: set.SourceName,
		Warning:    set.Warning,
		Fallback:   set.Fallback,
		UpdatedAt:  set.UpdatedAt,
	}, nil
}

// FilterMembers applies search, cluster and program filters.
// An unparsable cluster filter matches nothing.
func FilterMembers(list []member.WithPlans, search, cluster, program string) []member.WithPlans {
	needle := strings.ToLower(strings.TrimSpace(search))
	wantCluster, clusterErr := 0, error(nil)
	if cluster != "" {
		wantCluster, clusterErr = strconv.Atoi(cluster)
	}

	out := make([]member.WithPlans, 0, len(list))
	for _, m := range list {
		if needle != "" &&
			!strings.Contains(strings.ToLower(m.MemberID.String()), needle) &&
			!strings.Contains(strings.ToLower(m.ProgramType), needle) {
			continue
		}
		if cluster != "" {
			if clusterErr != nil || m.PredictedCluster == nil || *m.PredictedCluster != wantCluster {
				continue
			}
		}
		if program != "" && m.ProgramType != program {
			continue
		}
		out = append(out, m)
	}
	return out
}

// ComputeStats aggregates the set. Averages only include members that
// carry the value.
func ComputeStats(list []member.WithPlans) DashboardStats {
	var bmiSum, vo2Sum float64
	var bmiN, vo2N int
	seenProgram := map[string]bool{}
	seenCluster := map[int]bool{}
	stats := DashboardStats{TotalMembers: len(list), ProgramTypes: []string{}, Clusters: []int{}}

	for _, m := range list {
		if m.BMI != nil && isFinite(*m.BMI) {
			bmiSum += *m.BMI
			bmiN++
		}
		if m.VO2max != nil && isFinite(*m.VO2max) {
			vo2Sum += *m.VO2max
			vo2N++
		}
		if m.ProgramType != "" && !seenProgram[m.ProgramType] {
			seenProgram[m.ProgramType] = true
			stats.ProgramTypes = append(stats.ProgramTypes, m.ProgramType)
		}
		if m.PredictedCluster != nil && !seenCluster[*m.PredictedCluster] {
			seenCluster[*m.PredictedCluster] = true
			stats.Clusters = append(stats.Clusters, *m.PredictedCluster)
		}
		if m.HasPlans() {
			stats.PlansCount++
		}
	}
	sort.Ints(stats.Clusters)
	stats.AvgBMI = average(bmiSum, bmiN)
	stats.AvgVO2max = average(vo2Sum, vo2N)
	return stats
}

func average(sum float64, n int) string {
	if n == 0 {
		return "-"
	}
	return strconv.FormatFloat(sum/float64(n), 'f', 1, 64)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
