package dailyreport

import (
	"math"

	"github.com/yuditriaji/zaiko-backend/pkg/database"
)

// Recommend returns the whole quantity needed to bring stock back up to minimum.
// Nothing is recommended without a positive minimum or when stock already meets it.
func Recommend(stock float64, minimum *float64) float64 {
	if minimum == nil || math.IsNaN(*minimum) || math.IsInf(*minimum, 0) {
		return 0
	}
	m := *minimum
	if m <= 0 || stock >= m {
		return 0
	}
	return math.Ceil(m - stock)
}

// Metrics are productivity figures derived from a report. Both are nil without working hours.
type Metrics struct {
	SetsPerHour    *float64 `json:"sets_per_hour"`
	RevenuePerHour *float64 `json:"revenue_per_hour"`
}

func ComputeMetrics(r database.DailyReport) Metrics {
	if r.WorkingHours <= 0 {
		return Metrics{}
	}
	sets := r.ProductionSets / r.WorkingHours
	revenue := r.Sales / r.WorkingHours
	return Metrics{SetsPerHour: &sets, RevenuePerHour: &revenue}
}
