package reservation

import (
	"github.com/langchou/rentdesk/internal/models"
	"github.com/langchou/rentdesk/internal/pricing"
)

// Quote 表单当前的计算结果
type Quote struct {
	Duration     pricing.Duration       `json:"duration"`
	DurationSet  bool                   `json:"duration_set"`
	DurationText string                 `json:"duration_text"`
	Inverted     bool                   `json:"inverted"` // 还车时间早于取车时间，按绝对值计算
	Vehicle      *models.Vehicle        `json:"vehicle,omitempty"`
	Summary      *pricing.ChargeSummary `json:"summary"`
}

// Quote 根据目录重新计算租期与费用
// 未设置取还车时间时租期为零，汇总仍包含附加费用
func (f Form) Quote(catalog []models.Vehicle) (*Quote, error) {
	d, set := f.Duration()
	vehicle, _ := f.SelectedVehicle(catalog)

	summary, err := pricing.Aggregate(vehicle, d, f.Charges, pricing.WithDiscount(f.Discount))
	if err != nil {
		return nil, err
	}

	return &Quote{
		Duration:     d,
		DurationSet:  set,
		DurationText: d.String(),
		Inverted:     f.Period.Inverted(),
		Vehicle:      vehicle,
		Summary:      summary,
	}, nil
}
