package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/langchou/rentdesk/internal/models"
)

// LineKind 明细行类型
type LineKind string

const (
	LineDuration LineKind = "duration"
	LineFlat     LineKind = "flat"
	LineDiscount LineKind = "discount"
	LinePercent  LineKind = "percent"
)

// 租期明细行名称，顺序固定
const (
	LineDaily  = "Daily"
	LineWeekly = "Weekly"
	LineHourly = "Hourly"
)

// LineItem 费用明细行：Charge | Unit | Rate | Total
type LineItem struct {
	Name     string          `json:"name"`
	Kind     LineKind        `json:"kind"`
	Quantity *int            `json:"unit,omitempty"` // 附加费用无数量
	Rate     decimal.Decimal `json:"rate"`           // percent 行为百分数
	Total    decimal.Decimal `json:"total"`
}

// ChargeSummary 费用汇总，随输入变化重新计算，不持久化
type ChargeSummary struct {
	Lines    []LineItem      `json:"lines"`
	Subtotal decimal.Decimal `json:"subtotal"` // 百分比费用前
	Total    decimal.Decimal `json:"total"`
}

// Empty 未选车辆时的空汇总
func (s *ChargeSummary) Empty() bool {
	return len(s.Lines) == 0
}

// Line 按名称查找明细行
func (s *ChargeSummary) Line(name string) (LineItem, bool) {
	for _, l := range s.Lines {
		if l.Name == name {
			return l, true
		}
	}
	return LineItem{}, false
}

type options struct {
	discount decimal.Decimal
}

// Option 汇总计算选项
type Option func(*options)

// WithDiscount 固定金额折扣，在百分比费用之前扣除
func WithDiscount(amount decimal.Decimal) Option {
	return func(o *options) {
		if amount.IsPositive() {
			o.discount = amount
		}
	}
}

var hundred = decimal.NewFromInt(100)

// Aggregate 根据车辆单价、租期和已勾选的附加费用计算费用汇总
// 行顺序：Daily、Weekly、Hourly（数量为 0 的省略），固定附加费，折扣，百分比附加费
func Aggregate(vehicle *models.Vehicle, d Duration, extras []models.AdditionalCharge, opts ...Option) (*ChargeSummary, error) {
	summary := &ChargeSummary{
		Lines:    []LineItem{},
		Subtotal: decimal.Zero,
		Total:    decimal.Zero,
	}
	if vehicle == nil {
		return summary, nil
	}

	if missing := vehicle.Rates.Missing(); len(missing) > 0 {
		return nil, &MissingRateError{VehicleID: vehicle.ID, Fields: missing}
	}

	o := options{discount: decimal.Zero}
	for _, opt := range opts {
		opt(&o)
	}

	subtotal := decimal.Zero

	durationLines := []struct {
		name string
		qty  int
		rate decimal.Decimal
	}{
		{LineDaily, d.Days, *vehicle.Rates.Daily},
		{LineWeekly, d.Weeks, *vehicle.Rates.Weekly},
		{LineHourly, d.Hours, *vehicle.Rates.Hourly},
	}
	for _, dl := range durationLines {
		if dl.qty == 0 {
			continue
		}
		qty := dl.qty
		total := dl.rate.Mul(decimal.NewFromInt(int64(qty)))
		summary.Lines = append(summary.Lines, LineItem{
			Name:     dl.name,
			Kind:     LineDuration,
			Quantity: &qty,
			Rate:     dl.rate,
			Total:    total,
		})
		subtotal = subtotal.Add(total)
	}

	seen := make(map[string]bool, len(extras))
	var percents []models.AdditionalCharge
	for _, extra := range extras {
		if seen[extra.Name] {
			continue
		}
		seen[extra.Name] = true

		if extra.IsPercent() {
			percents = append(percents, extra)
			continue
		}
		summary.Lines = append(summary.Lines, LineItem{
			Name:  extra.Name,
			Kind:  LineFlat,
			Rate:  extra.Amount,
			Total: extra.Amount,
		})
		subtotal = subtotal.Add(extra.Amount)
	}

	if o.discount.IsPositive() {
		discount := decimal.Min(o.discount, subtotal)
		summary.Lines = append(summary.Lines, LineItem{
			Name:  "Discount",
			Kind:  LineDiscount,
			Rate:  o.discount,
			Total: discount.Neg(),
		})
		subtotal = subtotal.Sub(discount)
	}

	summary.Subtotal = subtotal
	total := subtotal
	for _, p := range percents {
		amount := subtotal.Mul(p.Amount).Div(hundred).Round(2)
		summary.Lines = append(summary.Lines, LineItem{
			Name:  p.Name,
			Kind:  LinePercent,
			Rate:  p.Amount,
			Total: amount,
		})
		total = total.Add(amount)
	}
	summary.Total = total

	return summary, nil
}
