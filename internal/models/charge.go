package models

import "github.com/shopspring/decimal"

// ChargeKind 附加费用计费方式
type ChargeKind string

const (
	ChargeFlat    ChargeKind = "flat"    // 固定金额
	ChargePercent ChargeKind = "percent" // 小计百分比
)

// ChargeOption 可勾选的附加费用项
type ChargeOption struct {
	Name   string          `json:"name"`
	Kind   ChargeKind      `json:"kind"`
	Amount decimal.Decimal `json:"amount"` // flat: 金额; percent: 百分数，如 11.5
}

// AdditionalCharge 已勾选的附加费用，按 Name 唯一
type AdditionalCharge struct {
	Name   string          `json:"name"`
	Kind   ChargeKind      `json:"kind"`
	Amount decimal.Decimal `json:"amount"`
}

// Charge 由选项生成已勾选费用
func (o ChargeOption) Charge() AdditionalCharge {
	return AdditionalCharge{Name: o.Name, Kind: o.Kind, Amount: o.Amount}
}

// IsPercent 是否按百分比计费
func (c AdditionalCharge) IsPercent() bool {
	return c.Kind == ChargePercent
}

// DefaultChargeOptions 预约表单默认的附加费用
func DefaultChargeOptions() []ChargeOption {
	return []ChargeOption{
		{Name: "Collision Damage Waiver", Kind: ChargeFlat, Amount: decimal.NewFromInt(9)},
		{Name: "Liability Insurance", Kind: ChargeFlat, Amount: decimal.NewFromInt(15)},
		{Name: "Rental Tax", Kind: ChargePercent, Amount: decimal.RequireFromString("11.5")},
	}
}
