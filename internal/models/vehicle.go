package models

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// AllTypes 车型筛选哨兵值，表示不过滤
const AllTypes = "All"

// VehicleID 车辆 ID，目录接口可能返回数字或字符串
type VehicleID string

// UnmarshalJSON 兼容数字和字符串两种格式
func (id *VehicleID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode vehicle id: %w", err)
		}
		*id = VehicleID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decode vehicle id: %w", err)
	}
	*id = VehicleID(n.String())
	return nil
}

// String 返回 ID 字符串
func (id VehicleID) String() string {
	return string(id)
}

// Rates 车辆单价表，字段缺失时为 nil
type Rates struct {
	Hourly *decimal.Decimal `json:"hourly" db:"hourly_rate"`
	Daily  *decimal.Decimal `json:"daily" db:"daily_rate"`
	Weekly *decimal.Decimal `json:"weekly" db:"weekly_rate"`
}

// Missing 返回缺失的单价字段名
func (r Rates) Missing() []string {
	var missing []string
	if r.Hourly == nil {
		missing = append(missing, "hourly")
	}
	if r.Daily == nil {
		missing = append(missing, "daily")
	}
	if r.Weekly == nil {
		missing = append(missing, "weekly")
	}
	return missing
}

// Vehicle 目录中的车辆
type Vehicle struct {
	ID    VehicleID `json:"id" db:"id"`
	Make  string    `json:"make" db:"make"`
	Model string    `json:"model" db:"model"`
	Type  string    `json:"type" db:"type"` // Sedan, SUV ...
	Rates Rates     `json:"rates"`
}

// DisplayName 下拉框显示名称
func (v *Vehicle) DisplayName() string {
	return v.Make + " " + v.Model
}

// NewRate 构造单价指针，便于字面量初始化
func NewRate(amount float64) *decimal.Decimal {
	d := decimal.NewFromFloat(amount)
	return &d
}

// ParseRate 解析字符串单价，空串视为缺失
func ParseRate(s string) (*decimal.Decimal, error) {
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("parse rate %q: %w", s, err)
	}
	return &d, nil
}
