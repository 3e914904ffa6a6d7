package models

import "time"

// TimeRange 取车/还车时间，两端可独立为空
type TimeRange struct {
	Pickup *time.Time `json:"pickup,omitempty"`
	Return *time.Time `json:"return,omitempty"`
}

// Complete 两端都已设置
func (r TimeRange) Complete() bool {
	return r.Pickup != nil && r.Return != nil
}

// Inverted 还车时间早于取车时间
func (r TimeRange) Inverted() bool {
	return r.Complete() && r.Return.Before(*r.Pickup)
}

// Customer 客户信息（不做校验）
type Customer struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

// FullName 客户全名
func (c Customer) FullName() string {
	switch {
	case c.FirstName == "":
		return c.LastName
	case c.LastName == "":
		return c.FirstName
	default:
		return c.FirstName + " " + c.LastName
	}
}
