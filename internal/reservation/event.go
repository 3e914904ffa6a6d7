package reservation

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/langchou/rentdesk/internal/models"
)

// 表单事件类型
const (
	EventPickup        = "pickup"
	EventReturn        = "return"
	EventVehicleType   = "vehicle_type"
	EventVehicle       = "vehicle"
	EventCharge        = "charge"
	EventCustomer      = "customer"
	EventDiscount      = "discount"
	EventReservationID = "reservation_id"
)

// Event 一次 UI 交互
type Event struct {
	Type          string           `json:"type"`
	Time          *time.Time       `json:"time,omitempty"`
	VehicleType   string           `json:"vehicle_type,omitempty"`
	VehicleID     models.VehicleID `json:"vehicle_id,omitempty"`
	Charge        string           `json:"charge,omitempty"`
	Enabled       bool             `json:"enabled,omitempty"`
	Customer      *models.Customer `json:"customer,omitempty"`
	Discount      *decimal.Decimal `json:"discount,omitempty"`
	ReservationID string           `json:"reservation_id,omitempty"`
}

// Apply 将事件应用到表单，返回新的表单
func (f Form) Apply(e Event, catalog []models.Vehicle, options []models.ChargeOption) (Form, error) {
	switch e.Type {
	case EventPickup:
		return f.WithPickup(e.Time), nil
	case EventReturn:
		return f.WithReturn(e.Time), nil
	case EventVehicleType:
		return f.WithType(e.VehicleType, catalog), nil
	case EventVehicle:
		return f.WithVehicle(e.VehicleID, catalog)
	case EventCharge:
		option, ok := FindOption(options, e.Charge)
		if !ok {
			return f, fmt.Errorf("%w: %q", ErrUnknownCharge, e.Charge)
		}
		return f.ToggleCharge(option, e.Enabled), nil
	case EventCustomer:
		if e.Customer == nil {
			return f.WithCustomer(models.Customer{}), nil
		}
		return f.WithCustomer(*e.Customer), nil
	case EventDiscount:
		if e.Discount == nil {
			return f.WithDiscount(decimal.Zero)
		}
		return f.WithDiscount(*e.Discount)
	case EventReservationID:
		return f.WithReservationID(e.ReservationID), nil
	default:
		return f, fmt.Errorf("%w: %q", ErrUnknownEvent, e.Type)
	}
}

// NeedsCatalog 事件是否依赖车辆目录
func (e Event) NeedsCatalog() bool {
	return e.Type == EventVehicle || e.Type == EventVehicleType
}

// FindOption 按名称查找附加费用选项
func FindOption(options []models.ChargeOption, name string) (models.ChargeOption, bool) {
	for _, o := range options {
		if o.Name == name {
			return o, true
		}
	}
	return models.ChargeOption{}, false
}
