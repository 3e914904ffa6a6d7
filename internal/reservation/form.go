package reservation

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/langchou/rentdesk/internal/models"
	"github.com/langchou/rentdesk/internal/pricing"
)

var (
	ErrVehicleNotFound     = errors.New("vehicle not found")
	ErrVehicleTypeMismatch = errors.New("vehicle does not match selected type")
	ErrUnknownCharge       = errors.New("unknown additional charge")
	ErrUnknownEvent        = errors.New("unknown form event")
	ErrNegativeDiscount    = errors.New("discount must not be negative")
)

// Form 预约表单状态（值类型）
// 所有修改都返回新的 Form，原值不变
type Form struct {
	ReservationID string                    `json:"reservation_id"`
	Period        models.TimeRange          `json:"period"`
	VehicleType   string                    `json:"vehicle_type"`
	VehicleID     models.VehicleID          `json:"vehicle_id,omitempty"`
	Customer      models.Customer           `json:"customer"`
	Discount      decimal.Decimal           `json:"discount"`
	Charges       []models.AdditionalCharge `json:"charges"`
}

// NewForm 空表单，车型默认 All
func NewForm() Form {
	return Form{
		VehicleType: models.AllTypes,
		Discount:    decimal.Zero,
		Charges:     []models.AdditionalCharge{},
	}
}

// WithReservationID 设置预约编号
func (f Form) WithReservationID(id string) Form {
	f.ReservationID = id
	return f
}

// WithPickup 设置取车时间，nil 表示清空
func (f Form) WithPickup(t *time.Time) Form {
	f.Period.Pickup = copyTime(t)
	return f
}

// WithReturn 设置还车时间，nil 表示清空
func (f Form) WithReturn(t *time.Time) Form {
	f.Period.Return = copyTime(t)
	return f
}

// WithType 切换车型筛选；已选车辆不属于新车型时清除选择
func (f Form) WithType(vehicleType string, catalog []models.Vehicle) Form {
	if vehicleType == "" {
		vehicleType = models.AllTypes
	}
	f.VehicleType = vehicleType

	if f.VehicleID != "" {
		v, ok := pricing.FindVehicle(catalog, f.VehicleID)
		if !ok || !matchesType(v, vehicleType) {
			f.VehicleID = ""
		}
	}
	return f
}

// WithVehicle 选择车辆，必须存在于目录且符合当前车型；空 ID 表示取消选择
func (f Form) WithVehicle(id models.VehicleID, catalog []models.Vehicle) (Form, error) {
	if id == "" {
		f.VehicleID = ""
		return f, nil
	}

	v, ok := pricing.FindVehicle(catalog, id)
	if !ok {
		return f, fmt.Errorf("%w: %s", ErrVehicleNotFound, id)
	}
	if !matchesType(v, f.VehicleType) {
		return f, fmt.Errorf("%w: %s is %s, filter is %s", ErrVehicleTypeMismatch, id, v.Type, f.VehicleType)
	}

	f.VehicleID = id
	return f, nil
}

// ToggleCharge 勾选或取消附加费用；同名费用最多一条
func (f Form) ToggleCharge(option models.ChargeOption, enabled bool) Form {
	charges := make([]models.AdditionalCharge, 0, len(f.Charges)+1)
	for _, c := range f.Charges {
		if c.Name != option.Name {
			charges = append(charges, c)
		}
	}
	if enabled {
		charges = append(charges, option.Charge())
	}
	f.Charges = charges
	return f
}

// HasCharge 是否已勾选
func (f Form) HasCharge(name string) bool {
	return slices.ContainsFunc(f.Charges, func(c models.AdditionalCharge) bool {
		return c.Name == name
	})
}

// WithCustomer 设置客户信息
func (f Form) WithCustomer(c models.Customer) Form {
	f.Customer = c
	return f
}

// WithDiscount 设置折扣金额
func (f Form) WithDiscount(amount decimal.Decimal) (Form, error) {
	if amount.IsNegative() {
		return f, ErrNegativeDiscount
	}
	f.Discount = amount
	return f, nil
}

// Duration 计算租期；取还车时间未全部设置时返回 false
func (f Form) Duration() (pricing.Duration, bool) {
	return pricing.DurationOf(f.Period)
}

// SelectedVehicle 当前选中的车辆
func (f Form) SelectedVehicle(catalog []models.Vehicle) (*models.Vehicle, bool) {
	if f.VehicleID == "" {
		return nil, false
	}
	return pricing.FindVehicle(catalog, f.VehicleID)
}

func matchesType(v *models.Vehicle, vehicleType string) bool {
	return vehicleType == models.AllTypes || v.Type == vehicleType
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
