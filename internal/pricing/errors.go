package pricing

import (
	"fmt"
	"strings"

	"github.com/langchou/rentdesk/internal/models"
)

// MissingRateError 已选车辆缺少单价字段
type MissingRateError struct {
	VehicleID models.VehicleID
	Fields    []string
}

func (e *MissingRateError) Error() string {
	return fmt.Sprintf("vehicle %s is missing %s rate", e.VehicleID, strings.Join(e.Fields, ", "))
}
