package pricing

import "github.com/langchou/rentdesk/internal/models"

// FilterByType 按车型筛选，保持目录顺序；"All" 返回原列表
func FilterByType(vehicles []models.Vehicle, vehicleType string) []models.Vehicle {
	if vehicleType == models.AllTypes {
		return vehicles
	}

	filtered := make([]models.Vehicle, 0, len(vehicles))
	for _, v := range vehicles {
		if v.Type == vehicleType {
			filtered = append(filtered, v)
		}
	}
	return filtered
}

// VehicleTypes 目录中出现的车型，按首次出现顺序去重
func VehicleTypes(vehicles []models.Vehicle) []string {
	seen := make(map[string]bool)
	types := make([]string, 0)
	for _, v := range vehicles {
		if v.Type == "" || seen[v.Type] {
			continue
		}
		seen[v.Type] = true
		types = append(types, v.Type)
	}
	return types
}

// FindVehicle 按 ID 查找车辆
func FindVehicle(vehicles []models.Vehicle, id models.VehicleID) (*models.Vehicle, bool) {
	for i := range vehicles {
		if vehicles[i].ID == id {
			v := vehicles[i]
			return &v, true
		}
	}
	return nil, false
}
