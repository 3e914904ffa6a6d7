package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/langchou/rentdesk/internal/models"
)

// VehicleRepository 车辆目录仓库
type VehicleRepository struct {
	db *DB
}

// NewVehicleRepository 创建车辆目录仓库
func NewVehicleRepository(db *DB) *VehicleRepository {
	return &VehicleRepository{db: db}
}

// ListVehicles 按录入顺序返回全部车辆
func (r *VehicleRepository) ListVehicles(ctx context.Context) ([]models.Vehicle, error) {
	query := `
		SELECT id, make, model, type, hourly_rate::text, daily_rate::text, weekly_rate::text
		FROM vehicles
		ORDER BY position
	`
	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query vehicles: %w", err)
	}
	defer rows.Close()

	var vehicles []models.Vehicle
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, err
		}
		vehicles = append(vehicles, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vehicles: %w", err)
	}

	return vehicles, nil
}

// Upsert 写入或更新车辆，保留原有排序
func (r *VehicleRepository) Upsert(ctx context.Context, vehicles []models.Vehicle) error {
	query := `
		INSERT INTO vehicles (id, make, model, type, hourly_rate, daily_rate, weekly_rate, updated_at)
		VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7::numeric, NOW())
		ON CONFLICT (id) DO UPDATE SET
			make = EXCLUDED.make,
			model = EXCLUDED.model,
			type = EXCLUDED.type,
			hourly_rate = EXCLUDED.hourly_rate,
			daily_rate = EXCLUDED.daily_rate,
			weekly_rate = EXCLUDED.weekly_rate,
			updated_at = NOW()
	`

	batch := &pgx.Batch{}
	for _, v := range vehicles {
		batch.Queue(query,
			v.ID.String(),
			v.Make,
			v.Model,
			v.Type,
			rateText(v.Rates.Hourly),
			rateText(v.Rates.Daily),
			rateText(v.Rates.Weekly),
		)
	}

	results := r.db.Pool.SendBatch(ctx, batch)
	defer results.Close()

	for _, v := range vehicles {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("upsert vehicle %s: %w", v.ID, err)
		}
	}
	return nil
}

// Count 车辆数量
func (r *VehicleRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM vehicles`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count vehicles: %w", err)
	}
	return n, nil
}

func scanVehicle(row pgx.Row) (*models.Vehicle, error) {
	v := &models.Vehicle{}
	var id string
	var hourly, daily, weekly *string
	if err := row.Scan(&id, &v.Make, &v.Model, &v.Type, &hourly, &daily, &weekly); err != nil {
		return nil, fmt.Errorf("scan vehicle: %w", err)
	}
	v.ID = models.VehicleID(id)

	var err error
	if v.Rates.Hourly, err = parseNullableRate(hourly); err != nil {
		return nil, err
	}
	if v.Rates.Daily, err = parseNullableRate(daily); err != nil {
		return nil, err
	}
	if v.Rates.Weekly, err = parseNullableRate(weekly); err != nil {
		return nil, err
	}
	return v, nil
}

func parseNullableRate(s *string) (*decimal.Decimal, error) {
	if s == nil {
		return nil, nil
	}
	return models.ParseRate(*s)
}

func rateText(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}
