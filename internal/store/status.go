package store

import (
	"context"
	"fmt"

	"github.com/deepseaguard/insight-engine/internal/models"
)

// OverdueVehicles returns every vehicle whose last telemetry is at least
// budgetSeconds old, by the store's clock.
func (s *Store) OverdueVehicles(ctx context.Context, budgetSeconds int) ([]models.VehicleStatus, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT auv_id, last_seen
		   FROM auv_status
		  WHERE now() - last_seen >= make_interval(secs => $1)`,
		budgetSeconds,
	)
	if err != nil {
		return nil, fmt.Errorf("querying overdue vehicles: %w", err)
	}
	defer rows.Close()

	var out []models.VehicleStatus
	for rows.Next() {
		var vs models.VehicleStatus
		if err := rows.Scan(&vs.VehicleID, &vs.LastSeen); err != nil {
			return nil, fmt.Errorf("scanning vehicle status: %w", err)
		}
		out = append(out, vs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating vehicle status: %w", err)
	}
	return out, nil
}
