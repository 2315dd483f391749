package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/deepseaguard/insight-engine/internal/models"
)

// TelemetryInsert carries one parsed record into the store. Optional
// readings stay nil and persist as NULL.
type TelemetryInsert struct {
	VehicleID     string
	Timestamp     time.Time
	ZoneID        *string
	DepthM        *float64
	VelocityKnots *float64
	TemperatureC  *float64
	Turbidity     *float64
	LocationWKT   *string
	Raw           []byte
}

// InsertTelemetry writes one point, populates its geometry from the WKT at
// SRID 4326 when present, and upserts the vehicle's last-seen timestamp,
// all in a single transaction. Returns the new row id.
func (s *Store) InsertTelemetry(ctx context.Context, in TelemetryInsert) (int64, error) {
	var id int64
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		var raw any
		if len(in.Raw) > 0 {
			raw = string(in.Raw)
		}
		err := tx.QueryRow(ctx,
			`INSERT INTO telemetry
			   (auv_id, timestamp, zone_id, depth_m, velocity_knots, temperature_c, turbidity, location_wkt, raw, zone_violation)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::jsonb, NULL)
			 RETURNING id`,
			in.VehicleID, in.Timestamp, in.ZoneID, in.DepthM, in.VelocityKnots, in.TemperatureC, in.Turbidity, in.LocationWKT, raw,
		).Scan(&id)
		if err != nil {
			return fmt.Errorf("inserting telemetry row: %w", err)
		}

		if in.LocationWKT != nil {
			if _, err := tx.Exec(ctx,
				`UPDATE telemetry SET geom = ST_GeomFromText($1, 4326) WHERE id = $2`,
				*in.LocationWKT, id,
			); err != nil {
				return fmt.Errorf("populating telemetry geometry: %w", err)
			}
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO auv_status (auv_id, last_seen)
			 VALUES ($1, $2)
			 ON CONFLICT (auv_id) DO UPDATE SET last_seen = EXCLUDED.last_seen`,
			in.VehicleID, in.Timestamp,
		); err != nil {
			return fmt.Errorf("upserting vehicle status: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// TelemetryVehicleZone reads the vehicle and assigned zone of one point.
func (s *Store) TelemetryVehicleZone(ctx context.Context, telemetryID int64) (string, *string, error) {
	var vehicleID string
	var zoneID *string
	err := s.pool.QueryRow(ctx,
		`SELECT auv_id, zone_id FROM telemetry WHERE id = $1`,
		telemetryID,
	).Scan(&vehicleID, &zoneID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil, ErrNotFound
	}
	if err != nil {
		return "", nil, fmt.Errorf("reading telemetry %d: %w", telemetryID, err)
	}
	return vehicleID, zoneID, nil
}

// PointInAssignedZone asks PostGIS whether the point's geometry lies inside
// the zone's geometry. known is false when the zone is missing or either
// geometry is NULL; the caller then makes no decision.
func (s *Store) PointInAssignedZone(ctx context.Context, telemetryID int64, zoneID string) (contained, known bool, err error) {
	var inside *bool
	err = s.pool.QueryRow(ctx,
		`SELECT ST_Contains(z.geom, t.geom)
		   FROM telemetry t
		   JOIN zones z ON z.zone_id = $2
		  WHERE t.id = $1`,
		telemetryID, zoneID,
	).Scan(&inside)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, false, nil
	}
	if err != nil {
		return false, false, fmt.Errorf("testing containment for telemetry %d in zone %s: %w", telemetryID, zoneID, err)
	}
	if inside == nil {
		return false, false, nil
	}
	return *inside, true, nil
}

// ClearZoneViolation resets the violation state after a point lands inside
// its zone again.
func (s *Store) ClearZoneViolation(ctx context.Context, telemetryID int64) error {
	if _, err := s.pool.Exec(ctx,
		`UPDATE telemetry SET zone_violation = NULL WHERE id = $1`,
		telemetryID,
	); err != nil {
		return fmt.Errorf("clearing zone violation on telemetry %d: %w", telemetryID, err)
	}
	return nil
}

// MarkZoneViolation stamps the point as outside its zone and creates the
// matching alert in the same transaction, honouring duplicate suppression.
func (s *Store) MarkZoneViolation(ctx context.Context, telemetryID int64, draft models.AlertDraft) (alertID int64, deduped bool, err error) {
	err = s.withTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`UPDATE telemetry SET zone_violation = 'outside' WHERE id = $1`,
			telemetryID,
		); err != nil {
			return fmt.Errorf("marking zone violation on telemetry %d: %w", telemetryID, err)
		}
		alertID, deduped, err = createAlert(ctx, tx, draft)
		return err
	})
	if err != nil {
		return 0, false, err
	}
	return alertID, deduped, nil
}

// TelemetryWindow returns up to limit points for one vehicle inside the
// trailing window, oldest first.
func (s *Store) TelemetryWindow(ctx context.Context, vehicleID string, since time.Time, limit int) ([]models.TelemetryRow, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, auv_id, timestamp, temperature_c, depth_m, velocity_knots, location_wkt
		   FROM telemetry
		  WHERE auv_id = $1 AND timestamp >= $2
		  ORDER BY timestamp ASC
		  LIMIT $3`,
		vehicleID, since, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying telemetry window for %s: %w", vehicleID, err)
	}
	defer rows.Close()

	var out []models.TelemetryRow
	for rows.Next() {
		var row models.TelemetryRow
		if err := rows.Scan(&row.ID, &row.VehicleID, &row.Timestamp, &row.TemperatureC, &row.DepthM, &row.VelocityKnots, &row.LocationWKT); err != nil {
			return nil, fmt.Errorf("scanning telemetry row: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating telemetry window: %w", err)
	}
	return out, nil
}
