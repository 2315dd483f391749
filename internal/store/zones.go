package store

import (
	"context"
	"fmt"
)

// ZoneUpsert is one zone definition from the loader. Geometry arrives as a
// GeoJSON geometry object and is repaired and reprojected server-side.
type ZoneUpsert struct {
	ZoneID  string
	Name    string
	Kind    string
	GeoJSON []byte
}

// UpsertZone writes or replaces a zone by zone_id. ST_MakeValid repairs
// self-intersecting rings before the geometry is stored.
func (s *Store) UpsertZone(ctx context.Context, z ZoneUpsert) error {
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO zones (zone_id, name, kind, geom)
		 VALUES ($1, $2, $3, ST_SetSRID(ST_MakeValid(ST_GeomFromGeoJSON($4)), 4326))
		 ON CONFLICT (zone_id) DO UPDATE
		    SET name = EXCLUDED.name,
		        kind = EXCLUDED.kind,
		        geom = EXCLUDED.geom`,
		z.ZoneID, z.Name, z.Kind, string(z.GeoJSON),
	); err != nil {
		return fmt.Errorf("upserting zone %s: %w", z.ZoneID, err)
	}
	return nil
}

// CountZones reports how many zones are loaded, for the loader's summary.
func (s *Store) CountZones(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM zones`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting zones: %w", err)
	}
	return n, nil
}
