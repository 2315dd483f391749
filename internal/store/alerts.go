package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/deepseaguard/insight-engine/internal/models"
)

// AlertFilter narrows alert queries; zero values mean no filter.
type AlertFilter struct {
	VehicleID string
	Kind      models.AlertKind
}

// clause renders the filter as a WHERE fragment with positional parameters
// starting at first. Empty filters render to an empty fragment.
func (f AlertFilter) clause(first int) (string, []any) {
	var conds []string
	var args []any
	if f.VehicleID != "" {
		conds = append(conds, fmt.Sprintf("auv_id = $%d", first+len(args)))
		args = append(args, f.VehicleID)
	}
	if f.Kind != "" {
		conds = append(conds, fmt.Sprintf("type = $%d", first+len(args)))
		args = append(args, string(f.Kind))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// CreateAlert inserts an alert in its own transaction, honouring
// active-duplicate suppression: an existing active row for the same
// (vehicle, kind) wins and its id is returned with deduped=true.
func (s *Store) CreateAlert(ctx context.Context, draft models.AlertDraft) (alertID int64, deduped bool, err error) {
	err = s.withTx(ctx, func(tx pgx.Tx) error {
		alertID, deduped, err = createAlert(ctx, tx, draft)
		return err
	})
	if err != nil {
		return 0, false, err
	}
	return alertID, deduped, nil
}

// createAlert is the single creation path shared by every alert kind. It
// runs inside the caller's transaction. The partial unique index on active
// (auv_id, type) pairs backstops concurrent creators; losing the race reads
// back the winner's id.
func createAlert(ctx context.Context, tx pgx.Tx, draft models.AlertDraft) (int64, bool, error) {
	existing, err := selectActiveAlert(ctx, tx, draft.VehicleID, draft.Kind)
	if err != nil {
		return 0, false, err
	}
	if existing != 0 {
		return existing, true, nil
	}

	payload := draft.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, false, fmt.Errorf("encoding alert payload: %w", err)
	}

	var id int64
	err = tx.QueryRow(ctx,
		`INSERT INTO alerts (auv_id, type, severity, message, payload, status)
		 VALUES ($1, $2, $3, $4, $5::jsonb, 'active')
		 ON CONFLICT (auv_id, type) WHERE status = 'active' DO NOTHING
		 RETURNING id`,
		draft.VehicleID, string(draft.Kind), string(draft.Severity), draft.Message, string(body),
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		existing, err := selectActiveAlert(ctx, tx, draft.VehicleID, draft.Kind)
		if err != nil {
			return 0, false, err
		}
		return existing, true, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("inserting %s alert for %s: %w", draft.Kind, draft.VehicleID, err)
	}
	return id, false, nil
}

func selectActiveAlert(ctx context.Context, tx pgx.Tx, vehicleID string, kind models.AlertKind) (int64, error) {
	var id int64
	err := tx.QueryRow(ctx,
		`SELECT id FROM alerts
		  WHERE auv_id = $1 AND type = $2 AND status = 'active'
		  ORDER BY id
		  LIMIT 1`,
		vehicleID, string(kind),
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("looking up active %s alert for %s: %w", kind, vehicleID, err)
	}
	return id, nil
}

// ListAlerts returns the newest alerts matching the filter.
func (s *Store) ListAlerts(ctx context.Context, filter AlertFilter, limit int) ([]models.Alert, error) {
	where, args := filter.clause(1)
	args = append(args, limit)
	query := fmt.Sprintf(
		`SELECT id, auv_id, type, severity, status, message, started_at
		   FROM alerts%s
		  ORDER BY started_at DESC, id DESC
		  LIMIT $%d`,
		where, len(args),
	)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying alerts: %w", err)
	}
	defer rows.Close()

	var out []models.Alert
	for rows.Next() {
		var a models.Alert
		if err := rows.Scan(&a.ID, &a.VehicleID, &a.Kind, &a.Severity, &a.Status, &a.Message, &a.StartedAt); err != nil {
			return nil, fmt.Errorf("scanning alert row: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating alerts: %w", err)
	}
	return out, nil
}

// AlertStats aggregates totals, the trailing-window count, the newest
// started_at, and per-kind counts, all under the same filter and read
// session.
func (s *Store) AlertStats(ctx context.Context, filter AlertFilter, since time.Time) (models.AlertStats, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return models.AlertStats{}, fmt.Errorf("acquiring connection for alert stats: %w", err)
	}
	defer conn.Release()

	where, args := filter.clause(2)
	stats := models.AlertStats{ByKind: map[string]int64{}}

	totalsQuery := fmt.Sprintf(
		`SELECT COUNT(*),
		        COUNT(*) FILTER (WHERE started_at >= $1),
		        MAX(started_at)
		   FROM alerts%s`,
		where,
	)
	totalsArgs := append([]any{since}, args...)
	if err := conn.QueryRow(ctx, totalsQuery, totalsArgs...).Scan(&stats.TotalAlerts, &stats.AlertsInWindow, &stats.LatestAlert); err != nil {
		return models.AlertStats{}, fmt.Errorf("aggregating alerts: %w", err)
	}

	where, args = filter.clause(1)
	byKindQuery := fmt.Sprintf(`SELECT type, COUNT(*) FROM alerts%s GROUP BY type`, where)
	rows, err := conn.Query(ctx, byKindQuery, args...)
	if err != nil {
		return models.AlertStats{}, fmt.Errorf("grouping alerts by kind: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var kind string
		var count int64
		if err := rows.Scan(&kind, &count); err != nil {
			return models.AlertStats{}, fmt.Errorf("scanning alert group: %w", err)
		}
		stats.ByKind[kind] = count
	}
	if err := rows.Err(); err != nil {
		return models.AlertStats{}, fmt.Errorf("iterating alert groups: %w", err)
	}
	return stats, nil
}
