// Package scanner detects vehicles that have gone silent beyond the
// configured budget and raises dead_auv alerts for them.
package scanner

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/deepseaguard/insight-engine/internal/alerting"
	"github.com/deepseaguard/insight-engine/internal/metrics"
	"github.com/deepseaguard/insight-engine/internal/models"
)

const eventBuffer = 64

// StatusStore reads the last-seen bookkeeping.
type StatusStore interface {
	OverdueVehicles(ctx context.Context, budgetSeconds int) ([]models.VehicleStatus, error)
}

// AlertWriter persists alert drafts with duplicate suppression.
type AlertWriter interface {
	Create(ctx context.Context, draft models.AlertDraft) (alertID int64, deduped bool, err error)
}

// Scanner polls the store for overdue vehicles. Every overdue vehicle
// yields one event per tick; duplicate suppression in the alert writer
// keeps the persisted state at one active alert per vehicle.
type Scanner struct {
	store    StatusStore
	alerts   AlertWriter
	budget   time.Duration
	interval time.Duration

	events chan models.DeadVehicleEvent
}

// New returns a scanner with the given silence budget and tick interval.
func New(store StatusStore, alerts AlertWriter, budget, interval time.Duration) *Scanner {
	return &Scanner{
		store:    store,
		alerts:   alerts,
		budget:   budget,
		interval: interval,
		events:   make(chan models.DeadVehicleEvent, eventBuffer),
	}
}

// Events is the stream of overdue-vehicle notifications. It is closed when
// Run returns, which lets consumers drain with a plain range loop.
func (s *Scanner) Events() <-chan models.DeadVehicleEvent {
	return s.events
}

// Run scans immediately and then every interval until ctx is cancelled.
// Scan failures are logged and the loop stays live.
func (s *Scanner) Run(ctx context.Context) error {
	defer close(s.events)

	log.Info().
		Dur("budget", s.budget).
		Dur("interval", s.interval).
		Msg("Dead vehicle scanner started")

	for {
		s.scan(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.interval):
		}
	}
}

func (s *Scanner) scan(ctx context.Context) {
	metrics.RecordScannerTick()

	budgetSeconds := int(s.budget / time.Second)
	overdue, err := s.store.OverdueVehicles(ctx, budgetSeconds)
	if err != nil {
		log.Error().Err(err).Msg("Dead vehicle scan failed")
		return
	}
	if len(overdue) == 0 {
		return
	}

	log.Debug().Int("overdue", len(overdue)).Msg("Overdue vehicles found")

	for _, v := range overdue {
		draft := alerting.DeadVehicleDraft(v.VehicleID, v.LastSeen, budgetSeconds)
		if _, _, err := s.alerts.Create(ctx, draft); err != nil {
			log.Error().Err(err).Str("auv_id", v.VehicleID).Msg("Dead vehicle alert write failed")
		}

		select {
		case s.events <- models.NewDeadVehicleEvent(v.VehicleID, v.LastSeen, budgetSeconds):
		case <-ctx.Done():
			return
		}
	}
}
