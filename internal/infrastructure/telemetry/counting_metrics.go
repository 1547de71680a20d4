// Package telemetry provides OpenTelemetry integration for metrics collection.
package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// CountingMetrics provides business metrics for the counting platform.
// It tracks sector claims, recorded counts, and inventory closing activity.
type CountingMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	// Counter metrics (monotonically increasing)
	sectorClaimTotal    *Counter
	countRecordedTotal  *Counter
	sectorFinalizeTotal *Counter
	overrideTotal       *Counter
	inventoryCloseTotal *Counter

	// Gauge metrics (point-in-time values)
	openSectorCount    *Gauge
	pendingSectorCount *Gauge

	// Periodic collector
	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once

	// Data provider for periodic collection
	sectorProvider SectorMetricsProvider
}

// SectorMetricsProvider provides sector state data for periodic metrics
// collection. The interface keeps the telemetry layer from depending on the
// counting domain directly.
type SectorMetricsProvider interface {
	// GetOpenSectorCount returns the number of IN_PROGRESS sectors for a tenant
	GetOpenSectorCount(ctx context.Context, tenantID uuid.UUID) (int64, error)

	// GetPendingSectorCount returns the number of PENDING sectors in active inventories for a tenant
	GetPendingSectorCount(ctx context.Context, tenantID uuid.UUID) (int64, error)
}

// CountingMetricsConfig holds configuration for counting metrics.
type CountingMetricsConfig struct {
	Meter           metric.Meter
	Logger          *zap.Logger
	CollectInterval time.Duration // Default: 5 minutes
	SectorProvider  SectorMetricsProvider
}

// NewCountingMetrics creates a new CountingMetrics instance.
func NewCountingMetrics(cfg CountingMetricsConfig) (*CountingMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	cm := &CountingMetrics{
		meter:          cfg.Meter,
		logger:         logger,
		stopChan:       make(chan struct{}),
		sectorProvider: cfg.SectorProvider,
	}

	// Initialize counter metrics
	var err error

	cm.sectorClaimTotal, err = NewCounter(
		cfg.Meter,
		"tally_sector_claim_total",
		"Total number of sector open attempts by outcome",
		"{claims}",
	)
	if err != nil {
		return nil, err
	}

	cm.countRecordedTotal, err = NewCounter(
		cfg.Meter,
		"tally_count_recorded_total",
		"Total number of count entries recorded",
		"{entries}",
	)
	if err != nil {
		return nil, err
	}

	cm.sectorFinalizeTotal, err = NewCounter(
		cfg.Meter,
		"tally_sector_finalized_total",
		"Total number of sectors finalized",
		"{sectors}",
	)
	if err != nil {
		return nil, err
	}

	cm.overrideTotal, err = NewCounter(
		cfg.Meter,
		"tally_finalize_override_total",
		"Total number of forced inventory closings with open sectors",
		"{overrides}",
	)
	if err != nil {
		return nil, err
	}

	cm.inventoryCloseTotal, err = NewCounter(
		cfg.Meter,
		"tally_inventory_closed_total",
		"Total number of inventories closed",
		"{inventories}",
	)
	if err != nil {
		return nil, err
	}

	// Gauge metrics
	cm.openSectorCount, err = NewGauge(
		cfg.Meter,
		"tally_open_sectors",
		"Current number of sectors held open by operators",
		"{sectors}",
	)
	if err != nil {
		return nil, err
	}

	cm.pendingSectorCount, err = NewGauge(
		cfg.Meter,
		"tally_pending_sectors",
		"Current number of sectors waiting to be counted",
		"{sectors}",
	)
	if err != nil {
		return nil, err
	}

	return cm, nil
}

// =============================================================================
// Sector Metrics
// =============================================================================

// ClaimOutcome represents the result of a sector open attempt for metrics labeling.
type ClaimOutcome string

const (
	ClaimOutcomeGranted  ClaimOutcome = "granted"
	ClaimOutcomeConflict ClaimOutcome = "conflict"
)

// RecordSectorClaim records a sector open attempt.
// This should be called from the application layer for every open attempt,
// whether the claim was granted or lost to a concurrent operator.
func (cm *CountingMetrics) RecordSectorClaim(ctx context.Context, tenantID uuid.UUID, outcome ClaimOutcome) {
	cm.sectorClaimTotal.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
		AttrClaimOutcome.String(string(outcome)),
	)
}

// RecordSectorFinalized records a sector finalization.
func (cm *CountingMetrics) RecordSectorFinalized(ctx context.Context, tenantID uuid.UUID) {
	cm.sectorFinalizeTotal.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
	)
}

// =============================================================================
// Count Entry Metrics
// =============================================================================

// RecordCountsSubmitted records a batch of count entries accepted for an inventory.
func (cm *CountingMetrics) RecordCountsSubmitted(ctx context.Context, tenantID uuid.UUID, entries int64) {
	cm.countRecordedTotal.Add(ctx, entries,
		AttrTenantID.String(tenantID.String()),
	)
}

// =============================================================================
// Closing Metrics
// =============================================================================

// RecordInventoryClosed records an inventory closing. forced indicates the
// closing overrode open sectors with a justification.
func (cm *CountingMetrics) RecordInventoryClosed(ctx context.Context, tenantID uuid.UUID, forced bool) {
	cm.inventoryCloseTotal.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
	)
	if forced {
		cm.overrideTotal.Inc(ctx,
			AttrTenantID.String(tenantID.String()),
		)
	}
}

// =============================================================================
// Periodic Collection
// =============================================================================

// TenantProvider provides tenant IDs for periodic metrics collection.
type TenantProvider interface {
	GetActiveTenantIDs(ctx context.Context) ([]uuid.UUID, error)
}

// StartPeriodicCollection starts periodic collection of gauge metrics.
// It collects sector state metrics every interval (default: 5 minutes).
// This is non-blocking - use Stop() to stop collection.
func (cm *CountingMetrics) StartPeriodicCollection(ctx context.Context, tenantProvider TenantProvider, interval time.Duration) {
	cm.collectOnce.Do(func() {
		if interval <= 0 {
			interval = 5 * time.Minute
		}

		go cm.runPeriodicCollection(ctx, tenantProvider, interval)
	})
}

// runPeriodicCollection runs the periodic collection loop.
func (cm *CountingMetrics) runPeriodicCollection(ctx context.Context, tenantProvider TenantProvider, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Collect immediately on start
	cm.collectSectorMetrics(ctx, tenantProvider)

	for {
		select {
		case <-cm.stopChan:
			cm.logger.Info("Stopping periodic counting metrics collection")
			return
		case <-ctx.Done():
			cm.logger.Info("Context cancelled, stopping periodic counting metrics collection")
			return
		case <-ticker.C:
			cm.collectSectorMetrics(ctx, tenantProvider)
		}
	}
}

// collectSectorMetrics collects sector gauge metrics for all tenants.
func (cm *CountingMetrics) collectSectorMetrics(ctx context.Context, tenantProvider TenantProvider) {
	if cm.sectorProvider == nil {
		cm.logger.Debug("No sector provider configured, skipping sector metrics collection")
		return
	}

	tenantIDs, err := tenantProvider.GetActiveTenantIDs(ctx)
	if err != nil {
		cm.logger.Error("Failed to get tenant IDs for metrics collection", zap.Error(err))
		return
	}

	for _, tenantID := range tenantIDs {
		cm.collectTenantSectorMetrics(ctx, tenantID)
	}
}

// collectTenantSectorMetrics collects sector metrics for a single tenant.
func (cm *CountingMetrics) collectTenantSectorMetrics(ctx context.Context, tenantID uuid.UUID) {
	openCount, err := cm.sectorProvider.GetOpenSectorCount(ctx, tenantID)
	if err != nil {
		cm.logger.Warn("Failed to get open sector count for tenant",
			zap.String("tenant_id", tenantID.String()),
			zap.Error(err),
		)
	} else {
		cm.openSectorCount.Record(ctx, openCount,
			AttrTenantID.String(tenantID.String()),
		)
	}

	pendingCount, err := cm.sectorProvider.GetPendingSectorCount(ctx, tenantID)
	if err != nil {
		cm.logger.Warn("Failed to get pending sector count for tenant",
			zap.String("tenant_id", tenantID.String()),
			zap.Error(err),
		)
	} else {
		cm.pendingSectorCount.Record(ctx, pendingCount,
			AttrTenantID.String(tenantID.String()),
		)
	}
}

// Stop stops the periodic collection.
func (cm *CountingMetrics) Stop() {
	cm.stopOnce.Do(func() {
		close(cm.stopChan)
	})
}

// =============================================================================
// Error Types
// =============================================================================

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewCountingMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}

// =============================================================================
// Attribute Key Constants
// =============================================================================

// Counting metrics attribute keys not already defined in metrics.go
var (
	AttrClaimOutcome = attribute.Key("outcome")
)
