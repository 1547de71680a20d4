package telemetry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
)

// manualMeter returns a meter backed by a manual reader plus a collect
// function that snapshots everything recorded so far.
func manualMeter(t *testing.T, scope string) (metric.Meter, func() metricdata.ResourceMetrics) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	collect := func() metricdata.ResourceMetrics {
		var rm metricdata.ResourceMetrics
		require.NoError(t, reader.Collect(context.Background(), &rm))
		return rm
	}
	return provider.Meter(scope), collect
}

func hasMetric(rm metricdata.ResourceMetrics, name string) bool {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return true
			}
		}
	}
	return false
}

func TestDefaultDBMetricsConfig(t *testing.T) {
	cfg := DefaultDBMetricsConfig()

	assert.True(t, cfg.Enabled)
	assert.Equal(t, 200*time.Millisecond, cfg.SlowQueryThreshold)
	assert.Equal(t, 15*time.Second, cfg.PoolStatsInterval)
}

func TestNewDBMetrics(t *testing.T) {
	meter, _ := manualMeter(t, "test")

	t.Run("creates all instruments", func(t *testing.T) {
		metrics, err := NewDBMetrics(meter, DefaultDBMetricsConfig(), zap.NewNop())
		require.NoError(t, err)
		require.NotNil(t, metrics)

		assert.NotNil(t, metrics.poolConnections)
		assert.NotNil(t, metrics.poolConnectionsMax)
		assert.NotNil(t, metrics.queryTotal)
		assert.NotNil(t, metrics.queryDuration)
		assert.NotNil(t, metrics.slowQueryTotal)
	})

	t.Run("applies default config values", func(t *testing.T) {
		metrics, err := NewDBMetrics(meter, DBMetricsConfig{}, zap.NewNop())
		require.NoError(t, err)

		assert.Equal(t, 200*time.Millisecond, metrics.config.SlowQueryThreshold)
		assert.Equal(t, 15*time.Second, metrics.config.PoolStatsInterval)
	})

	t.Run("uses nop logger when nil", func(t *testing.T) {
		metrics, err := NewDBMetrics(meter, DefaultDBMetricsConfig(), nil)
		require.NoError(t, err)
		require.NotNil(t, metrics.logger)
	})
}

func TestDBMetrics_RecordQuery(t *testing.T) {
	ctx := context.Background()

	t.Run("records query count and duration", func(t *testing.T) {
		meter, collect := manualMeter(t, "test_query")
		metrics, err := NewDBMetrics(meter, DefaultDBMetricsConfig(), zap.NewNop())
		require.NoError(t, err)

		metrics.RecordQuery(ctx, "SELECT", "counting_sectors", 50*time.Millisecond, nil)

		rm := collect()
		assert.True(t, hasMetric(rm, "db_query_total"))
		assert.True(t, hasMetric(rm, "db_query_duration_seconds"))
	})

	t.Run("records slow query when threshold exceeded", func(t *testing.T) {
		meter, collect := manualMeter(t, "test_slow")
		metrics, err := NewDBMetrics(meter, DBMetricsConfig{
			Enabled:            true,
			SlowQueryThreshold: 100 * time.Millisecond,
		}, zap.NewNop())
		require.NoError(t, err)

		metrics.RecordQuery(ctx, "SELECT", "counting_count_entries", 250*time.Millisecond, nil)

		assert.True(t, hasMetric(collect(), "db_slow_query_total"))
	})

	t.Run("fast query leaves slow counter at zero", func(t *testing.T) {
		meter, collect := manualMeter(t, "test_fast")
		metrics, err := NewDBMetrics(meter, DBMetricsConfig{
			Enabled:            true,
			SlowQueryThreshold: 200 * time.Millisecond,
		}, zap.NewNop())
		require.NoError(t, err)

		metrics.RecordQuery(ctx, "SELECT", "counting_sectors", 50*time.Millisecond, nil)

		for _, sm := range collect().ScopeMetrics {
			for _, m := range sm.Metrics {
				if m.Name == "db_slow_query_total" {
					sum := m.Data.(metricdata.Sum[int64])
					for _, dp := range sum.DataPoints {
						assert.Equal(t, int64(0), dp.Value)
					}
				}
			}
		}
	})

	t.Run("normalizes operation case and empty values", func(t *testing.T) {
		meter, collect := manualMeter(t, "test_normalize")
		metrics, err := NewDBMetrics(meter, DBMetricsConfig{
			Enabled:            true,
			SlowQueryThreshold: 50 * time.Millisecond,
		}, zap.NewNop())
		require.NoError(t, err)

		metrics.RecordQuery(ctx, "select", "counting_sectors", 10*time.Millisecond, nil)
		metrics.RecordQuery(ctx, "Insert", "counting_sectors", 10*time.Millisecond, nil)
		// Empty operation becomes UNKNOWN, empty table on a slow query
		// becomes "unknown".
		metrics.RecordQuery(ctx, "", "counting_sectors", 10*time.Millisecond, nil)
		metrics.RecordQuery(ctx, "SELECT", "", 100*time.Millisecond, nil)

		rm := collect()
		assert.True(t, hasMetric(rm, "db_query_total"))
		assert.True(t, hasMetric(rm, "db_slow_query_total"))
	})
}

func TestDBMetrics_PoolStats(t *testing.T) {
	ctx := context.Background()

	t.Run("collects pool stats periodically", func(t *testing.T) {
		meter, collect := manualMeter(t, "test_pool")

		mockDB, _, err := sqlmock.New()
		require.NoError(t, err)
		defer mockDB.Close()

		metrics, err := NewDBMetrics(meter, DBMetricsConfig{
			Enabled:           true,
			PoolStatsInterval: 50 * time.Millisecond,
		}, zap.NewNop())
		require.NoError(t, err)

		metrics.SetSQLDB(mockDB)

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		metrics.StartPoolStatsCollection(ctx)
		time.Sleep(100 * time.Millisecond)
		metrics.Stop()

		rm := collect()
		assert.True(t, hasMetric(rm, "db_pool_connections_max"))
		assert.True(t, hasMetric(rm, "db_pool_connections"))
	})

	t.Run("does nothing when sqlDB not set", func(t *testing.T) {
		meter, _ := manualMeter(t, "test_no_db")
		metrics, err := NewDBMetrics(meter, DefaultDBMetricsConfig(), zap.NewNop())
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		metrics.StartPoolStatsCollection(ctx)
		time.Sleep(50 * time.Millisecond)
		metrics.Stop()
	})

	t.Run("stops on context cancellation", func(t *testing.T) {
		meter, _ := manualMeter(t, "test_ctx_cancel")

		mockDB, _, err := sqlmock.New()
		require.NoError(t, err)
		defer mockDB.Close()

		metrics, err := NewDBMetrics(meter, DBMetricsConfig{
			Enabled:           true,
			PoolStatsInterval: time.Second,
		}, zap.NewNop())
		require.NoError(t, err)

		metrics.SetSQLDB(mockDB)

		ctx, cancel := context.WithCancel(ctx)
		metrics.StartPoolStatsCollection(ctx)
		cancel()
		metrics.Stop()
	})
}

func TestDBMetrics_Stop(t *testing.T) {
	meter, _ := manualMeter(t, "test_stop")

	mockDB, _, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	metrics, err := NewDBMetrics(meter, DBMetricsConfig{
		Enabled:           true,
		PoolStatsInterval: 100 * time.Millisecond,
	}, zap.NewNop())
	require.NoError(t, err)

	metrics.SetSQLDB(mockDB)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics.StartPoolStatsCollection(ctx)

	done := make(chan struct{})
	go func() {
		metrics.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop() blocked for too long")
	}

	// Further calls are no-ops.
	for i := 0; i < 2; i++ {
		assert.NotPanics(t, metrics.Stop)
	}
}

func TestDBMetricsPlugin(t *testing.T) {
	meter, _ := manualMeter(t, "test_plugin")
	metrics, err := NewDBMetrics(meter, DefaultDBMetricsConfig(), zap.NewNop())
	require.NoError(t, err)

	plugin := NewDBMetricsPlugin(metrics, zap.NewNop())
	assert.Equal(t, "db_metrics", plugin.Name())

	db := setupTestDB(t)
	require.NoError(t, plugin.Initialize(db))

	// Exercise the callbacks through a real statement so the before/after
	// hooks run end to end.
	require.NoError(t, db.Create(&countedItem{ProductCode: "SKU-001"}).Error)
}

func TestDetectOperationType(t *testing.T) {
	tests := []struct {
		sql      string
		expected string
	}{
		{"SELECT * FROM counting_sectors", "SELECT"},
		{"select id from counting_sectors", "SELECT"},
		{"  SELECT id FROM counting_sectors", "SELECT"},
		{"INSERT INTO counting_count_entries (product_code) VALUES ('SKU-001')", "INSERT"},
		{"insert into counting_count_entries values (1)", "INSERT"},
		{"UPDATE counting_sectors SET status = 'FINALIZED'", "UPDATE"},
		{"update counting_sectors set status = 'PENDING'", "UPDATE"},
		{"DELETE FROM counting_count_entries WHERE id = 1", "DELETE"},
		{"delete from counting_count_entries", "DELETE"},
		{"CREATE TABLE counting_sectors", "OTHER"},
		{"DROP TABLE counting_sectors", "OTHER"},
		{"TRUNCATE TABLE counting_sectors", "OTHER"},
		{"", "OTHER"},
	}

	for _, tc := range tests {
		t.Run(tc.sql, func(t *testing.T) {
			assert.Equal(t, tc.expected, detectOperationType(tc.sql))
		})
	}
}

func TestRegisterDBMetrics(t *testing.T) {
	logger := zap.NewNop()

	t.Run("returns nil when disabled", func(t *testing.T) {
		metrics, err := RegisterDBMetrics(setupTestDB(t), nil, DBMetricsConfig{Enabled: false}, logger)
		require.NoError(t, err)
		assert.Nil(t, metrics)
	})

	t.Run("returns nil when meter provider is nil", func(t *testing.T) {
		metrics, err := RegisterDBMetrics(setupTestDB(t), nil, DBMetricsConfig{Enabled: true}, logger)
		require.NoError(t, err)
		assert.Nil(t, metrics)
	})

	t.Run("registers metrics when enabled", func(t *testing.T) {
		reader := sdkmetric.NewManualReader()
		sdkProvider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
		t.Cleanup(func() { _ = sdkProvider.Shutdown(context.Background()) })

		mp := &MeterProvider{
			provider: sdkProvider,
			logger:   logger,
			config:   MetricsConfig{Enabled: true},
		}

		metrics, err := RegisterDBMetrics(setupTestDB(t), mp, DBMetricsConfig{
			Enabled:            true,
			SlowQueryThreshold: 200 * time.Millisecond,
			PoolStatsInterval:  15 * time.Second,
		}, logger)

		require.NoError(t, err)
		require.NotNil(t, metrics)
	})
}

func TestDBMetrics_ConcurrentRecordQuery(t *testing.T) {
	ctx := context.Background()
	meter, collect := manualMeter(t, "test_concurrent")
	metrics, err := NewDBMetrics(meter, DefaultDBMetricsConfig(), zap.NewNop())
	require.NoError(t, err)

	operations := []string{"SELECT", "INSERT", "UPDATE", "DELETE"}
	tables := []string{"counting_inventories", "counting_sectors", "counting_count_entries", "counting_product_balances"}

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			metrics.RecordQuery(ctx, operations[i%4], tables[i%4], time.Duration(i)*time.Millisecond, nil)
		}(i)
	}
	wg.Wait()

	assert.True(t, hasMetric(collect(), "db_query_total"))
}

func TestDBMetrics_WithMeter(t *testing.T) {
	ctx := context.Background()
	meter, collect := manualMeter(t, "custom.db.meter")
	metrics, err := NewDBMetrics(meter, DefaultDBMetricsConfig(), zap.NewNop())
	require.NoError(t, err)

	metrics.RecordQuery(ctx, "SELECT", "counting_sectors", 10*time.Millisecond, nil)

	for _, sm := range collect().ScopeMetrics {
		if sm.Scope.Name == "custom.db.meter" {
			assert.NotEmpty(t, sm.Metrics)
			return
		}
	}
	t.Error("metrics not found under custom meter scope")
}
