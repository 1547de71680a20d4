package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type countedItem struct {
	ID          uint   `gorm:"primaryKey"`
	ProductCode string `gorm:"size:64"`
	CreatedAt   time.Time
}

// setupTestDB opens an in-memory SQLite database with the test schema.
func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&countedItem{}))
	return db
}

// recordingTracer returns a tracer provider whose ended spans can be
// inspected through the recorder.
func recordingTracer(t *testing.T) (*sdktrace.TracerProvider, *tracetest.SpanRecorder) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return tp, recorder
}

func enabledTracingConfig() DBTracingConfig {
	return DBTracingConfig{
		Enabled:          true,
		LogFullSQL:       false,
		SlowQueryThresh:  200 * time.Millisecond,
		DBSystem:         "sqlite",
		WithoutVariables: true,
	}
}

func TestDefaultDBTracingConfig(t *testing.T) {
	cfg := DefaultDBTracingConfig()

	assert.False(t, cfg.Enabled)
	assert.Equal(t, 200*time.Millisecond, cfg.SlowQueryThresh)
	assert.Equal(t, "postgresql", cfg.DBSystem)

	// Query text and bind variables stay out of spans unless opted in.
	assert.False(t, cfg.LogFullSQL)
	assert.True(t, cfg.WithoutVariables)
}

func TestNewDBTracingPlugin(t *testing.T) {
	cfg := DefaultDBTracingConfig()
	cfg.Enabled = true

	plugin := NewDBTracingPlugin(cfg, zap.NewNop())
	require.NotNil(t, plugin)
	assert.Equal(t, cfg, plugin.config)
}

func TestDBTracingPlugin_RegisterOtelGorm(t *testing.T) {
	t.Run("disabled is a no-op", func(t *testing.T) {
		cfg := DefaultDBTracingConfig()
		cfg.Enabled = false

		plugin := NewDBTracingPlugin(cfg, zap.NewNop())
		assert.NoError(t, plugin.RegisterOtelGorm(setupTestDB(t)))
	})

	t.Run("enabled registers plugin", func(t *testing.T) {
		plugin := NewDBTracingPlugin(enabledTracingConfig(), zap.NewNop())
		assert.NoError(t, plugin.RegisterOtelGorm(setupTestDB(t)))
	})

	t.Run("full SQL mode registers plugin", func(t *testing.T) {
		cfg := enabledTracingConfig()
		cfg.LogFullSQL = true
		cfg.WithoutVariables = false

		plugin := NewDBTracingPlugin(cfg, zap.NewNop())
		assert.NoError(t, plugin.RegisterOtelGorm(setupTestDB(t)))
	})

	t.Run("double registration fails", func(t *testing.T) {
		db := setupTestDB(t)
		plugin := NewDBTracingPlugin(enabledTracingConfig(), zap.NewNop())

		require.NoError(t, plugin.RegisterOtelGorm(db))
		assert.Error(t, plugin.RegisterOtelGorm(db))
	})
}

func TestDBTracingCallback_RegisterCallbacks(t *testing.T) {
	db := setupTestDB(t)
	callback := NewDBTracingCallback(200 * time.Millisecond)

	assert.NoError(t, callback.RegisterCallbacks(db))

	// GORM replaces callbacks registered under the same name, so a second
	// registration is tolerated regardless of outcome.
	_ = NewDBTracingCallback(100 * time.Millisecond).RegisterCallbacks(db)
}

func TestDBTracingCallback_RowsAffected(t *testing.T) {
	db := setupTestDB(t)
	tp, recorder := recordingTracer(t)

	ctx, span := tp.Tracer("test").Start(context.Background(), "inventory.submit_counts")

	callback := NewDBTracingCallback(200 * time.Millisecond)

	items := []countedItem{{ProductCode: "SKU-001"}, {ProductCode: "SKU-002"}, {ProductCode: "SKU-003"}}
	result := db.WithContext(ctx).Create(&items)
	require.NoError(t, result.Error)

	callback.AfterCallback(result.Statement.DB)
	span.End()

	spans := recorder.Ended()
	require.NotEmpty(t, spans)

	foundRows := false
	for _, attr := range spans[0].Attributes() {
		if attr.Key == "db.rows_affected" {
			foundRows = true
			assert.Equal(t, int64(3), attr.Value.AsInt64())
		}
	}
	assert.True(t, foundRows, "db.rows_affected attribute should be present")
}

func TestDBTracingCallback_TableAttribute(t *testing.T) {
	db := setupTestDB(t)
	tp, recorder := recordingTracer(t)

	ctx, span := tp.Tracer("test").Start(context.Background(), "inventory.submit_counts")

	callback := NewDBTracingCallback(200 * time.Millisecond)

	result := db.WithContext(ctx).Create(&countedItem{ProductCode: "SKU-001"})
	require.NoError(t, result.Error)

	callback.AfterCallback(result.Statement.DB)
	span.End()

	spans := recorder.Ended()
	require.NotEmpty(t, spans)

	for _, attr := range spans[0].Attributes() {
		if attr.Key == "db.sql.table" {
			assert.Equal(t, "counted_items", attr.Value.AsString())
		}
	}
}

func TestDBTracingCallback_SlowQuery(t *testing.T) {
	// A 1ns threshold makes every query count as slow.
	callback := NewDBTracingCallback(1 * time.Nanosecond)

	db := setupTestDB(t)
	tp, recorder := recordingTracer(t)

	ctx, span := tp.Tracer("test").Start(context.Background(), "divergence.compute")
	ctx = WithQueryStartTime(ctx)
	time.Sleep(time.Millisecond)

	db = db.WithContext(ctx)
	var item countedItem
	db.First(&item)

	callback.AfterCallback(db.Statement.DB)
	span.End()

	spans := recorder.Ended()
	require.NotEmpty(t, spans)

	for _, attr := range spans[0].Attributes() {
		if attr.Key == "db.slow_query" {
			assert.True(t, attr.Value.AsBool())
		}
	}
	for _, event := range spans[0].Events() {
		if event.Name == "slow_query_warning" {
			for _, attr := range event.Attributes {
				if attr.Key == "duration_ms" {
					assert.Positive(t, attr.Value.AsInt64())
				}
				if attr.Key == "threshold_ms" {
					assert.Equal(t, int64(0), attr.Value.AsInt64())
				}
			}
		}
	}
}

func TestDBTracingCallback_RecordNotFoundIsNotAnError(t *testing.T) {
	db := setupTestDB(t)
	tp, recorder := recordingTracer(t)

	ctx, span := tp.Tracer("test").Start(context.Background(), "sector.find")

	callback := NewDBTracingCallback(200 * time.Millisecond)

	var item countedItem
	tx := db.WithContext(ctx).First(&item, 99999)

	callback.AfterCallback(tx)
	span.End()

	spans := recorder.Ended()
	require.NotEmpty(t, spans)
	assert.NotEqual(t, codes.Error, spans[0].Status().Code)
}

func TestWithQueryStartTime(t *testing.T) {
	ctx := WithQueryStartTime(context.Background())

	startTime, ok := ctx.Value(queryStartTimeKey).(time.Time)
	require.True(t, ok)
	assert.WithinDuration(t, time.Now(), startTime, time.Second)
}

func TestSlowQueryCallback_NoRecordingSpan(t *testing.T) {
	plugin := NewDBTracingPlugin(enabledTracingConfig(), zap.NewNop())

	t.Run("plain context", func(t *testing.T) {
		db := setupTestDB(t).WithContext(context.Background())
		assert.NotPanics(t, func() { plugin.slowQueryCallback(db) })
	})

	t.Run("no context at all", func(t *testing.T) {
		db := setupTestDB(t)
		assert.NotPanics(t, func() { plugin.slowQueryCallback(db) })
	})
}

func TestDBTracing_EndToEnd(t *testing.T) {
	db := setupTestDB(t)
	tp, recorder := recordingTracer(t)

	cfg := enabledTracingConfig()
	cfg.LogFullSQL = true
	cfg.WithoutVariables = false

	plugin := NewDBTracingPlugin(cfg, zap.NewNop())
	require.NoError(t, plugin.RegisterOtelGorm(db))

	ctx, span := tp.Tracer("test").Start(context.Background(), "inventory.open_sector")

	db = db.WithContext(ctx)
	require.NoError(t, db.Create(&countedItem{ProductCode: "SKU-001"}).Error)

	var found countedItem
	require.NoError(t, db.First(&found, "product_code = ?", "SKU-001").Error)
	assert.Equal(t, "SKU-001", found.ProductCode)

	span.End()
	assert.NotEmpty(t, recorder.Ended())
}

func BenchmarkDBTracingCallback(b *testing.B) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		b.Fatal(err)
	}
	if err := db.AutoMigrate(&countedItem{}); err != nil {
		b.Fatal(err)
	}

	callback := NewDBTracingCallback(200 * time.Millisecond)
	db = db.WithContext(context.Background())

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		callback.AfterCallback(db)
	}
}
