package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tally/backend/internal/infrastructure/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// mapTenantValidator validates against a fixed set of known tenants.
type mapTenantValidator struct {
	tenants map[string]*TenantInfo
	err     error
}

func (m *mapTenantValidator) ValidateTenant(tenantID string) (*TenantInfo, error) {
	if m.err != nil {
		return nil, m.err
	}
	if info, exists := m.tenants[tenantID]; exists {
		return info, nil
	}
	return nil, errors.New("tenant not found")
}

// tenantRouter builds a router with the given tenant config and a GET
// /sectors handler that records the tenant the middleware resolved.
func tenantRouter(cfg TenantMiddlewareConfig, pre ...gin.HandlerFunc) (*gin.Engine, *string) {
	router := gin.New()
	for _, mw := range pre {
		router.Use(mw)
	}
	router.Use(TenantMiddlewareWithConfig(cfg))

	captured := new(string)
	router.GET("/sectors", func(c *gin.Context) {
		*captured = GetTenantID(c)
		c.Status(http.StatusOK)
	})
	return router, captured
}

func getSectorsAs(router *gin.Engine, tenantHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/sectors", nil)
	if tenantHeader != "" {
		req.Header.Set(TenantHeaderKey, tenantHeader)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func setJWTTenant(tenantID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(JWTTenantIDKey, tenantID)
		c.Next()
	}
}

func TestTenantMiddleware_HeaderExtraction(t *testing.T) {
	validID := uuid.New().String()

	tests := []struct {
		name           string
		tenantID       string
		expectedStatus int
	}{
		{"valid tenant ID in header", validID, http.StatusOK},
		{"missing tenant ID", "", http.StatusUnauthorized},
		{"invalid tenant ID format", "store-42", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, captured := tenantRouter(DefaultTenantConfig())
			w := getSectorsAs(router, tt.tenantID)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedStatus == http.StatusOK {
				assert.Equal(t, tt.tenantID, *captured)
			}
		})
	}
}

func TestTenantMiddleware_JWTExtraction(t *testing.T) {
	tenantID := uuid.New().String()

	router, captured := tenantRouter(DefaultTenantConfig(), setJWTTenant(tenantID))
	w := getSectorsAs(router, "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, tenantID, *captured)
}

func TestTenantMiddleware_JWTOverridesHeader(t *testing.T) {
	jwtTenantID := uuid.New().String()
	headerTenantID := uuid.New().String()

	router, captured := tenantRouter(DefaultTenantConfig(), setJWTTenant(jwtTenantID))
	w := getSectorsAs(router, headerTenantID)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, jwtTenantID, *captured)
}

func TestTenantMiddleware_SkipPaths(t *testing.T) {
	tests := []struct {
		name           string
		path           string
		skipPaths      []string
		expectedStatus int
	}{
		{"health endpoint skipped", "/health", []string{"/health"}, http.StatusOK},
		{"api health endpoint skipped", "/api/v1/health", []string{"/api/v1/health"}, http.StatusOK},
		{"metrics endpoint skipped", "/metrics", []string{"/metrics"}, http.StatusOK},
		{"nested health path skipped", "/health/ready", []string{"/health"}, http.StatusOK},
		{"counting route requires tenant", "/api/v1/sectors", []string{"/health"}, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultTenantConfig()
			cfg.SkipPaths = tt.skipPaths

			router := gin.New()
			router.Use(TenantMiddlewareWithConfig(cfg))
			router.GET(tt.path, func(c *gin.Context) {
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}
}

func TestTenantMiddleware_OptionalTenant(t *testing.T) {
	router := gin.New()
	router.Use(OptionalTenantMiddleware())

	var captured string
	router.GET("/sectors", func(c *gin.Context) {
		captured = GetTenantID(c)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/sectors", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, captured)
}

func TestTenantMiddleware_WithValidator(t *testing.T) {
	validTenantID := uuid.New().String()
	unknownTenantID := uuid.New().String()

	validator := &mapTenantValidator{
		tenants: map[string]*TenantInfo{
			validTenantID: {
				ID:   uuid.MustParse(validTenantID),
				Code: "STORE-42",
			},
		},
	}

	tests := []struct {
		name           string
		tenantID       string
		expectedStatus int
		expectedCode   string
	}{
		{"valid tenant passes validation", validTenantID, http.StatusOK, "STORE-42"},
		{"unknown tenant fails validation", unknownTenantID, http.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultTenantConfig()
			cfg.Validator = validator

			router := gin.New()
			router.Use(TenantMiddlewareWithConfig(cfg))

			var capturedCode string
			router.GET("/sectors", func(c *gin.Context) {
				capturedCode = GetTenantCode(c)
				c.Status(http.StatusOK)
			})

			w := getSectorsAs(router, tt.tenantID)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedStatus == http.StatusOK {
				assert.Equal(t, tt.expectedCode, capturedCode)
			}
		})
	}
}

func TestTenantMiddleware_ValidatorError(t *testing.T) {
	validator := &mapTenantValidator{err: errors.New("database connection failed")}

	cfg := DefaultTenantConfig()
	cfg.Validator = validator
	router, _ := tenantRouter(cfg)

	w := getSectorsAs(router, uuid.New().String())

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTenantMiddleware_DisabledMethods(t *testing.T) {
	tenantID := uuid.New().String()

	t.Run("header disabled", func(t *testing.T) {
		cfg := DefaultTenantConfig()
		cfg.HeaderEnabled = false
		cfg.Required = false
		router, captured := tenantRouter(cfg)

		w := getSectorsAs(router, tenantID)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, *captured)
	})

	t.Run("jwt disabled", func(t *testing.T) {
		cfg := DefaultTenantConfig()
		cfg.JWTEnabled = false
		cfg.Required = false
		router, captured := tenantRouter(cfg, setJWTTenant(tenantID))

		w := getSectorsAs(router, "")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, *captured)
	})
}

func TestTenantMiddleware_ContextPropagation(t *testing.T) {
	tenantID := uuid.New().String()

	router := gin.New()
	router.Use(TenantMiddleware())

	var ctxTenantID string
	router.GET("/sectors", func(c *gin.Context) {
		ctxTenantID = logger.GetTenantID(c.Request.Context())
		c.Status(http.StatusOK)
	})

	w := getSectorsAs(router, tenantID)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, tenantID, ctxTenantID)
}

func TestExtractTenantFromSubdomain(t *testing.T) {
	tests := []struct {
		name       string
		host       string
		baseDomain string
		expected   string
	}{
		{"simple subdomain", "acme.tally.example.com", "tally.example.com", "acme"},
		{"subdomain with port", "acme.tally.example.com:8080", "tally.example.com", "acme"},
		{"no subdomain", "tally.example.com", "tally.example.com", ""},
		{"www subdomain ignored", "www.tally.example.com", "tally.example.com", ""},
		{"different base domain", "acme.other.com", "tally.example.com", ""},
		{"multi-level subdomain keeps first label", "app.acme.tally.example.com", "tally.example.com", "app"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractTenantFromSubdomain(tt.host, tt.baseDomain))
		})
	}
}

func TestGetTenantID(t *testing.T) {
	tenantID := uuid.New().String()

	router := gin.New()
	router.Use(TenantMiddleware())

	router.GET("/sectors", func(c *gin.Context) {
		assert.Equal(t, tenantID, GetTenantID(c))

		gotUUID, err := GetTenantUUID(c)
		require.NoError(t, err)
		assert.Equal(t, uuid.MustParse(tenantID), gotUUID)

		c.Status(http.StatusOK)
	})

	w := getSectorsAs(router, tenantID)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetTenantUUID_MissingTenant(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	gotUUID, err := GetTenantUUID(c)

	require.NoError(t, err)
	assert.Equal(t, uuid.Nil, gotUUID)
}

func TestMustGetTenantID_Panics(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	assert.Panics(t, func() { MustGetTenantID(c) })
}

func TestMustGetTenantUUID_Panics(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	assert.Panics(t, func() { MustGetTenantUUID(c) })
}

func TestDefaultTenantConfig(t *testing.T) {
	cfg := DefaultTenantConfig()

	assert.True(t, cfg.HeaderEnabled)
	assert.True(t, cfg.JWTEnabled)
	assert.False(t, cfg.SubdomainEnabled)
	assert.Empty(t, cfg.BaseDomain)
	assert.True(t, cfg.Required)
	assert.Nil(t, cfg.Validator)
	assert.Nil(t, cfg.Logger)
	assert.Contains(t, cfg.SkipPaths, "/health")
	assert.Contains(t, cfg.SkipPaths, "/metrics")
}
