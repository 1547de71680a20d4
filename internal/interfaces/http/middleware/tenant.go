package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tally/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// Context keys for tenant information set by the tenant middleware.
const (
	TenantIDKey     = "tenant_id"
	TenantCodeKey   = "tenant_code"
	TenantHeaderKey = "X-Tenant-ID"
)

// TenantInfo identifies a validated tenant.
type TenantInfo struct {
	ID   uuid.UUID `json:"id"`
	Code string    `json:"code"`
}

// TenantExtractor extracts a tenant ID from an incoming request.
type TenantExtractor interface {
	ExtractTenantID(c *gin.Context) (string, error)
}

// TenantValidator checks that a tenant exists and is active.
type TenantValidator interface {
	ValidateTenant(tenantID string) (*TenantInfo, error)
}

// TenantMiddlewareConfig controls how the tenant is resolved from a request.
type TenantMiddlewareConfig struct {
	// HeaderEnabled enables X-Tenant-ID header extraction.
	HeaderEnabled bool
	// JWTEnabled reads the tenant claim set by the JWT middleware, which must
	// run earlier in the chain.
	JWTEnabled bool
	// SubdomainEnabled enables subdomain extraction against BaseDomain.
	SubdomainEnabled bool
	// BaseDomain is the suffix stripped during subdomain extraction, for
	// example "tally.example.com".
	BaseDomain string
	// SkipPaths bypass tenant resolution entirely.
	SkipPaths []string
	// Required rejects requests that resolve no tenant.
	Required bool
	// Validator optionally verifies the resolved tenant.
	Validator TenantValidator
	// Logger for middleware logging.
	Logger *zap.Logger
}

// DefaultTenantConfig returns the configuration used by the API router:
// JWT and header extraction enabled, tenant required, health and metrics
// endpoints skipped.
func DefaultTenantConfig() TenantMiddlewareConfig {
	return TenantMiddlewareConfig{
		HeaderEnabled: true,
		JWTEnabled:    true,
		SkipPaths:     []string{"/health", "/healthz", "/ready", "/metrics", "/api/v1/health"},
		Required:      true,
	}
}

// TenantMiddleware resolves the tenant with the default configuration.
// Resolution order: JWT claim, then X-Tenant-ID header, then subdomain.
func TenantMiddleware() gin.HandlerFunc {
	return TenantMiddlewareWithConfig(DefaultTenantConfig())
}

// OptionalTenantMiddleware resolves the tenant when present but lets
// requests without one through.
func OptionalTenantMiddleware() gin.HandlerFunc {
	cfg := DefaultTenantConfig()
	cfg.Required = false
	return TenantMiddlewareWithConfig(cfg)
}

// TenantMiddlewareWithConfig returns tenant middleware with custom configuration.
func TenantMiddlewareWithConfig(cfg TenantMiddlewareConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tenantPathSkipped(cfg.SkipPaths, c.Request.URL.Path) {
			c.Next()
			return
		}

		tenantID, source := resolveTenantID(c, cfg)

		if tenantID != "" {
			if _, err := uuid.Parse(tenantID); err != nil {
				respondUnauthorized(c, "Invalid tenant ID format")
				return
			}
		}

		if tenantID == "" {
			if cfg.Required {
				respondUnauthorized(c, "Tenant identification required")
				return
			}
			c.Next()
			return
		}

		var tenantInfo *TenantInfo
		if cfg.Validator != nil {
			var err error
			if tenantInfo, err = cfg.Validator.ValidateTenant(tenantID); err != nil {
				tenantLogger(c, cfg).Warn("Tenant validation failed",
					zap.String("tenant_id", tenantID),
					zap.Error(err),
				)
				respondUnauthorized(c, "Invalid or inactive tenant")
				return
			}
		}

		c.Set(TenantIDKey, tenantID)
		if tenantInfo != nil {
			c.Set(TenantCodeKey, tenantInfo.Code)
		}

		// Propagate into the request context so service layer logging carries
		// the tenant.
		ctx := c.Request.Context()
		ctx, _ = logger.WithTenantID(ctx, logger.FromContext(ctx), tenantID)
		c.Request = c.Request.WithContext(ctx)

		if cfg.Logger != nil {
			cfg.Logger.Debug("Tenant identified",
				zap.String("tenant_id", tenantID),
				zap.String("method", source),
			)
		}

		c.Next()
	}
}

// resolveTenantID tries each enabled source in priority order and reports
// which one matched.
func resolveTenantID(c *gin.Context, cfg TenantMiddlewareConfig) (tenantID, source string) {
	if cfg.JWTEnabled {
		if claim, exists := c.Get(JWTTenantIDKey); exists {
			if tid, ok := claim.(string); ok && tid != "" {
				return tid, "jwt"
			}
		}
	}

	if cfg.HeaderEnabled {
		if tid := c.GetHeader(TenantHeaderKey); tid != "" {
			return tid, "header"
		}
	}

	if cfg.SubdomainEnabled && cfg.BaseDomain != "" {
		if tid := extractTenantFromSubdomain(c.Request.Host, cfg.BaseDomain); tid != "" {
			return tid, "subdomain"
		}
	}

	return "", ""
}

func tenantPathSkipped(skipPaths []string, path string) bool {
	for _, skip := range skipPaths {
		if path == skip || strings.HasPrefix(path, skip+"/") {
			return true
		}
	}
	return false
}

func tenantLogger(c *gin.Context, cfg TenantMiddlewareConfig) *zap.Logger {
	if cfg.Logger != nil {
		return cfg.Logger
	}
	return logger.FromContext(c.Request.Context())
}

// extractTenantFromSubdomain maps "acme.tally.example.com" with base domain
// "tally.example.com" to "acme". Multi-level subdomains keep only the first
// label, and "www" is not a tenant.
func extractTenantFromSubdomain(host, baseDomain string) string {
	if idx := strings.Index(host, ":"); idx != -1 {
		host = host[:idx]
	}

	if !strings.HasSuffix(host, baseDomain) {
		return ""
	}

	subdomain := strings.TrimSuffix(host, "."+baseDomain)
	if subdomain == host || subdomain == "" || subdomain == "www" {
		return ""
	}

	return strings.Split(subdomain, ".")[0]
}

func respondUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error": gin.H{
			"code":    "UNAUTHORIZED",
			"message": message,
		},
	})
}

// GetTenantID returns the tenant ID stored by the middleware, or "".
func GetTenantID(c *gin.Context) string {
	if v, exists := c.Get(TenantIDKey); exists {
		if tid, ok := v.(string); ok {
			return tid
		}
	}
	return ""
}

// GetTenantUUID returns the tenant ID parsed as a UUID. A missing tenant
// yields uuid.Nil with no error.
func GetTenantUUID(c *gin.Context) (uuid.UUID, error) {
	tenantID := GetTenantID(c)
	if tenantID == "" {
		return uuid.Nil, nil
	}
	return uuid.Parse(tenantID)
}

// GetTenantCode returns the tenant code set after validation, or "".
func GetTenantCode(c *gin.Context) string {
	if v, exists := c.Get(TenantCodeKey); exists {
		if code, ok := v.(string); ok {
			return code
		}
	}
	return ""
}

// MustGetTenantID is for handlers behind the required tenant middleware,
// where a missing tenant is a programming error.
func MustGetTenantID(c *gin.Context) string {
	tenantID := GetTenantID(c)
	if tenantID == "" {
		panic("tenant_id not found in context")
	}
	return tenantID
}

// MustGetTenantUUID is the UUID variant of MustGetTenantID.
func MustGetTenantUUID(c *gin.Context) uuid.UUID {
	tenantUUID, err := GetTenantUUID(c)
	if err != nil || tenantUUID == uuid.Nil {
		panic("valid tenant_id not found in context")
	}
	return tenantUUID
}
