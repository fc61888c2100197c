package middleware

import (
	"fmt"
	"net/http"
	"time"

	"tenantcrm/internal/common"
	"tenantcrm/internal/models"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
)

// JWTCustomClaims are the claims issued by the identity provider. The
// subject is the user id.
type JWTCustomClaims struct {
	TenantID      string `json:"tenant_id"`
	RoleID        string `json:"role_id"`
	PlatformAdmin bool   `json:"platform_admin,omitempty"`
	jwt.RegisteredClaims
}

// Principal converts verified claims into a caller identity.
func (c *JWTCustomClaims) Principal() (models.Principal, error) {
	userID, err := uuid.Parse(c.Subject)
	if err != nil {
		return models.Principal{}, fmt.Errorf("invalid subject: %w", err)
	}
	p := models.Principal{UserID: userID, PlatformAdmin: c.PlatformAdmin}
	if c.TenantID != "" {
		if p.TenantID, err = uuid.Parse(c.TenantID); err != nil {
			return models.Principal{}, fmt.Errorf("invalid tenant_id: %w", err)
		}
	}
	if c.RoleID != "" {
		if p.RoleID, err = uuid.Parse(c.RoleID); err != nil {
			return models.Principal{}, fmt.Errorf("invalid role_id: %w", err)
		}
	}
	if !p.PlatformAdmin && !p.Valid() {
		return models.Principal{}, fmt.Errorf("token carries no tenant role")
	}
	return p, nil
}

type JWTOptions struct {
	Secret  string
	JWKSURL string
}

// JWT verifies bearer tokens and stores the resulting principal on the
// request context. A JWKS URL takes precedence over the shared secret.
func JWT(opts JWTOptions) (echo.MiddlewareFunc, func(), error) {
	cfg := echojwt.Config{
		NewClaimsFunc: func(c echo.Context) jwt.Claims {
			return new(JWTCustomClaims)
		},
		SuccessHandler: func(c echo.Context) {
			token, ok := c.Get("user").(*jwt.Token)
			if !ok {
				return
			}
			claims, ok := token.Claims.(*JWTCustomClaims)
			if !ok {
				return
			}
			p, err := claims.Principal()
			if err != nil {
				return
			}
			c.SetRequest(c.Request().WithContext(common.WithPrincipal(c.Request().Context(), p)))
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return common.SendUnauthorizedError(c)
		},
	}

	stop := func() {}
	if opts.JWKSURL != "" {
		jwks, err := keyfunc.Get(opts.JWKSURL, keyfunc.Options{
			RefreshInterval:   time.Hour,
			RefreshRateLimit:  5 * time.Minute,
			RefreshUnknownKID: true,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load JWKS: %w", err)
		}
		cfg.KeyFunc = jwks.Keyfunc
		stop = jwks.EndBackground
	} else {
		if opts.Secret == "" {
			return nil, nil, fmt.Errorf("jwt secret or jwks url is required")
		}
		cfg.SigningKey = []byte(opts.Secret)
	}

	verify := echojwt.WithConfig(cfg)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return verify(func(c echo.Context) error {
			if _, ok := common.GetPrincipalFromContext(c.Request().Context()); !ok {
				return common.SendUnauthorizedError(c)
			}
			return next(c)
		})
	}, stop, nil
}

// RequirePlatformAdmin guards operator routes.
func RequirePlatformAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, ok := common.GetPrincipalFromContext(c.Request().Context())
			if !ok {
				return common.SendUnauthorizedError(c)
			}
			if !p.PlatformAdmin {
				return common.SendError(c, http.StatusForbidden, "FORBIDDEN", "platform administrator required", nil)
			}
			return next(c)
		}
	}
}

// SignToken issues an HS256 token for p. Used by the CLI and tests.
func SignToken(secret string, p models.Principal, ttl time.Duration, now time.Time) (string, error) {
	claims := JWTCustomClaims{
		TenantID:      p.TenantID.String(),
		RoleID:        p.RoleID.String(),
		PlatformAdmin: p.PlatformAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if p.TenantID == uuid.Nil {
		claims.TenantID = ""
	}
	if p.RoleID == uuid.Nil {
		claims.RoleID = ""
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
