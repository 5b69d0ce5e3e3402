// Package auth 负责指标端点的认证与访问判定。
//
//   - Authenticator: HS256 JWT 的签发与校验，Token 只携带用户标识
//   - Authorize: 访问判定表，超级用户或系统审计员放行，其余一律拒绝
//   - RequireMetricsReader: 把两者与 PrincipalLoader 串起来的 Gin 中间件
//
// 基本使用：
//
//	authn, _ := auth.New(&auth.Config{SecretKey: "..."})
//	router.GET("/metrics", auth.RequireMetricsReader(authn, store), handler)
package auth

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/iwt-cmd/awx/clog"
	"github.com/iwt-cmd/awx/metrics"
	"github.com/iwt-cmd/awx/xerrors"
)

// MetricTokensValidated Token 校验计数，标签: status, error_type
const MetricTokensValidated = "awx_exporter_auth_tokens_validated_total"

// Authenticator 认证器
type Authenticator interface {
	// GenerateToken 为用户签发 Token
	GenerateToken(ctx context.Context, userID uint, username string) (string, error)

	// ValidateToken 校验 Token，返回 Claims
	ValidateToken(ctx context.Context, token string) (*Claims, error)

	// ExtractToken 按配置的查找顺序从请求中取出 Token
	ExtractToken(r *http.Request) (string, error)
}

type jwtAuth struct {
	config    *Config
	logger    clog.Logger
	validated metrics.Counter
}

// New 创建 Authenticator
func New(cfg *Config, opts ...Option) (Authenticator, error) {
	if cfg == nil {
		return nil, ErrInvalidConfig
	}
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	o := applyOptions(opts)
	validated, err := o.meter.Counter(MetricTokensValidated, "Total number of bearer tokens validated.")
	if err != nil {
		return nil, err
	}

	return &jwtAuth{
		config:    cfg,
		logger:    o.logger,
		validated: validated,
	}, nil
}

func (a *jwtAuth) GenerateToken(_ context.Context, userID uint, username string) (string, error) {
	if userID == 0 {
		return "", ErrInvalidClaims
	}

	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(userID), 10),
			Issuer:    a.config.Issuer,
			Audience:  a.config.Audience,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.config.AccessTokenTTL)),
		},
		Username: username,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(a.config.SecretKey))
	if err != nil {
		return "", xerrors.Wrap(err, "auth: sign token")
	}

	a.logger.Info("token generated",
		clog.String("user_id", claims.Subject),
		clog.Time("expires_at", claims.ExpiresAt.Time))
	return signed, nil
}

func (a *jwtAuth) ValidateToken(ctx context.Context, tokenString string) (*Claims, error) {
	parserOpts := []jwt.ParserOption{jwt.WithValidMethods([]string{a.config.SigningMethod})}
	if a.config.Issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(a.config.Issuer))
	}
	if len(a.config.Audience) > 0 {
		parserOpts = append(parserOpts, jwt.WithAudience(a.config.Audience[0]))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return []byte(a.config.SecretKey), nil
	}, parserOpts...)
	if err != nil {
		var errType string
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			errType = "expired"
			err = ErrExpiredToken
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			errType = "invalid_signature"
			err = ErrInvalidSignature
		default:
			errType = "invalid_token"
			err = ErrInvalidToken
		}
		a.validated.Inc(ctx, metrics.L("status", "error"), metrics.L("error_type", errType))
		return nil, err
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if _, err := claims.UserID(); err != nil {
		a.validated.Inc(ctx, metrics.L("status", "error"), metrics.L("error_type", "invalid_claims"))
		return nil, err
	}

	a.validated.Inc(ctx, metrics.L("status", "success"))
	return claims, nil
}

func (a *jwtAuth) ExtractToken(r *http.Request) (string, error) {
	if a.config.TokenLookup == "" {
		for _, lookup := range []string{"header:Authorization", "query:token", "cookie:jwt"} {
			if token, err := a.extractFrom(r, lookup); err == nil {
				return token, nil
			}
		}
		return "", ErrMissingToken
	}
	return a.extractFrom(r, a.config.TokenLookup)
}

func (a *jwtAuth) extractFrom(r *http.Request, lookup string) (string, error) {
	source, key, ok := strings.Cut(lookup, ":")
	if !ok {
		return "", ErrMissingToken
	}

	switch source {
	case "header":
		header := r.Header.Get(key)
		if header == "" {
			return "", ErrMissingToken
		}
		head, token, ok := strings.Cut(header, " ")
		if !ok || head != a.config.TokenHeadName || token == "" {
			return "", ErrInvalidToken
		}
		return token, nil
	case "query":
		if token := r.URL.Query().Get(key); token != "" {
			return token, nil
		}
		return "", ErrMissingToken
	case "cookie":
		cookie, err := r.Cookie(key)
		if err != nil || cookie.Value == "" {
			return "", ErrMissingToken
		}
		return cookie.Value, nil
	default:
		return "", ErrMissingToken
	}
}
