package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/iwt-cmd/awx/xerrors"
)

// Config 认证配置
type Config struct {
	SecretKey     string   `mapstructure:"secret_key"`     // 签名密钥（至少 32 字符）
	SigningMethod string   `mapstructure:"signing_method"` // 目前只支持 HS256
	Issuer        string   `mapstructure:"issuer"`
	Audience      []string `mapstructure:"audience"`

	// AccessTokenTTL token 子命令签发 Token 的有效期，默认 24h
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`

	// TokenLookup 留空时按 header:Authorization -> query:token -> cookie:jwt 查找，
	// 也可指定单一来源如 "header:Authorization"
	TokenLookup   string `mapstructure:"token_lookup"`
	TokenHeadName string `mapstructure:"token_head_name"` // Header 前缀，默认 Bearer
}

func (c *Config) setDefaults() {
	if c.SigningMethod == "" {
		c.SigningMethod = jwt.SigningMethodHS256.Alg()
	}
	if c.AccessTokenTTL == 0 {
		c.AccessTokenTTL = 24 * time.Hour
	}
	if c.TokenHeadName == "" {
		c.TokenHeadName = "Bearer"
	}
}

func (c *Config) validate() error {
	if c.SecretKey == "" {
		return ErrInvalidConfig
	}
	if len(c.SecretKey) < 32 {
		return xerrors.Wrapf(ErrInvalidConfig, "secret_key must be at least 32 characters")
	}
	if c.SigningMethod != jwt.SigningMethodHS256.Alg() {
		return xerrors.Wrapf(ErrInvalidConfig, "unsupported signing_method: %s", c.SigningMethod)
	}
	if c.AccessTokenTTL <= 0 {
		return xerrors.Wrapf(ErrInvalidConfig, "access_token_ttl must be positive")
	}
	return nil
}
