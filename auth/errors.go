package auth

import "github.com/iwt-cmd/awx/xerrors"

var (
	ErrInvalidToken     = xerrors.New("auth: invalid token")
	ErrExpiredToken     = xerrors.New("auth: token expired")
	ErrMissingToken     = xerrors.New("auth: missing token")
	ErrInvalidClaims    = xerrors.New("auth: invalid claims")
	ErrInvalidSignature = xerrors.New("auth: invalid signature")
	ErrInvalidConfig    = xerrors.New("auth: invalid config")

	// ErrForbidden 主体不具备读取指标的系统级角色
	ErrForbidden = xerrors.New("auth: forbidden")

	// ErrUnknownPrincipal Token 中的用户在存储中不存在
	ErrUnknownPrincipal = xerrors.New("auth: unknown principal")
)
