package server

import "github.com/iwt-cmd/awx/xerrors"

var (
	// ErrInvalidConfig 配置非法
	ErrInvalidConfig = xerrors.New("server: invalid config")

	// ErrMissingDependency 缺少必需的依赖
	ErrMissingDependency = xerrors.New("server: missing dependency")
)
