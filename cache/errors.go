package cache

import "github.com/iwt-cmd/awx/xerrors"

// ErrDisabled 配置未启用缓存
var ErrDisabled = xerrors.New("cache: disabled")
