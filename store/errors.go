package store

import "github.com/iwt-cmd/awx/xerrors"

var (
	// ErrNotFound 记录不存在
	ErrNotFound = xerrors.New("store: not found")

	// ErrUnknownEntity 不支持计数的集合
	ErrUnknownEntity = xerrors.New("store: unknown entity")

	// ErrDatabaseRequired 未提供 db.DB
	ErrDatabaseRequired = xerrors.New("store: database is required")
)
