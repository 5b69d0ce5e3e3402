package db

import "github.com/iwt-cmd/awx/xerrors"

var (
	ErrInvalidConfig     = xerrors.New("db: invalid config")
	ErrConnectorRequired = xerrors.New("db: connector is required")
)
