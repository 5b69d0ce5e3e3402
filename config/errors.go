package config

import "github.com/iwt-cmd/awx/xerrors"

// ErrValidationFailed 配置校验失败
var ErrValidationFailed = xerrors.New("config: validation failed")

// IsNotFound 判断是否为配置不存在
func IsNotFound(err error) bool {
	return xerrors.Is(err, xerrors.ErrNotFound)
}

// IsInvalidInput 判断是否为配置格式无效或校验失败
func IsInvalidInput(err error) bool {
	return xerrors.Is(err, xerrors.ErrInvalidInput) || xerrors.Is(err, ErrValidationFailed)
}

// WrapValidationError 将校验错误归类为 ErrValidationFailed
func WrapValidationError(err error) error {
	if err == nil {
		return nil
	}
	return xerrors.Join(ErrValidationFailed, err)
}
