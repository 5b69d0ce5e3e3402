package clog

import "github.com/iwt-cmd/awx/xerrors"

// New 创建一个新的 Logger 实例
//
// config 为 nil 时使用开发环境默认配置；opts 用于设置命名空间、Context 字段提取等。
func New(config *Config, opts ...Option) (Logger, error) {
	if config == nil {
		config = NewDevDefaultConfig()
	}

	if err := config.validate(); err != nil {
		return nil, xerrors.Wrap(err, "clog: invalid config")
	}

	return newLogger(config, applyOptions(opts...))
}

// Must 与 New 相同，但在出错时 panic，适合 main 函数中使用
func Must(config *Config, opts ...Option) Logger {
	logger, err := New(config, opts...)
	if err != nil {
		panic(err)
	}
	return logger
}
