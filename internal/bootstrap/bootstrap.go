// Package bootstrap 按配置装配 awx-metrics 进程：日志、遥测、存储、许可证、
// 子系统指标与 HTTP 服务。
package bootstrap

import (
	"context"
	"slices"

	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/iwt-cmd/awx/analytics"
	"github.com/iwt-cmd/awx/auth"
	"github.com/iwt-cmd/awx/clog"
	"github.com/iwt-cmd/awx/config"
	"github.com/iwt-cmd/awx/connector"
	"github.com/iwt-cmd/awx/db"
	"github.com/iwt-cmd/awx/license"
	"github.com/iwt-cmd/awx/metrics"
	"github.com/iwt-cmd/awx/server"
	"github.com/iwt-cmd/awx/store"
	"github.com/iwt-cmd/awx/subsystem"
	"github.com/iwt-cmd/awx/trace"
	"github.com/iwt-cmd/awx/xerrors"
)

// Shutdown 退出时按注册的逆序执行
type Shutdown func(context.Context) error

// App 装配完成的进程
type App struct {
	Config   *AppConfig
	Loader   config.Loader
	Logger   clog.Logger
	Meter    metrics.Meter
	Store    *store.Store
	License  *license.Provider
	Server   *server.Server
	Recorder *subsystem.Recorder

	shutdowns []Shutdown
}

// NewLogger 按配置创建根 Logger，请求 ID 与 TraceID 自动写入日志
func NewLogger(cfg *clog.Config) (clog.Logger, error) {
	return clog.New(cfg,
		clog.WithNamespace(ServiceName),
		clog.WithContextField(server.RequestIDKey, "request_id"),
		clog.WithTraceContext(),
	)
}

// Init 装配全部组件。出错时已创建的资源会被释放
func Init(ctx context.Context, loader config.Loader, cfg *AppConfig, logger clog.Logger) (_ *App, err error) {
	app := &App{Config: cfg, Loader: loader, Logger: logger}
	defer func() {
		if err != nil {
			_ = app.Close(context.WithoutCancel(ctx))
		}
	}()

	if cfg.Trace.ServiceName == "" {
		cfg.Trace.ServiceName = ServiceName
	}
	traceShutdown, err := trace.Init(&cfg.Trace)
	if err != nil {
		return nil, xerrors.Wrap(err, "bootstrap: init trace")
	}
	app.onClose(traceShutdown)
	tp := otel.GetTracerProvider()

	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = ServiceName
	}
	app.Meter, err = metrics.New(&cfg.Telemetry, metrics.WithLogger(logger))
	if err != nil {
		return nil, xerrors.Wrap(err, "bootstrap: init metrics")
	}
	app.onClose(app.Meter.Shutdown)

	app.Store, err = openStore(ctx, app, cfg, logger)
	if err != nil {
		return nil, err
	}

	app.License, err = license.New(&cfg.License, license.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	authn, err := auth.New(&cfg.Auth, auth.WithLogger(logger), auth.WithMeter(app.Meter))
	if err != nil {
		return nil, xerrors.Wrap(err, "bootstrap: init auth")
	}

	sources := analytics.Sources{
		Entities:    app.Store,
		Jobs:        app.Store,
		Sessions:    app.Store,
		Instances:   app.Store,
		License:     app.License,
		Connections: app.Store,
	}
	if cfg.Subsystem.Enabled {
		reader, err := initSubsystem(ctx, app, cfg, logger)
		if err != nil {
			return nil, err
		}
		sources.Subsystem = reader
	}

	reg, err := analytics.NewRegistry(analytics.NewCatalog(sources, analytics.SystemInfo{
		InstallUUID: cfg.System.InstallUUID,
		Version:     cfg.System.Version,
		URLBase:     cfg.System.URLBase,
	})...)
	if err != nil {
		return nil, xerrors.Wrap(err, "bootstrap: build registry")
	}

	app.Server, err = server.New(&cfg.Server, server.Deps{
		Registry:      reg,
		Authenticator: authn,
		Principals:    app.Store,
		Health:        app.Store,
	},
		server.WithLogger(logger),
		server.WithMeter(app.Meter),
		server.WithTracerProvider(tp),
		server.WithServiceName(ServiceName),
	)
	if err != nil {
		return nil, xerrors.Wrap(err, "bootstrap: init server")
	}
	return app, nil
}

// OpenStore 只打开存储，供 migrate 与 token 等不需要 HTTP 服务的命令使用
func OpenStore(ctx context.Context, cfg *AppConfig, logger clog.Logger) (*store.Store, func() error, error) {
	app := &App{Logger: logger}
	st, err := openStore(ctx, app, cfg, logger)
	if err != nil {
		_ = app.Close(context.WithoutCancel(ctx))
		return nil, nil, err
	}
	return st, func() error { return app.Close(context.WithoutCancel(ctx)) }, nil
}

func openStore(ctx context.Context, app *App, cfg *AppConfig, logger clog.Logger) (*store.Store, error) {
	tp := otel.GetTracerProvider()
	conn, err := connector.NewDatabase(&cfg.Database,
		connector.WithLogger(logger), connector.WithTracerProvider(tp))
	if err != nil {
		return nil, xerrors.Wrap(err, "bootstrap: database connector")
	}
	if err := conn.Connect(ctx); err != nil {
		return nil, xerrors.Wrap(err, "bootstrap: connect database")
	}
	app.onClose(func(context.Context) error { return conn.Close() })

	database, err := db.New(conn, &cfg.DB, db.WithLogger(logger), db.WithTracerProvider(tp))
	if err != nil {
		return nil, xerrors.Wrap(err, "bootstrap: init db")
	}
	return store.New(database, store.WithLogger(logger))
}

func initSubsystem(ctx context.Context, app *App, cfg *AppConfig, logger clog.Logger) (*subsystem.Reader, error) {
	conn, err := connector.NewRedis(&cfg.Redis,
		connector.WithLogger(logger), connector.WithTracerProvider(otel.GetTracerProvider()))
	if err != nil {
		return nil, xerrors.Wrap(err, "bootstrap: redis connector")
	}
	if err := conn.Connect(ctx); err != nil {
		return nil, xerrors.Wrap(err, "bootstrap: connect redis")
	}
	app.onClose(func(context.Context) error { return conn.Close() })

	opts := []subsystem.Option{subsystem.WithLogger(logger), subsystem.WithMeter(app.Meter)}
	reader, err := subsystem.NewReader(conn, &cfg.Subsystem, opts...)
	if err != nil {
		return nil, err
	}
	app.Recorder, err = subsystem.NewRecorder(conn, &cfg.Subsystem, opts...)
	if err != nil {
		return nil, err
	}
	return reader, nil
}

func (a *App) onClose(fn Shutdown) {
	if fn != nil {
		a.shutdowns = append(a.shutdowns, fn)
	}
}

// Run 运行 HTTP 服务与后台任务，ctx 取消或任一任务失败时返回
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return a.Server.Run(ctx) })
	g.Go(func() error { return metrics.Serve(ctx, &a.Config.Telemetry, a.Meter, a.Logger) })
	if a.Recorder != nil {
		g.Go(func() error { return a.Recorder.Run(ctx) })
	}
	if a.Loader != nil {
		g.Go(func() error { return a.License.Watch(ctx, a.Loader) })
		g.Go(func() error { return a.watchLogLevel(ctx) })
	}

	err := g.Wait()
	if xerrors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// watchLogLevel 配置文件中 log.level 变化时调整全局日志级别
func (a *App) watchLogLevel(ctx context.Context) error {
	events, err := a.Loader.Watch(ctx, "log.level")
	if err != nil {
		return xerrors.Wrap(err, "bootstrap: watch log.level")
	}
	for ev := range events {
		raw, _ := ev.Value.(string)
		level, err := clog.ParseLevel(raw)
		if err != nil {
			a.Logger.Warn("ignore invalid log level", clog.String("level", raw))
			continue
		}
		if err := a.Logger.SetLevel(level); err != nil {
			a.Logger.Warn("set log level failed", clog.Error(err))
			continue
		}
		a.Logger.Info("log level changed", clog.String("level", level.String()))
	}
	return nil
}

// Close 按逆序释放资源
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for _, fn := range slices.Backward(a.shutdowns) {
		if err := fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.shutdowns = nil
	return xerrors.Combine(errs...)
}
