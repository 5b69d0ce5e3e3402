package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/iwt-cmd/awx/auth"
	"github.com/iwt-cmd/awx/clog"
	"github.com/iwt-cmd/awx/config"
	"github.com/iwt-cmd/awx/internal/bootstrap"
	"github.com/iwt-cmd/awx/xerrors"
)

// 构建信息，通过 ldflags 注入
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

const shutdownTimeout = 15 * time.Second

// App 命令行入口
func App() *cli.App {
	return &cli.App{
		Name:    bootstrap.ServiceName,
		Usage:   "Prometheus exporter for AWX",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildTime),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to the configuration file",
				EnvVars: []string{"AWX_METRICS_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			migrateCommand(),
			tokenCommand(),
		},
	}
}

// load 读取配置并按 log 段创建根 Logger
func load(c *cli.Context) (config.Loader, *bootstrap.AppConfig, clog.Logger, error) {
	bootLogger, err := clog.New(&clog.Config{Level: "warn", Format: "console"})
	if err != nil {
		return nil, nil, nil, err
	}
	loader, cfg, err := bootstrap.Load(c.Context, c.String("config"), bootLogger)
	if err != nil {
		return nil, nil, nil, err
	}
	if cfg.System.Version == "" {
		cfg.System.Version = Version
	}
	logger, err := bootstrap.NewLogger(&cfg.Log)
	if err != nil {
		return nil, nil, nil, xerrors.Wrap(err, "init logger")
	}
	return loader, cfg, logger, nil
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "serve the metrics endpoint",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "migrate",
				Usage: "create missing tables before serving",
			},
		},
		Action: func(c *cli.Context) error {
			loader, cfg, logger, err := load(c)
			if err != nil {
				return err
			}
			app, err := bootstrap.Init(c.Context, loader, cfg, logger)
			if err != nil {
				return err
			}
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				if err := app.Close(ctx); err != nil {
					logger.Error("shutdown failed", clog.Error(err))
				}
			}()

			if c.Bool("migrate") {
				if err := app.Store.AutoMigrate(c.Context); err != nil {
					return err
				}
			}
			logger.Info("starting", clog.String("version", Version), clog.String("commit", Commit))
			return app.Run(c.Context)
		},
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "create the tables read by the exporter",
		Action: func(c *cli.Context) error {
			_, cfg, logger, err := load(c)
			if err != nil {
				return err
			}
			st, closeStore, err := bootstrap.OpenStore(c.Context, cfg, logger)
			if err != nil {
				return err
			}
			defer closeStore()

			if err := st.AutoMigrate(c.Context); err != nil {
				return err
			}
			logger.Info("migration finished", clog.String("driver", st.DB().Driver()))
			return nil
		},
	}
}

func tokenCommand() *cli.Command {
	return &cli.Command{
		Name:      "token",
		Usage:     "issue a bearer token for an existing user",
		ArgsUsage: "--user-id <id>",
		Flags: []cli.Flag{
			&cli.UintFlag{
				Name:     "user-id",
				Aliases:  []string{"u"},
				Usage:    "id of the AWX user the token is issued for",
				Required: true,
			},
			&cli.BoolFlag{
				Name:  "skip-check",
				Usage: "do not verify that the user may read metrics",
			},
		},
		Action: func(c *cli.Context) error {
			_, cfg, logger, err := load(c)
			if err != nil {
				return err
			}
			authn, err := auth.New(&cfg.Auth, auth.WithLogger(logger))
			if err != nil {
				return err
			}
			st, closeStore, err := bootstrap.OpenStore(c.Context, cfg, logger)
			if err != nil {
				return err
			}
			defer closeStore()

			userID := c.Uint("user-id")
			principal, err := st.LoadPrincipal(c.Context, userID)
			if err != nil {
				return err
			}
			if !c.Bool("skip-check") {
				if decision, rule := auth.Explain(principal); decision != auth.Allow {
					return xerrors.Wrapf(auth.ErrForbidden, "user %s cannot read metrics (%s)", principal.Username, rule)
				}
			}

			token, err := authn.GenerateToken(c.Context, principal.UserID, principal.Username)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(c.App.Writer, token)
			return err
		},
	}
}
