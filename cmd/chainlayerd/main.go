// Copyright 2024 The Chainlayer Authors
// This file is part of Chainlayer.
//
// Chainlayer is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Chainlayer is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Chainlayer. If not, see <http://www.gnu.org/licenses/>.

// Command chainlayerd is the daemon entry point: it loads configuration,
// wires the source/reducer/storage stages together, and runs them until a
// finalize condition, a fatal error, or a signal stops it.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/chainlayer/chainlayer/chain"
	"github.com/chainlayer/chainlayer/chainevent"
	"github.com/chainlayer/chainlayer/config"
	"github.com/chainlayer/chainlayer/intersect"
	"github.com/chainlayer/chainlayer/pipeline"
	"github.com/chainlayer/chainlayer/reducer"
	"github.com/chainlayer/chainlayer/reducer/builtin"
	"github.com/chainlayer/chainlayer/reducer/script"
	"github.com/chainlayer/chainlayer/source"
	"github.com/chainlayer/chainlayer/source/cborsource"
	"github.com/chainlayer/chainlayer/source/grpcsource"
	"github.com/chainlayer/chainlayer/storage"
	"github.com/chainlayer/chainlayer/storage/nullstore"
	"github.com/chainlayer/chainlayer/storage/redisstore"
	"github.com/chainlayer/chainlayer/storage/sqlstore"
)

func main() {
	app := &cli.App{
		Name:  "chainlayerd",
		Usage: "follow a chain, reduce each block, commit mutations transactionally",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "path to an explicit TOML config file"},
			&cli.BoolFlag{Name: "console", Usage: "human-readable console log output instead of JSON"},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cliCtx *cli.Context) error {
	log, err := buildLogger(cliCtx.Bool("console"))
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer log.Sync() //nolint:errcheck

	cfg, err := config.Load(cliCtx.String("config"))
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	chainName := ""
	var customParams *chain.Params
	if cfg.Chain != nil {
		chainName = cfg.Chain.Type
		if cfg.Chain.CustomParams != nil {
			customParams = &chain.Params{}
			tc := config.TaggedConfig{Type: chainName, Params: cfg.Chain.CustomParams}
			if err := tc.Decode(customParams); err != nil {
				return fmt.Errorf("chain: custom_params: %w", err)
			}
		}
	}
	if _, err := chain.Resolve(chainName, customParams); err != nil {
		return fmt.Errorf("chain: %w", err)
	}

	backend, err := buildStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}

	intersectCfg, err := cfg.Intersect.ToIntersect()
	if err != nil {
		return fmt.Errorf("intersect: %w", err)
	}
	finalizeCfg := config.ToFinalize(cfg.Finalize)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	name := cursorName(cfg.Storage)
	crumbs, loadErr := backend.LoadCursor(ctx, name)
	resuming := false
	if loadErr != nil && !errors.Is(loadErr, storage.ErrNoCursor) {
		return fmt.Errorf("storage: load cursor: %w", loadErr)
	}
	if loadErr == nil && !crumbs.Empty() {
		front, _ := crumbs.Front()
		log.Info("cursor found", zap.Uint64("slot", front.Slot))
		intersectCfg = intersect.FromCandidates(crumbs.Candidates())
		resuming = true
	} else {
		log.Info("no cursor found, starting from configured intersection")
	}

	adapter, adapterName, err := buildSource(cfg.Source)
	if err != nil {
		return fmt.Errorf("source: %w", err)
	}

	red, err := buildReducer(cfg.Reducer)
	if err != nil {
		return fmt.Errorf("reducer: %w", err)
	}

	sourceToReducer := pipeline.NewChan[chainevent.Event]()
	reducerToStorage := pipeline.NewChan[chainevent.Event]()

	policies := pipeline.DefaultStagePolicies()
	if cfg.Retries != nil {
		policies = applyRetryOverrides(policies, *cfg.Retries)
	}

	sourceStage := &source.Engine{
		Adapter:     adapter,
		AdapterName: adapterName,
		Intersect:   intersectCfg,
		Resuming:    resuming,
		Outbound:    sourceToReducer,
		Log:         log,
	}
	reducerStage := &reducer.Stage{
		Reducer:     red,
		StorageKind: backend.Kind(),
		Inbound:     sourceToReducer,
		Outbound:    reducerToStorage,
		Log:         log,
	}
	storageStage := &storage.Engine{
		Backend:    backend,
		CursorName: name,
		Finalize:   finalizeCfg,
		Inbound:    reducerToStorage,
		Log:        log,
	}

	supervisor := pipeline.NewSupervisor(log,
		pipeline.StageHandle{Name: "source", Worker: sourceStage, Policies: policies},
		pipeline.StageHandle{Name: "reducer", Worker: reducerStage, Policies: policies},
		pipeline.StageHandle{Name: "storage", Worker: storageStage, Policies: policies},
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			log.Info("signal received, shutting down")
			cancel()
		case <-ctx.Done():
		}
	}()

	log.Info("chainlayerd is running")
	if err := supervisor.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("pipeline: %w", err)
	}
	log.Info("chainlayerd is stopping")
	return nil
}

func buildLogger(console bool) (*zap.Logger, error) {
	if console {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func cursorName(c config.TaggedConfig) string {
	if v, ok := c.Params["cursor_name"].(string); ok && v != "" {
		return v
	}
	switch c.Type {
	case "redis":
		return "chainlayer:cursor"
	default:
		return "chainlayer"
	}
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func applyRetryOverrides(p pipeline.StagePolicies, r config.RetriesConfig) pipeline.StagePolicies {
	apply := func(policy pipeline.RetryPolicy) pipeline.RetryPolicy {
		if r.MaxRetries != nil {
			policy.MaxRetries = *r.MaxRetries
		}
		if r.BackoffUnitSeconds != nil {
			policy.BackoffUnit = secondsToDuration(*r.BackoffUnitSeconds)
		}
		if r.BackoffFactor != nil {
			policy.BackoffFactor = *r.BackoffFactor
		}
		if r.MaxBackoffSeconds != nil {
			policy.MaxBackoff = secondsToDuration(*r.MaxBackoffSeconds)
		}
		if r.Dismissible != nil {
			policy.Dismissible = *r.Dismissible
		}
		return policy
	}
	return pipeline.StagePolicies{
		Bootstrap: apply(p.Bootstrap),
		Work:      apply(p.Work),
		Teardown:  apply(p.Teardown),
	}
}

func buildStorage(c config.TaggedConfig) (storage.Backend, error) {
	switch c.Type {
	case "redis":
		var params struct {
			Addr     string `mapstructure:"addr"`
			Password string `mapstructure:"password"`
			DB       int    `mapstructure:"db"`
		}
		if err := c.Decode(&params); err != nil {
			return nil, err
		}
		client := redis.NewClient(&redis.Options{Addr: params.Addr, Password: params.Password, DB: params.DB})
		return redisstore.New(client), nil

	case "sql":
		var params struct {
			Driver string `mapstructure:"driver"`
			DSN    string `mapstructure:"dsn"`
			Schema string `mapstructure:"schema"`
		}
		if err := c.Decode(&params); err != nil {
			return nil, err
		}
		driverName := params.Driver
		if driverName == "postgres" {
			driverName = "pgx"
		}
		db, err := sql.Open(driverName, params.DSN)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", params.Driver, err)
		}
		backend := sqlstore.New(db, params.Schema)
		if err := backend.EnsureSchema(context.Background()); err != nil {
			return nil, err
		}
		return backend, nil

	case "none", "":
		return nullstore.New(), nil

	default:
		return nil, fmt.Errorf("unknown storage type %q", c.Type)
	}
}

func buildReducer(c config.TaggedConfig) (reducer.Reducer, error) {
	switch c.Type {
	case "builtin", "":
		return builtin.New(nil, nil), nil
	case "script":
		var params struct {
			Path string `mapstructure:"path"`
		}
		if err := c.Decode(&params); err != nil {
			return nil, err
		}
		src, err := os.ReadFile(params.Path)
		if err != nil {
			return nil, fmt.Errorf("read script: %w", err)
		}
		return script.New(string(src))
	default:
		return nil, fmt.Errorf("unknown reducer type %q", c.Type)
	}
}

func buildSource(c config.TaggedConfig) (source.Adapter, string, error) {
	switch c.Type {
	case "grpc":
		var params struct {
			Addr string `mapstructure:"addr"`
		}
		if err := c.Decode(&params); err != nil {
			return nil, "", err
		}
		return nil, "", fmt.Errorf("grpc source %q: no generated follower client is wired into this build; supply one via grpcsource.New", params.Addr)
	case "cbor":
		var params struct {
			Dir string `mapstructure:"dir"`
		}
		if err := c.Decode(&params); err != nil {
			return nil, "", err
		}
		adapter, err := cborsource.New(params.Dir)
		if err != nil {
			return nil, "", err
		}
		return adapter, "cbor", nil
	default:
		return nil, "", fmt.Errorf("unknown source type %q", c.Type)
	}
}

// keep the pgx stdlib driver and grpcsource dial helper reachable from this
// package even though the sql.Open/grpc paths above are selected by string,
// not by direct reference to the imported symbols.
var (
	_ = stdlib.GetDefaultDriver
	_ = grpcsource.Dial
)
