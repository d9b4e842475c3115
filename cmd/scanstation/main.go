/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"scanstation/internal/cli"
	"scanstation/internal/config"
	"scanstation/internal/crash"
	applog "scanstation/internal/log"
	"scanstation/internal/storage"
	"scanstation/internal/telemetry"
)

func main() {
	os.Exit(run())
}

func run() int {
	applog.Init(applog.FromEnv())
	cfg, token, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	applog.Init(applog.Options{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.Source,
		File:      cfg.Logging.File,
	})
	l := applog.WithComponent("main")

	root, err := config.StoragePath(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	defer crash.Recover(root)

	tcfg := telemetry.FromEnv()
	tcfg.OptIn = tcfg.OptIn || cfg.General.TelemetryOptIn
	tel := telemetry.New(tcfg)
	telemetry.SetDefault(tel)
	defer tel.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if rebuilt, err := storage.DetectAndRebuildIndex(ctx, root); err != nil {
		l.Warn("index check failed", slog.Any("err", err))
	} else if rebuilt {
		l.Warn("progress index was damaged and has been rebuilt", slog.String("root", root))
	}

	app := cli.NewApp(cfg, token, root)
	app.Telemetry = tel
	app.Glyphs = cli.IsTerminal(os.Stdout)
	code := cli.Execute(ctx, app, os.Args[1:], os.Stdout, os.Stderr)

	flushCtx, cancel := context.WithTimeout(context.Background(), tcfg.Timeout)
	defer cancel()
	tel.Flush(flushCtx)
	return code
}
