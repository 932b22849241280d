// go-ntag21x
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-ntag21x.
//
// go-ntag21x is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-ntag21x is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-ntag21x; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

// Command ntagtool reads and configures NTAG213/215/216 tags through a PN532
// reader.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/ZaparooProject/go-ntag21x"
	"github.com/ZaparooProject/go-ntag21x/polling"
	"github.com/ZaparooProject/go-ntag21x/transport/pn532"
)

func main() {
	os.Exit(mainWithExitCode(os.Args[1:]))
}

func mainWithExitCode(args []string) int {
	cfg, rest, err := parseArgs(args, os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}

	logger := newLogger(os.Stderr, cfg.debug)
	if cfg.sessionLog != "" {
		path, err := ntag21x.InitSessionLog(cfg.sessionLog)
		if err != nil {
			logger.Error().Err(err).Msg("session log")
			return 1
		}
		logger.Info().Str("path", path).Msg("session log")
		defer func() { _ = ntag21x.CloseSessionLog() }()
	}

	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		_, _ = fmt.Fprint(os.Stderr, "\nShutting down gracefully...\n")
		cancel()
	}()

	if err := run(ctx, cfg, rest, os.Stdout, logger); err != nil {
		if errors.Is(err, context.Canceled) {
			return 0
		}
		logger.Error().Err(err).Msg(rest[0] + " failed")
		if errors.Is(err, errUsage) {
			return 2
		}
		return 1
	}
	return 0
}

func run(ctx context.Context, cfg config, args []string, out io.Writer, logger zerolog.Logger) error {
	if err := checkArgs(args); err != nil {
		return err
	}

	link, err := openLink(cfg)
	if err != nil {
		return err
	}
	sink := zerologLogger{log: logger}
	tr := pn532.NewTransceiver(link, pn532.WithLogger(sink))
	session := ntag21x.New(tr,
		ntag21x.WithLogger(sink),
		ntag21x.WithSearchDelay(cfg.searchDelay))

	if err := execute(ctx, session, cfg, args, out); err != nil {
		return err
	}
	logger.Debug().Str("firmware", tr.Firmware().String()).Str("link", tr.String()).Msg("done")
	return nil
}

// checkArgs validates the command name and argument count before any
// hardware is touched.
func checkArgs(args []string) error {
	if args[0] == "watch" {
		if len(args) != 1 {
			return fmt.Errorf("%w: watch takes no arguments", errUsage)
		}
		return nil
	}
	cmd, ok := findCommand(args[0])
	if !ok {
		return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}
	if len(args)-1 != cmd.nargs {
		return fmt.Errorf("%w: %s %s", errUsage, cmd.name, cmd.usage)
	}
	return nil
}

// execute initializes session, selects a tag and runs the command in args.
func execute(ctx context.Context, session *ntag21x.Session, cfg config, args []string, out io.Writer) error {
	if err := checkArgs(args); err != nil {
		return err
	}
	if err := session.Init(); err != nil {
		return err //nolint:wrapcheck // CommandError names the operation
	}
	defer func() {
		if session.Initialized() {
			_ = session.Deinit()
		}
	}()

	if args[0] == "watch" {
		return watch(ctx, session, polling.DefaultConfig(), out)
	}

	cmd, _ := findCommand(args[0])
	tag, err := session.Search(cfg.searchTimeout)
	if err != nil {
		return fmt.Errorf("no tag: %w", err)
	}
	if cfg.password != nil {
		if err := session.Authenticate(*cfg.password, cfg.pack); err != nil {
			return err //nolint:wrapcheck // CommandError names the operation
		}
	}
	return cmd.run(&env{session: session, tag: tag, out: out}, args[1:])
}
