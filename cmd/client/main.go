// Package main provides the interactive Connect Four terminal client.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/connect4/internal/client"
	"github.com/cory-johannsen/connect4/internal/config"
	"github.com/cory-johannsen/connect4/internal/observability"
	"github.com/cory-johannsen/connect4/internal/protocol"
	"github.com/cory-johannsen/connect4/internal/transport/ws"
)

func main() {
	prefsPath := flag.String("prefs", client.DefaultPrefsPath(), "path to the saved username/server file")
	logFile := flag.String("log-file", "connect4-client.log", "file receiving client logs; the terminal is reserved for the game")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	writeTimeout := flag.Duration("write-timeout", 10*time.Second, "per-frame write deadline")
	noClear := flag.Bool("no-clear", false, "do not clear the screen between renders")
	flag.Parse()

	logger, err := observability.NewLogger(config.LoggingConfig{Level: *logLevel, Format: "json", File: *logFile})
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	prefs, err := client.LoadPrefs(*prefsPath)
	if err != nil {
		logger.Warn("ignoring unreadable prefs", zap.Error(err))
		prefs = &client.Prefs{}
	}

	dial := func(ctx context.Context, url string) (protocol.Conn, error) {
		conn, err := ws.Dial(ctx, url, *writeTimeout)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ctrl := client.NewController(os.Stdin, os.Stdout, dial, prefs, logger)
	ctrl.Clear = !*noClear

	if err := ctrl.Run(ctx); err != nil && !errors.Is(err, client.ErrInputClosed) {
		logger.Error("client stopped", zap.Error(err), zap.Stringer("state", ctrl.State()))
		_ = logger.Sync()
		fmt.Fprintf(os.Stderr, "connect4: %v\n", err)
		os.Exit(1)
	}
}
