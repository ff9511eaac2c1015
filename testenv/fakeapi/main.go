// Command fakeapi serves the in-memory chefriend backend used by the unit
// tests on a fixed address, so the e2e suite and manual CLI runs have
// something to talk to.
//
//	go run ./testenv/fakeapi -addr :18080
//	CHEFRIEND_E2E_URL=http://localhost:18080 go test -tags e2e ./e2e/...
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/chefriend/chefriend-cli/internal/testutil"
)

func main() {
	addr := flag.String("addr", ":18080", "listen address")
	profile := flag.Bool("profile", true, "seed a taste profile")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	b := testutil.New()
	if *profile {
		b.SetProfile(2, 2, 2)
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           b.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("fake backend listening", "addr", *addr,
		"access_token", testutil.InitialAccessToken, "refresh_token", testutil.InitialRefreshToken)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("serve", "error", err)
		os.Exit(1)
	}
}
