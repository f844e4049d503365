package main

import (
	"context"
	"errors"
	"image"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Craftech360-projects/dell-dtforum-aiphotobooth/internal/catalog"
	"github.com/Craftech360-projects/dell-dtforum-aiphotobooth/internal/config"
	"github.com/Craftech360-projects/dell-dtforum-aiphotobooth/internal/detector"
	"github.com/Craftech360-projects/dell-dtforum-aiphotobooth/internal/engine"
	"github.com/Craftech360-projects/dell-dtforum-aiphotobooth/internal/gesture"
	"github.com/Craftech360-projects/dell-dtforum-aiphotobooth/internal/headshot"
	"github.com/Craftech360-projects/dell-dtforum-aiphotobooth/internal/metrics"
	"github.com/Craftech360-projects/dell-dtforum-aiphotobooth/internal/pipeline"
	"github.com/Craftech360-projects/dell-dtforum-aiphotobooth/internal/resultcache"
	"github.com/Craftech360-projects/dell-dtforum-aiphotobooth/internal/server"
	"github.com/Craftech360-projects/dell-dtforum-aiphotobooth/internal/storage"
	"github.com/Craftech360-projects/dell-dtforum-aiphotobooth/internal/store"
	"github.com/Craftech360-projects/dell-dtforum-aiphotobooth/internal/tray"
)

// Version is the application version.
const Version = "0.0.1"

var rootCmd = &cobra.Command{
	Use:     "photobooth",
	Short:   "AI Photobooth Kiosk Service",
	Version: Version,
	RunE:    runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the kiosk HTTP service",
	RunE:  runServe,
}

func init() {
	rootCmd.PersistentFlags().Bool("tray", false, "show the operator tray menu")
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("tray") {
		cfg.Tray, _ = cmd.Flags().GetBool("tray")
	}
	setupLogging(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.New(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer st.Close()

	gw := storage.New(ctx, cfg.StorageOptions())
	defer gw.Close()
	if gw.Available() {
		metrics.StorageMode.Set(1)
	} else {
		log.Warn().Msg("running without durable storage, results will be served locally")
	}

	provider := engine.NewProvider(cfg.EngineOptions())
	defer provider.Close()

	cache := resultcache.New(cfg.ResultTTL())
	defer cache.Close()

	processor := pipeline.New(
		gw,
		catalog.New(gw, nil),
		provider,
		st.Swaps(),
		cache,
		cfg.DataDir,
		cfg.Enhance,
	)

	det := newDetector()
	defer det.Close()

	srv := server.New(server.Config{
		Detector:       det,
		Trigger:        gesture.NewTrigger(cfg.Cooldown()),
		Transformer:    processor,
		Portraits:      headshot.New(lazyLocator{provider: provider}),
		Images:         cache,
		AllowedOrigins: cfg.AllowedOrigins,
		Addr:           cfg.Addr,
		Version:        Version,
	})

	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("photobooth service listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	if cfg.Tray {
		return runWithTray(ctx, stop, srv, httpSrv, errCh)
	}

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case err := <-errCh:
		return err
	}

	return shutdown(httpSrv)
}

func shutdown(httpSrv *http.Server) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

func setupLogging(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(lvl).
		With().Timestamp().Logger()
}

// newDetector prefers the MediaPipe bridge and falls back to a mock that
// reports no hands, keeping the HTTP surface alive on machines without the
// Python environment.
func newDetector() detector.Detector {
	det, err := detector.NewMediaPipeDetector(detector.DefaultConfig())
	if err != nil {
		log.Warn().Err(err).Msg("hand detector unavailable, palm trigger disabled")
		return detector.NewMockDetector()
	}
	return det
}

// runWithTray blocks on the tray event loop; systray must own the main
// goroutine on some platforms. A watcher closes the tray when the service
// stops, and quitting the tray stops the service.
func runWithTray(ctx context.Context, stop context.CancelFunc, srv *server.Server, httpSrv *http.Server, errCh chan error) error {
	t := tray.New()
	t.OnToggle(srv.SetDetectionEnabled)
	t.OnReset(srv.ResetCooldown)
	t.OnQuit(func() { stop() })

	var serveErr error
	go func() {
		select {
		case <-ctx.Done():
			log.Info().Msg("shutting down")
		case serveErr = <-errCh:
			stop()
		}
		t.Quit()
	}()

	t.Run()

	if err := shutdown(httpSrv); err != nil {
		return err
	}
	return serveErr
}

// lazyLocator defers face locator construction to the engine provider so the
// headshot chain shares the lazily built cascade.
type lazyLocator struct {
	provider *engine.Provider
}

func (l lazyLocator) Locate(data []byte) (image.Rectangle, bool, error) {
	engines, err := l.provider.Get(context.Background())
	if err != nil {
		return image.Rectangle{}, false, err
	}
	return engines.Faces.Locate(data)
}
