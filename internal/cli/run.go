package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ayusman/handbooth/internal/app"
	"github.com/ayusman/handbooth/internal/config"
	"github.com/ayusman/handbooth/internal/detector"
	"github.com/ayusman/handbooth/internal/logging"
	"github.com/ayusman/handbooth/internal/server"
	"github.com/ayusman/handbooth/internal/session"
	"github.com/ayusman/handbooth/internal/store"
	"github.com/ayusman/handbooth/internal/tray"
)

type runOptions struct {
	listen string
	tray   bool
	mock   bool
}

func NewRunCmd(deps *Dependencies) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the kiosk",
		Long:  "Open the camera, start gesture detection and serve the kiosk UI.\nCtrl+C stops the kiosk after pending deliveries finish.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("listen") {
				deps.Config.Listen = opts.listen
			}
			if !cmd.Flags().Changed("tray") {
				opts.tray = deps.Config.Tray
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runKiosk(ctx, deps.Config, opts, NewFormatter(cmd.OutOrStdout()))
		},
	}

	cmd.Flags().StringVarP(&opts.listen, "listen", "l", "", "Address to serve on (overrides config)")
	cmd.Flags().BoolVar(&opts.tray, "tray", false, "Show the system tray menu")
	cmd.Flags().BoolVar(&opts.mock, "mock-detector", false, "Use the mock hand detector instead of MediaPipe")

	return cmd
}

func runKiosk(ctx context.Context, cfg *config.Config, opts *runOptions, formatter *Formatter) error {
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer logger.Sync()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := applyStoredSettings(cfg, st, logger); err != nil {
		return err
	}

	appOpts := app.Options{
		Config: cfg,
		Store:  st,
		Logger: logger,
	}
	if opts.mock {
		appOpts.Detector = detector.NewMockDetector()
	}
	application, err := app.New(appOpts)
	if err != nil {
		return fmt.Errorf("initializing app: %w", err)
	}

	hub := server.NewHub(logger)
	application.OnOverlay(func(o app.Overlay) { hub.Publish(o) })

	srv := server.New(server.Config{
		StaticDir: cfg.StaticDir,
		Store:     st,
		Frames:    application.Frames(),
		Session:   application.Session(),
		Hub:       hub,
		Settings: func() *config.Config {
			c := *cfg
			return &c
		},
		StreamFPS: cfg.Camera.ActiveFPS,
		Logger:    logger,
	})

	if err := application.Start(); err != nil {
		return err
	}
	defer application.Stop()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Run(ctx, cfg.Listen)
	}()
	formatter.Listening(cfg.Listen, time.Now())

	if opts.tray {
		t := trayFor(application, cancel)
		go func() {
			<-ctx.Done()
			t.Quit()
		}()
		// Blocks the calling goroutine until the tray quits.
		t.Run()
		cancel()
	}

	err = <-serveErr
	logger.Info("kiosk stopping")
	return err
}

// applyStoredSettings layers database overrides over the loaded config.
func applyStoredSettings(cfg *config.Config, st *store.Store, logger *zap.Logger) error {
	settings, err := st.Settings().All()
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}
	if len(settings) == 0 {
		return nil
	}
	if err := cfg.ApplySettings(settings); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger.Info("applied stored settings", zap.Int("count", len(settings)))
	return nil
}

func trayFor(application *app.App, quit func()) *tray.Tray {
	t := tray.New()
	t.OnToggle(application.SetEnabled)
	t.OnRestart(application.Session().Reset)
	t.OnQuit(quit)
	application.Session().OnChange(func(snap session.Snapshot) { t.SetState(snap) })
	application.OnConfirm(t.SetLastConfirmation)
	return t
}
