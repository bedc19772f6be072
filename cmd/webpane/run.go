package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/webpane/webpane/internal/logging"
	"github.com/webpane/webpane/pkg/browser"
	"github.com/webpane/webpane/pkg/capture"
	"github.com/webpane/webpane/pkg/compositor"
	"github.com/webpane/webpane/pkg/gpu"
	"github.com/webpane/webpane/pkg/overlay"
	"github.com/webpane/webpane/pkg/window"
)

var runCmd = &cobra.Command{
	Use:   "run [url]",
	Short: "Host one offscreen view and log its notifications",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHost,
}

func init() {
	runCmd.Flags().Int("width", viper.GetInt("width"), "view width in pixels")
	runCmd.Flags().Int("height", viper.GetInt("height"), "view height in pixels")
	runCmd.Flags().Uint8("click-through-threshold", 0, "alpha threshold for click-through (0 disables)")
	rootCmd.AddCommand(runCmd)
}

func runHost(cmd *cobra.Command, args []string) error {
	log := logging.NewFromConfigValues(
		viper.GetString("log-level"), viper.GetString("log-format"))

	url := "about:blank"
	if len(args) == 1 {
		url = args[0]
	}
	width, _ := cmd.Flags().GetInt("width")
	height, _ := cmd.Flags().GetInt("height")
	threshold, _ := cmd.Flags().GetUint8("click-through-threshold")

	info := gpu.Detect(log)
	log.Info().Str("gpu", info.String()).Msg("starting host")

	device, err := createDevice()
	if err != nil {
		return fmt.Errorf("create GPU device: %w", err)
	}

	mgr := overlay.NewManager(overlay.Options{
		Environment: func() (browser.Environment, error) {
			return browser.NewPlatformEnvironment(log)
		},
		Compositor:    func() (compositor.Compositor, error) { return compositor.New(), nil },
		Windows:       window.NewPlatformFactory(log),
		Device:        device,
		Frames:        nullFrameSource{},
		ThreadInit:    browser.PlatformThreadInit(),
		Pump:          browser.PlatformPump(),
		AlphaInterval: viper.GetInt("alpha-interval"),
		Logger:        log,
	})
	mgr.OnCursorChanged = func(cursor uintptr) {
		log.Debug().Uint64("cursor", uint64(cursor)).Msg("cursor changed")
	}

	if err := mgr.Initialize(); err != nil {
		return err
	}
	defer mgr.Dispose()

	view, err := mgr.CreateView(width, height)
	if err != nil {
		return err
	}
	view.OnReady = func() { log.Info().Msg("view ready") }
	view.OnNavigationCompleted = func(u string) {
		log.Info().Str("url", u).Msg("navigation completed")
	}
	view.OnFrameCaptured = func(gpu.Texture) {
		log.Trace().Msg("frame captured")
	}

	if err := view.Initialize(); err != nil {
		return err
	}
	view.SetClickThroughThreshold(threshold)
	mgr.SetFocusedView(view)

	if err := view.Navigate(url); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				w, h := view.Size()
				log.Debug().
					Uint8("alpha", view.AlphaAt(w/2, h/2)).
					Bool("click_through", view.ShouldClickThrough(w/2, h/2)).
					Msg("center sample")
			}
		}
	})

	err = g.Wait()
	if err == context.Canceled {
		return nil
	}
	return err
}

// createDevice brings up a wgpu instance/adapter/device. The device is
// caller-owned: the overlay subsystem never releases it.
func createDevice() (*gpu.WGPUDevice, error) {
	instance := wgpu.CreateInstance(nil)
	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{})
	if err != nil {
		return nil, fmt.Errorf("request adapter: %w", err)
	}
	device, err := adapter.RequestDevice(nil)
	if err != nil {
		return nil, fmt.Errorf("request device: %w", err)
	}
	return gpu.NewWGPUDevice(device, device.GetQueue()), nil
}

// nullFrameSource satisfies the pipeline when no platform frame-delivery
// backend is compiled in: sessions start but never deliver frames, so the
// alpha cache stays empty and hit-tests read opaque.
type nullFrameSource struct{}

func (nullFrameSource) NewPool(w, h int) (capture.FramePool, error) {
	return &nullPool{}, nil
}

type nullPool struct{}

func (*nullPool) NewSession(compositor.Visual) (capture.Session, error) { return nullSession{}, nil }
func (*nullPool) SetFrameHandler(func(capture.Frame))                   {}
func (*nullPool) Recreate(int, int) error                               { return nil }
func (*nullPool) Close() error                                          { return nil }

type nullSession struct{}

func (nullSession) Start() error { return nil }
func (nullSession) Close() error { return nil }
