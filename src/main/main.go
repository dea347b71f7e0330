package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"hdr-snip/src/clipboard"
	"hdr-snip/src/config"
	"hdr-snip/src/eventloop"
	"hdr-snip/src/export"
	"hdr-snip/src/gui"
	"hdr-snip/src/hotkey"
	"hdr-snip/src/logutil"
	"hdr-snip/src/preview"
	"hdr-snip/src/runtimeinit"
	"hdr-snip/src/singleinstance"
	"hdr-snip/src/tray"
	"hdr-snip/src/upload"
)

const appName = "hdr-snip"

type mainOptions struct {
	configFile string
	backend    string
	hotkey     string
	trigger    bool
}

func (o mainOptions) loadOptions() config.LoadOptions {
	return config.LoadOptions{
		ConfigFile:      o.configFile,
		BackendOverride: o.backend,
		HotkeyOverride:  o.hotkey,
	}
}

func main() {
	// systray and the tray menu live on the main thread
	runtime.LockOSThread()

	opts := &mainOptions{}
	cmd := newRootCmd(opts)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(opts *mainOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Snip HDR screen regions to 16-bit PNG",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.trigger {
				// .env may move the delegation port range
				_, _ = config.LoadWithOptions(opts.loadOptions())
				return handleTrigger(singleinstance.NewClient(), func() error {
					return runResident(*opts, true)
				})
			}
			return runResident(*opts, false)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "Path to a YAML config file")
	cmd.PersistentFlags().StringVar(&opts.backend, "backend", "", "Capture backend: auto, d3d11 or software")
	cmd.PersistentFlags().StringVar(&opts.hotkey, "hotkey", "", "Capture hotkey, e.g. Ctrl+Shift+S")
	cmd.Flags().BoolVar(&opts.trigger, "trigger", false, "Ask the running instance to capture, starting one if needed")

	cmd.AddCommand(newConfigCmd(opts))
	return cmd
}

func newConfigCmd(opts *mainOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadWithOptions(opts.loadOptions())
			if err != nil {
				return err
			}
			out, err := cfg.YAML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}

type triggerClient interface {
	Trigger(ctx context.Context) (bool, string, error)
}

// handleTrigger delegates a capture to the resident, or runs fallback when
// there is none to delegate to.
func handleTrigger(client triggerClient, fallback func() error) error {
	delegated, reply, err := client.Trigger(context.Background())
	if err != nil {
		log.Printf("Delegation error: %v; starting a resident", err)
		return fallback()
	}
	if !delegated {
		log.Printf("No resident detected, starting one")
		return fallback()
	}
	log.Printf("Delegated to resident: %s", reply)
	return nil
}

func runResident(opts mainOptions, captureOnStart bool) error {
	// before any window exists or any metric is read
	enableDPIAwareness()

	cfg, err := runtimeinit.Bootstrap(runtimeinit.Options{
		LoadOptions:  opts.loadOptions(),
		SetupLogging: logutil.Setup,
	})
	if err != nil {
		return err
	}
	logMonitorConfiguration()

	binding, err := hotkey.Parse(cfg.Hotkey)
	if err != nil {
		return err
	}
	listener := hotkey.NewListener(binding)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	server := singleinstance.NewServer()
	if err := server.Start(ctx); err != nil {
		return alreadyRunning(ctx, err)
	}
	defer server.Close()
	log.Printf("Resident listening on port %d", server.Port())

	var uploader *upload.S3
	if cfg.Upload.Bucket != "" {
		uploader, err = upload.NewS3(ctx, upload.Options{Bucket: cfg.Upload.Bucket, Prefix: cfg.Upload.Prefix, Region: cfg.Upload.Region})
		if err != nil {
			return err
		}
	}
	onExport := func(res *export.Result, err error) {
		tray.UpdateTooltip(exportTooltip(listener.Binding().Spec, res, err))
		if err == nil && uploader != nil {
			go uploadExport(ctx, uploader, res.PNG)
		}
	}

	ready := make(chan *gui.Window, 1)
	done := make(chan error, 1)
	go func() { done <- runOverlay(ctx, cfg, onExport, ready) }()

	var window *gui.Window
	select {
	case window = <-ready:
	case err := <-done:
		return err
	}

	go func() {
		if err := listener.Run(ctx, window.PostHotkey); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("Hotkey listener stopped: %v", err)
		}
	}()
	go func() {
		err := config.Watch(ctx, cfg.Files(), func() { reloadHotkey(opts, listener) })
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("Config watcher stopped: %v", err)
		}
	}()
	go serveDelegation(ctx, server, window.PostHotkey)
	if captureOnStart {
		window.PostHotkey()
	}

	go func() {
		<-ctx.Done()
		tray.Quit()
	}()
	tray.SetAboutExtra(fmt.Sprintf("Backend: %s", cfg.Backend))
	tray.Run(tray.Options{
		Title:     appName,
		Tooltip:   idleTooltip(cfg.Hotkey),
		Hotkey:    cfg.Hotkey,
		OnCapture: window.PostHotkey,
		OnExit:    cancel,
	})

	cancel()
	return <-done
}

// runOverlay owns the device for its whole life. Every GPU and window call
// happens on its locked thread.
func runOverlay(ctx context.Context, cfg *config.Config, onExport func(*export.Result, error), ready chan<- *gui.Window) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	stack, err := runtimeinit.OpenBackend(cfg)
	if err != nil {
		return err
	}
	defer stack.Release()

	window, err := gui.NewWindow(stack.Desc.Bounds)
	if err != nil {
		return err
	}
	defer window.Release()

	swap, err := stack.Device.CreateSwapchain(window.Surface(), stack.Width(), stack.Height())
	if err != nil {
		return fmt.Errorf("create swapchain: %w", err)
	}
	defer swap.Release()
	if m, ok := swap.(interface{ Image() *image.RGBA }); ok {
		window.SetMirror(m.Image)
	}

	renderer, err := preview.New(stack.Device, swap, stack.Width(), stack.Height(), stack.Programs.Preview())
	if err != nil {
		return err
	}
	defer renderer.Release()

	pipeline, err := stack.Exporter(clipboard.NewPublisher(cfg.ClipboardFormat))
	if err != nil {
		return err
	}
	defer pipeline.Release()

	acq := stack.Acquirer()
	defer acq.Release()

	loop := eventloop.New(acq, renderer, pipeline, window, eventloop.Options{
		CaptureTimeout: cfg.CaptureTimeout,
		OnExport:       onExport,
	})

	ready <- window
	if err := window.Run(ctx, loop); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	s := loop.Stats()
	log.Printf("Overlay stopped: %d captures, %d exports, %d export errors", s.Captures, s.Exports, s.ExportErrors)
	return nil
}

// alreadyRunning explains a failed bind, naming the resident process when
// it answers and the connection table allows it.
func alreadyRunning(ctx context.Context, err error) error {
	if r, ok := singleinstance.DetectResident(ctx); ok {
		if r.Owner.PID != 0 {
			return fmt.Errorf("%s is already running on port %d as %v: %w", appName, r.Port, r.Owner, err)
		}
		return fmt.Errorf("%s is already running on port %d: %w", appName, r.Port, err)
	}
	start, _ := singleinstance.GetPortRangeForDebug()
	if owner, ok := singleinstance.PortOwner(ctx, start); ok {
		return fmt.Errorf("port %d is held by %v: %w", start, owner, err)
	}
	return fmt.Errorf("cannot bind port %d: %w", start, err)
}

// reloadHotkey rereads the configuration after a file change. Only the
// hotkey applies without a restart.
func reloadHotkey(opts mainOptions, listener *hotkey.Listener) {
	lo := opts.loadOptions()
	lo.Reload = true
	cfg, err := config.LoadWithOptions(lo)
	if err != nil {
		log.Printf("Config reload failed: %v", err)
		return
	}
	if cfg.Hotkey == listener.Binding().Spec {
		log.Printf("Config reloaded; other settings apply after a restart")
		return
	}
	b, err := hotkey.Parse(cfg.Hotkey)
	if err != nil {
		log.Printf("Config reload: keeping %s: %v", listener.Binding().Spec, err)
		return
	}
	listener.SetBinding(b)
	tray.UpdateTooltip(idleTooltip(b.Spec))
}

func uploadExport(ctx context.Context, up *upload.S3, data []byte) {
	loc, err := up.Upload(ctx, upload.ObjectName(time.Now()), data)
	if err != nil {
		log.Printf("Upload failed: %v", err)
		tray.UpdateTooltip(fmt.Sprintf("%s - Upload failed: %v", appName, err))
		return
	}
	tray.UpdateTooltip(fmt.Sprintf("%s - Uploaded to %s", appName, loc))
}

func serveDelegation(ctx context.Context, server singleinstance.Server, capture func()) {
	for {
		conn, err := server.Next(ctx)
		if err != nil {
			return
		}
		handleDelegated(conn, capture)
	}
}

func handleDelegated(conn singleinstance.Conn, capture func()) {
	defer conn.Close()
	switch cmd := conn.Request().Command; cmd {
	case singleinstance.CommandCapture:
		capture()
		if err := conn.RespondSuccess("queued"); err != nil {
			log.Printf("Delegation reply failed: %v", err)
		}
	default:
		_ = conn.RespondError("unknown command " + cmd)
	}
}

func idleTooltip(hotkey string) string {
	return fmt.Sprintf("%s - Press %s to capture", appName, hotkey)
}

func exportTooltip(hotkey string, res *export.Result, err error) string {
	switch {
	case errors.Is(err, export.ErrEmptySelection):
		return idleTooltip(hotkey)
	case err != nil:
		return fmt.Sprintf("%s - Last export failed: %v", appName, err)
	}
	return fmt.Sprintf("%s - Copied %dx%d", appName, res.Rect.Width(), res.Rect.Height())
}
