package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	textclipboard "github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"hdr-snip/src/clipboard"
	"hdr-snip/src/config"
	"hdr-snip/src/export"
	"hdr-snip/src/geometry"
	"hdr-snip/src/runtimeinit"
	"hdr-snip/src/upload"
)

type captureOptions struct {
	rect        string
	outPath     string
	noClipboard bool
	copyPath    bool
	backend     string
	configFile  string
	jsonOutput  bool
	verbose     bool
}

func main() {
	// the device belongs to this thread
	runtime.LockOSThread()

	if err := runWithArgs(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runWithArgs(args []string) error {
	if len(args) == 0 {
		args = []string{"hdr-snip-capture"}
	}

	opts := &captureOptions{}
	cmd := newRootCmd(opts)
	cmd.SetArgs(args[1:])
	return cmd.Execute()
}

func newRootCmd(opts *captureOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "hdr-snip-capture",
		Short:         "Capture a screen region to a 16-bit PNG without the overlay",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithOptions(*opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.rect, "rect", "", "Region as x,y,w,h in desktop pixels (default: whole output)")
	cmd.Flags().StringVar(&opts.outPath, "out", "", "PNG output path (default: OUTPUT_PATH)")
	cmd.Flags().BoolVar(&opts.noClipboard, "no-clipboard", false, "Do not publish the image to the clipboard")
	cmd.Flags().BoolVar(&opts.copyPath, "copy-path", false, "Put the saved file path on the clipboard as text instead of the image")
	cmd.Flags().StringVar(&opts.backend, "backend", "", "Capture backend: auto, d3d11 or software")
	cmd.Flags().StringVar(&opts.configFile, "config", "", "Path to a YAML config file")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Print the result as JSON")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose output to stderr")

	return cmd
}

// parseRect reads "x,y,w,h". Width and height must be positive.
func parseRect(s string) (geometry.Rect, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return geometry.Rect{}, fmt.Errorf("rect %q: want x,y,w,h", s)
	}
	var v [4]int32
	for i, p := range parts {
		n, err := strconv.ParseInt(strings.TrimSpace(p), 10, 32)
		if err != nil {
			return geometry.Rect{}, fmt.Errorf("rect %q: %w", s, err)
		}
		v[i] = int32(n)
	}
	if v[2] <= 0 || v[3] <= 0 {
		return geometry.Rect{}, fmt.Errorf("rect %q: width and height must be positive", s)
	}
	return geometry.Rect{Left: v[0], Top: v[1], Right: v[0] + v[2], Bottom: v[1] + v[3]}, nil
}

func runWithOptions(opts captureOptions, stdout io.Writer) error {
	// Configure logging BEFORE any other operations.
	if !opts.verbose {
		log.SetOutput(io.Discard)
	} else {
		log.SetOutput(os.Stderr)
	}

	var desktop *geometry.Rect
	if opts.rect != "" {
		r, err := parseRect(opts.rect)
		if err != nil {
			return err
		}
		desktop = &r
	}

	cfg, err := runtimeinit.Bootstrap(runtimeinit.Options{
		LoadOptions: config.LoadOptions{ConfigFile: opts.configFile, BackendOverride: opts.backend},
	})
	if err != nil {
		return err
	}
	if opts.outPath != "" {
		cfg.OutputPath = opts.outPath
	}
	if opts.copyPath && cfg.OutputPath == "" {
		return fmt.Errorf("--copy-path needs an output file")
	}

	stack, err := runtimeinit.OpenBackend(cfg)
	if err != nil {
		return err
	}
	defer stack.Release()

	rect := geometry.Rect{Right: int32(stack.Width()), Bottom: int32(stack.Height())}
	if desktop != nil {
		rect = stack.Local(*desktop)
	}

	var clip export.Publisher
	if !opts.noClipboard && !opts.copyPath {
		clip = clipboard.NewPublisher(cfg.ClipboardFormat)
	}
	pipeline, err := stack.Exporter(clip)
	if err != nil {
		return err
	}
	defer pipeline.Release()

	acq := stack.Acquirer()
	defer acq.Release()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.CaptureTimeout)
	defer cancel()

	start := time.Now()
	frame, err := acq.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("capture: %w", err)
	}
	res, err := pipeline.Run(context.Background(), frame, rect)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}

	result := captureResult{
		Backend:   stack.Backend,
		Output:    cfg.OutputPath,
		X:         res.Rect.Left + stack.Desc.Bounds.Left,
		Y:         res.Rect.Top + stack.Desc.Bounds.Top,
		Width:     res.Rect.Width(),
		Height:    res.Rect.Height(),
		Bytes:     len(res.PNG),
		Clipboard: clip != nil,
	}

	if opts.copyPath {
		abs, err := filepath.Abs(cfg.OutputPath)
		if err != nil {
			return err
		}
		if err := textclipboard.WriteAll(abs); err != nil {
			return fmt.Errorf("copy path: %w", err)
		}
		result.Clipboard = true
	}

	if cfg.Upload.Bucket != "" {
		up, err := upload.NewS3(context.Background(), upload.Options{Bucket: cfg.Upload.Bucket, Prefix: cfg.Upload.Prefix, Region: cfg.Upload.Region})
		if err != nil {
			return err
		}
		if result.URL, err = up.Upload(context.Background(), upload.ObjectName(start), res.PNG); err != nil {
			return err
		}
	}

	result.Duration = time.Since(start).Seconds()
	return outputResult(stdout, result, opts.jsonOutput)
}

type captureResult struct {
	Backend   string  `json:"backend"`
	Output    string  `json:"output,omitempty"`
	X         int32   `json:"x"`
	Y         int32   `json:"y"`
	Width     uint32  `json:"width"`
	Height    uint32  `json:"height"`
	Bytes     int     `json:"png_bytes"`
	Clipboard bool    `json:"clipboard"`
	URL       string  `json:"url,omitempty"`
	Duration  float64 `json:"duration_seconds"`
}

func outputResult(w io.Writer, r captureResult, jsonOutput bool) error {
	if jsonOutput {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(r); err != nil {
			return fmt.Errorf("failed to encode JSON output: %w", err)
		}
		return nil
	}
	if _, err := fmt.Fprintf(w, "%dx%d at %d,%d (%d bytes)\n", r.Width, r.Height, r.X, r.Y, r.Bytes); err != nil {
		return err
	}
	if r.URL != "" {
		_, err := fmt.Fprintln(w, r.URL)
		return err
	}
	return nil
}
