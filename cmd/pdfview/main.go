// Command pdfview is a terminal front-end for the virtualized document
// viewer. It opens raster image files (or a built-in vector demo document),
// paints the viewer's element tree onto a tcell screen, and optionally
// reloads the document when the file changes on disk.
package main

import (
	"fmt"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/yinliguo/pdf-viewer/observability"
	"github.com/yinliguo/pdf-viewer/viewer"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		watch      bool
		debug      bool
	)
	root := &cobra.Command{
		Use:   "pdfview [file]",
		Short: "Terminal viewer for paged documents",
		Long: `pdfview renders a paged document in the terminal through a virtualized
viewport: only pages near the visible area are rasterized, and pages that
scroll far away are released again. With no file argument it opens a
built-in demo document.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if debug {
				cfg.LogLevel = "debug"
			}
			return runViewer(path, cfg, watch)
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	root.Flags().BoolVarP(&watch, "watch", "w", false, "reload when the file changes on disk")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	root.AddCommand(newRenderCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "pdfview %s\n", version)
		},
	}
}

// newRenderCmd exports a single page to a PNG without opening the UI.
func newRenderCmd() *cobra.Command {
	var (
		page   int
		width  float64
		out    string
		config string
	)
	cmd := &cobra.Command{
		Use:   "render [file]",
		Short: "Rasterize one page to a PNG file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			cfg, err := loadConfig(config)
			if err != nil {
				return err
			}
			v, err := buildViewer(path, cfg, io.Discard)
			if err != nil {
				return err
			}
			defer v.Destroy()
			if !awaitReady(v) {
				return fmt.Errorf("could not open %q", path)
			}

			img, err := v.RenderPage(cmd.Context(), page, width, false)
			if err != nil {
				return err
			}
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			defer f.Close()
			if err := png.Encode(f, img); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", out)
			return nil
		},
	}
	cmd.Flags().IntVarP(&page, "page", "p", 1, "1-based page number")
	cmd.Flags().Float64Var(&width, "width", 0, "output width in pixels (0 = origin size)")
	cmd.Flags().StringVarP(&out, "out", "o", "page.png", "output PNG path")
	cmd.Flags().StringVarP(&config, "config", "c", "", "YAML configuration file")
	return cmd
}

// buildViewer assembles a viewer for the given path with logging sent to w.
func buildViewer(path string, cfg fileConfig, logOut io.Writer) (*viewer.Viewer, error) {
	open, src, err := openBackend(path)
	if err != nil {
		return nil, err
	}
	script, err := cfg.onLoadScript()
	if err != nil {
		return nil, err
	}
	return viewer.New(viewer.Config{
		Source:             src,
		Open:               open,
		TextLayer:          cfg.TextLayer,
		PageGap:            cfg.PageGap,
		DevicePixelRatio:   cfg.DevicePixelRatio,
		ScrollAnimDuration: cfg.scrollAnim(),
		DebounceInterval:   cfg.debounce(),
		OnLoadScript:       script,
		Logger: observability.NewZerologLogger(observability.ZerologConfig{
			Level:  cfg.LogLevel,
			Pretty: cfg.LogPretty,
			Output: logOut,
		}),
	}), nil
}

// awaitReady blocks until the viewer loads or fails.
func awaitReady(v *viewer.Viewer) bool {
	deadline := time.Now().Add(30 * time.Second)
	for time.Now().Before(deadline) {
		if v.Ready() {
			return true
		}
		if v.Failed() {
			return false
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

func runViewer(path string, cfg fileConfig, watch bool) error {
	logOut := io.Discard
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		defer f.Close()
		logOut = f
	}

	v, err := buildViewer(path, cfg, logOut)
	if err != nil {
		return err
	}
	u, err := newUI(v)
	if err != nil {
		v.Destroy()
		return err
	}
	defer u.close()

	// Size the viewer to the screen before the first paint.
	w, h := u.viewportSize()
	v.Dispatch(viewer.ViewportSize{Width: w, Height: h})

	if watch && path != "" {
		stop, err := watchFile(path, func() {
			nv, err := buildViewer(path, cfg, logOut)
			if err != nil {
				return
			}
			u.attach(nv)
			w, h := u.viewportSize()
			nv.Dispatch(viewer.ViewportSize{Width: w, Height: h})
		})
		if err != nil {
			return err
		}
		defer stop()
	}

	u.run()
	u.current().Destroy()
	return nil
}

// watchFile invokes reload whenever the file is written or replaced. The
// parent directory is watched so editors that rename-on-save are caught.
func watchFile(path string, reload func()) (stop func(), err error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", abs, err)
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Name != abs {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					reload()
				}
			case <-watcher.Errors:
			case <-done:
				return
			}
		}
	}()
	return func() {
		close(done)
		watcher.Close()
	}, nil
}
