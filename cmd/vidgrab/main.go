package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/vidgrab/vidgrab/internal/config"
	"github.com/vidgrab/vidgrab/internal/domain"
	"github.com/vidgrab/vidgrab/internal/history"
	"github.com/vidgrab/vidgrab/internal/platform"
	"github.com/vidgrab/vidgrab/internal/preview"
	"github.com/vidgrab/vidgrab/internal/saver"
	"github.com/vidgrab/vidgrab/internal/session"
	"github.com/vidgrab/vidgrab/internal/stream"
	"github.com/vidgrab/vidgrab/internal/tui"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

// stdinClipboard reads a pasted URL from standard input.
type stdinClipboard struct{}

func (stdinClipboard) Read() (string, error) {
	scanner := bufio.NewScanner(os.Stdin)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(scanner.Text()), nil
}

func main() {
	configPath := flag.String("config", "", "Path to config file")
	platformName := flag.String("platform", "", "Platform of the video URL (facebook, instagram, tiktok, ...)")
	videoURL := flag.String("url", "", "Video URL to download")
	paste := flag.Bool("paste", false, "Read the URL from standard input instead of -url")
	outputDir := flag.String("output", "", "Output directory (overrides config)")
	previewOnly := flag.Bool("preview-only", false, "Resolve the preview and exit without downloading")
	withTUI := flag.Bool("tui", false, "Render a terminal progress view")
	noHistory := flag.Bool("no-history", false, "Do not record the download in history")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("vidgrab %s (built %s)\n", Version, BuildTime)
		os.Exit(0)
	}

	logOut := io.Writer(os.Stderr)
	if *withTUI {
		// The progress view owns the terminal.
		logOut = io.Discard
	}
	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if *outputDir != "" {
		cfg.Download.OutputDir = *outputDir
	}

	if *platformName == "" {
		fmt.Fprintln(os.Stderr, "error: -platform is required")
		os.Exit(2)
	}

	rawURL := *videoURL
	if *paste {
		rawURL, err = stdinClipboard{}.Read()
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: could not read URL from stdin: %v\n", err)
			os.Exit(2)
		}
	}
	if rawURL == "" {
		fmt.Fprintln(os.Stderr, "error: provide a URL with -url or -paste")
		os.Exit(2)
	}

	registry := platform.NewRegistry(cfg.Platforms)
	rule, err := registry.Rule(domain.Platform(*platformName))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}

	var store history.Store
	if cfg.History.Enabled && !*noHistory {
		store, err = history.NewSQLiteStore(cfg.History.Path)
		if err != nil {
			logger.Warn("history disabled", "error", err)
			store = nil
		} else {
			defer store.Close()
		}
	}

	ctrl := session.New(cfg.Download, rule, session.Deps{
		Previewer: preview.NewFetcher(cfg.Download),
		Streams:   session.StreamClient{Client: stream.NewClient(cfg.Download)},
		Retriever: saver.NewRetriever(cfg.Download, saver.NewDiskSaver(cfg.Download.OutputDir, cfg.Download.TempDir)),
		History:   store,
		Logger:    logger,
	})
	defer ctrl.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if *withTUI {
		os.Exit(runWithTUI(ctx, ctrl, rawURL, *previewOnly))
	}
	os.Exit(run(ctx, ctrl, rawURL, *previewOnly))
}

// run drives the session with log output only.
func run(ctx context.Context, ctrl *session.Controller, rawURL string, previewOnly bool) int {
	if err := ctrl.Preview(ctx, rawURL); err != nil {
		fmt.Fprintf(os.Stderr, "preview failed: %v\n", err)
		return 1
	}

	sess := ctrl.Session()
	if previewOnly {
		json.NewEncoder(os.Stdout).Encode(sess.PreviewMedia)
		return 0
	}

	if err := ctrl.Download(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "download failed: %v\n", err)
		return 1
	}

	sess = ctrl.Session()
	if sess.FallbackURL != "" {
		fmt.Printf("server could not download this video; open it manually:\n%s\n", sess.FallbackURL)
		return 0
	}
	if sess.SavedPath == "" {
		// Stream broke after 100%; the server finished but no file came back.
		fmt.Println("download finished on the server, but the connection dropped before the file could be retrieved")
		return 0
	}
	fmt.Printf("saved %s\n", sess.SavedPath)
	return 0
}

// runWithTUI drives the session while a progress view owns the terminal.
func runWithTUI(ctx context.Context, ctrl *session.Controller, rawURL string, previewOnly bool) int {
	view := tui.NewProgressView()

	result := make(chan int, 1)
	go func() {
		code := 0
		if err := ctrl.Preview(ctx, rawURL); err != nil {
			code = 1
		} else if !previewOnly {
			if err := ctrl.Download(ctx); err != nil {
				code = 1
			}
		}
		view.Update(ctrl.Session())
		result <- code
		// Leave the final frame on screen briefly before tearing down.
		time.Sleep(1500 * time.Millisecond)
		view.Stop()
	}()

	// Poll snapshots; the controller is the source of truth.
	stopPoll := make(chan struct{})
	go func() {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stopPoll:
				return
			case <-ticker.C:
				view.Update(ctrl.Session())
			}
		}
	}()

	if err := view.Run(); err != nil {
		close(stopPoll)
		return 1
	}
	close(stopPoll)

	select {
	case code := <-result:
		return code
	default:
		// User quit before the session finished.
		ctrl.Close()
		return 130
	}
}
