package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"EmojiArt/internal/config"
	"EmojiArt/internal/document"
	"EmojiArt/internal/export"
	"EmojiArt/internal/net"
	"EmojiArt/internal/palette"
	"EmojiArt/internal/state"
	"EmojiArt/internal/ui"
)

func main() {
	configPath := flag.String("config", "", "YAML configuration file")
	docPath := flag.String("doc", "", "document to open (default: the autosave file)")
	shareFlag := flag.Bool("share", false, "publish the document to viewers on the LAN")
	browse := flag.Duration("browse", 0, "list share hosts found within this time and exit")
	exportPath := flag.String("export", "", "write the document to this PDF file and exit")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Log.SlogLevel()}))
	slog.SetDefault(logger)

	if *docPath != "" {
		cfg.Document.Path = *docPath
	}
	if *shareFlag {
		cfg.Share.Enabled = true
	}

	switch {
	case *browse > 0:
		err = runBrowse(*browse)
	case *exportPath != "":
		err = runExport(cfg, *exportPath, logger)
	case strings.HasPrefix(flag.Arg(0), net.Scheme):
		runViewer(cfg, flag.Arg(0), logger)
	default:
		err = runHost(cfg, logger)
	}
	if err != nil {
		logger.Error("emojiart stopped", "error", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.LoadFile(path)
}

func runHost(cfg *config.Config, logger *slog.Logger) error {
	logger.Info("starting as host")
	a := ui.NewApp()

	path := documentPath(cfg)
	model, savePath, err := document.OpenForEditing(path)
	if err != nil {
		logger.Warn("document could not be opened; edits go to the recovery file",
			"path", path, "recovery", savePath, "error", err)
	} else {
		logger.Info("document opened", "path", savePath, "emojis", model.Len())
	}

	ctrl := document.New(model, document.Options{
		Loader:   newLoader(cfg),
		Dispatch: ui.Dispatch,
		Logger:   logger,
	})
	defer ctrl.Close()

	autosaver := document.NewAutosaver(ctrl, savePath, cfg.Document.AutosaveInterval, logger.With("component", "autosave"))
	defer func() {
		if err := autosaver.Close(); err != nil {
			logger.Error("final save failed", "path", savePath, "error", err)
		}
	}()

	store, err := palette.Open(cfg.Palettes.Path, cfg.Palettes.Store, logger.With("component", "palettes"))
	if err != nil {
		logger.Warn("palettes unavailable", "path", cfg.Palettes.Path, "error", err)
		store = nil
	} else {
		defer store.Close()
		logger.Debug("palettes loaded", "path", cfg.Palettes.Path, "store", store.Name())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var link string
	if cfg.Share.Enabled {
		share := net.NewShareServer(ctrl, logger.With("component", "share"))
		defer share.Close()
		go func() {
			if err := share.ListenAndServe(ctx, fmt.Sprintf(":%d", cfg.Share.Port)); err != nil {
				logger.Error("share server failed", "port", cfg.Share.Port, "error", err)
			}
		}()

		ip, err := net.GetOutgoingIP()
		if err != nil {
			logger.Warn("no address for share link", "error", err)
			ip = "127.0.0.1"
		}
		link = net.ShareLink(ip, cfg.Share.Port)
		logger.Info("sharing", "link", link)

		if cfg.Share.Advertise {
			adv, err := net.Advertise(cfg.Share.Name, cfg.Share.Port, share.Session())
			if err != nil {
				logger.Warn("mdns advertise failed", "error", err)
			} else {
				defer adv.Shutdown()
			}
		}
	}

	ui.RunApp(a, ui.Options{
		Title:      "EmojiArt",
		Controller: ctrl,
		Undo:       state.NewUndoStack(),
		Palettes:   store,
		ShareLink:  link,
		Export:     exportOptions(cfg),
		Logger:     logger,
	})
	return nil
}

func runViewer(cfg *config.Config, link string, logger *slog.Logger) {
	logger.Info("starting as viewer", "link", link)
	a := ui.NewApp()

	ctrl := document.New(state.New(), document.Options{
		Loader:   newLoader(cfg),
		Dispatch: ui.Dispatch,
		Logger:   logger,
	})
	defer ctrl.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	v := &net.Viewer{
		Logger:     logger.With("component", "viewer"),
		OnDocument: func(_ net.Message, m state.Model) { ctrl.Replace(m) },
	}
	go func() {
		// Give the window a moment to come up before the first document lands.
		time.Sleep(300 * time.Millisecond)
		if err := v.Run(ctx, link); err != nil {
			logger.Error("viewer disconnected", "link", link, "error", err)
		}
	}()

	ui.RunApp(a, ui.Options{
		Title:      "EmojiArt Viewer",
		Controller: ctrl,
		ShareLink:  link,
		Export:     exportOptions(cfg),
		ReadOnly:   true,
		Logger:     logger,
	})
}

func runExport(cfg *config.Config, out string, logger *slog.Logger) error {
	return export.ExportDocument(documentPath(cfg), out, newLoader(cfg), exportOptions(cfg), logger)
}

func runBrowse(timeout time.Duration) error {
	return net.Browse(timeout, func(h net.Host) {
		fmt.Printf("%s\t%s\n", h.Name, h.Link())
	})
}

func documentPath(cfg *config.Config) string {
	if cfg.Document.Path != "" {
		return cfg.Document.Path
	}
	return cfg.Document.Autosave
}

func newLoader(cfg *config.Config) document.Loader {
	return document.NewHTTPLoader(document.LoaderConfig{
		Timeout:   cfg.Fetch.Timeout,
		MaxBytes:  cfg.Fetch.MaxBytes,
		UserAgent: cfg.Fetch.UserAgent,
	})
}

func exportOptions(cfg *config.Config) export.Options {
	return export.Options{
		PageSize:    cfg.Export.PageSize,
		Orientation: cfg.Export.Orientation,
	}
}
