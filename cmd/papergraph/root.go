package main

import (
	"fmt"
	"io"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/csheth/papergraph/internal/api"
	"github.com/csheth/papergraph/internal/config"
	"github.com/csheth/papergraph/internal/graph"
	"github.com/csheth/papergraph/internal/localstore"
	"github.com/csheth/papergraph/internal/logging"
	"github.com/csheth/papergraph/internal/pdftext"
	"github.com/csheth/papergraph/internal/tui"
	"github.com/csheth/papergraph/internal/workspace"
)

type app struct {
	v          *viper.Viper
	configPath string
	cfg        config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.New()}
	cmd := &cobra.Command{
		Use:           "papergraph",
		Short:         "Explore a citation graph of research papers from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if f := cmd.Flags().Lookup("no-alt-screen"); f != nil && f.Changed {
				a.v.Set("ui.alt_screen", false)
			}
			return a.loadConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runTUI()
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "config file (default ./papergraph.yaml or ~/.config/papergraph/papergraph.yaml)")
	flags.String("api-url", api.DefaultBaseURL, "backend base URL")
	flags.Duration("api-timeout", 0, "per-request timeout, 0 disables it")
	flags.String("cache-dir", config.DefaultCacheDir(), "directory for the local cache, PDFs and logs")
	flags.String("cache-backend", localstore.BackendFile, "local cache backend: file or badger")
	flags.String("log-file", "", "log file (default <cache-dir>/papergraph.log)")
	flags.Bool("debug", false, "log at debug level")
	cmd.Flags().Bool("no-alt-screen", false, "draw inline instead of on the alternate screen")

	for key, flag := range map[string]string{
		"api.url":       "api-url",
		"api.timeout":   "api-timeout",
		"cache.dir":     "cache-dir",
		"cache.backend": "cache-backend",
		"log.file":      "log-file",
		"debug":         "debug",
	} {
		_ = a.v.BindPFlag(key, flags.Lookup(flag))
	}

	cmd.AddCommand(newHistoryCmd(a), newVersionCmd())
	return cmd
}

func (a *app) loadConfig() error {
	if _, err := config.ReadFile(a.v, a.configPath); err != nil {
		return err
	}
	cfg, err := config.Load(a.v)
	if err != nil {
		return err
	}
	a.cfg = cfg
	return nil
}

func (a *app) logger() (*log.Logger, io.Closer, error) {
	logger, closer, err := logging.New(logging.Options{File: a.cfg.Log.File, Debug: a.cfg.Debug})
	if err != nil {
		return nil, nil, fmt.Errorf("open log: %w", err)
	}
	return logger, closer, nil
}

// openStore falls back to an in-memory store so a broken cache never blocks startup.
func (a *app) openStore(logger *log.Logger) localstore.Store {
	store, err := localstore.Open(localstore.Config{
		Backend: a.cfg.Cache.Backend,
		Dir:     a.cfg.Cache.Dir,
		Logger:  logger.WithPrefix("store"),
	})
	if err != nil {
		logger.Warn("local cache unavailable, state will not persist", "dir", a.cfg.Cache.Dir, "err", err)
		return localstore.NewMemory()
	}
	return store
}

func (a *app) runTUI() error {
	logger, closer, err := a.logger()
	if err != nil {
		return err
	}
	defer closer.Close()

	store := a.openStore(logger)
	defer store.Close()

	client := api.New(api.Config{
		BaseURL: a.cfg.API.URL,
		Timeout: a.cfg.API.Timeout,
		Logger:  logger.WithPrefix("api"),
	})
	canvas := graph.NewCanvas(80, 24)
	ws := workspace.New(workspace.Config{
		Backend:  client,
		Storage:  store,
		Renderer: canvas,
		Logger:   logger.WithPrefix("workspace"),
	})

	pdfs, err := pdftext.NewCache(pdftext.CacheConfig{
		Dir:    filepath.Join(a.cfg.Cache.Dir, "pdfs"),
		Logger: logger.WithPrefix("pdf"),
	})
	if err != nil {
		logger.Warn("full-text preview disabled", "err", err)
		pdfs = nil
	}

	opts := []tea.ProgramOption{tea.WithMouseCellMotion()}
	if a.cfg.UI.AltScreen {
		opts = append(opts, tea.WithAltScreen())
	}
	program := tea.NewProgram(tui.New(tui.Config{
		Workspace:  ws,
		Canvas:     canvas,
		PDF:        pdfs,
		BackendURL: a.cfg.API.URL,
		Logger:     logger.WithPrefix("tui"),
	}), opts...)

	logger.Info("starting", "api", a.cfg.API.URL, "cache", a.cfg.Cache.Dir, "backend", a.cfg.Cache.Backend)
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("program error: %w", err)
	}
	return nil
}
