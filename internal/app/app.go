package app

import (
	"context"
	"fmt"
	"sync"

	"cronboard/internal/board"
	"cronboard/internal/config"
	"cronboard/internal/eventbus"
	"cronboard/internal/httpapi"
	"cronboard/internal/storage"
	"cronboard/internal/tz"
	logx "cronboard/pkg/logx"
)

// App wires config, logging, storage, the board and the HTTP API together
// and owns their lifecycles.
type App struct {
	cfgPath string

	cfgm *config.Manager

	log  logx.Logger
	logs *logx.Service

	bus      eventbus.Bus
	store    storage.Store
	channels *channelSet
	board    *board.Service
	api      *httpapi.Server

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLogConfig(cfg))
	log = log.With(logx.String("comp", "app"))

	bus := eventbus.New()

	stCfg, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(stCfg, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}
	log.Info("storage ready", logx.String("driver", stCfg.Driver), logx.String("path", stCfg.Path))

	channels := newChannelSet(cfg.Board.Channels)
	boardSvc := board.NewService(board.Config{
		DefaultTimezone:      cfg.Board.Timezone,
		DefaultMaxConcurrent: cfg.Board.MaxConcurrent,
		HistoryLimit:         cfg.Board.HistoryLimit,
	}, store, bus, channels, log.With(logx.String("comp", "board")))

	apiCfg, err := mapAPIConfig(cfg)
	if err != nil {
		return nil, err
	}
	api := httpapi.New(apiCfg, boardSvc, log)

	return &App{
		cfgPath:  cfgPath,
		cfgm:     cfgm,
		log:      log,
		logs:     logSvc,
		bus:      bus,
		store:    store,
		channels: channels,
		board:    boardSvc,
		api:      api,
	}, nil
}

// Board exposes the task service for embedding callers (tests, CLIs).
func (a *App) Board() *board.Service { return a.board }

// Addr reports the HTTP API listen address once started.
func (a *App) Addr() string { return a.api.Addr() }

func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		return validateConfig(cfg)
	})

	if err := a.api.Start(runCtx); err != nil {
		cancel()
		return err
	}

	// Hot reload: logging, board defaults, and the known-channel set follow
	// the file; storage driver and listen address need a restart.
	updates := a.cfgm.Subscribe(4)
	a.wg.Add(2)
	go func() {
		defer a.wg.Done()
		if err := a.cfgm.Watch(runCtx); err != nil {
			a.log.Warn("config watch stopped", logx.Err(err))
		}
	}()
	go func() {
		defer a.wg.Done()
		defer a.cfgm.Unsubscribe(updates)
		for {
			select {
			case <-runCtx.Done():
				return
			case cfg, ok := <-updates:
				if !ok {
					return
				}
				a.logs.Apply(mapLogConfig(cfg))
				a.channels.replace(cfg.Board.Channels)
				a.board.ApplyConfig(board.Config{
					DefaultTimezone:      cfg.Board.Timezone,
					DefaultMaxConcurrent: cfg.Board.MaxConcurrent,
					HistoryLimit:         cfg.Board.HistoryLimit,
				})
				a.log.Info("config applied", logx.String("path", a.cfgPath))
			}
		}
	}()
	return nil
}

func (a *App) Stop(ctx context.Context) error {
	if a.cancel != nil {
		a.cancel()
	}
	a.api.Stop(ctx)
	a.wg.Wait()

	var first error
	if err := a.store.Close(); err != nil {
		a.log.Warn("store close", logx.Err(err))
		first = err
	}
	_ = a.logs.Close()
	return first
}

// channelSet is the board's known-channel provider, swappable on reload.
type channelSet struct {
	mu  sync.RWMutex
	ids map[string]struct{}
}

func newChannelSet(ids []string) *channelSet {
	cs := &channelSet{}
	cs.replace(ids)
	return cs
}

func (c *channelSet) replace(ids []string) {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	c.mu.Lock()
	c.ids = set
	c.mu.Unlock()
}

func (c *channelSet) KnownChannelIDs() map[string]struct{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]struct{}, len(c.ids))
	for id := range c.ids {
		out[id] = struct{}{}
	}
	return out
}

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", cfg.Storage.BusyTimeout, 0)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busy,
	}, nil
}

func mapAPIConfig(cfg *config.Config) (httpapi.Config, error) {
	read, err := config.ParseDurationOrDefault("api.read_timeout", cfg.API.ReadTimeout, 0)
	if err != nil {
		return httpapi.Config{}, err
	}
	write, err := config.ParseDurationOrDefault("api.write_timeout", cfg.API.WriteTimeout, 0)
	if err != nil {
		return httpapi.Config{}, err
	}
	idle, err := config.ParseDurationOrDefault("api.idle_timeout", cfg.API.IdleTimeout, 0)
	if err != nil {
		return httpapi.Config{}, err
	}
	return httpapi.Config{
		Addr:         cfg.API.Addr,
		RatePerSec:   cfg.API.RatePerSec,
		ReadTimeout:  read,
		WriteTimeout: write,
		IdleTimeout:  idle,
	}, nil
}

// validateConfig rejects a bad hot-reload before it is committed.
func validateConfig(cfg *config.Config) error {
	if cfg.Board.MaxConcurrent < 0 {
		return fmt.Errorf("board.max_concurrent must be >= 0")
	}
	if cfg.Board.HistoryLimit < 0 {
		return fmt.Errorf("board.history_limit must be >= 0")
	}
	if cfg.API.RatePerSec < 0 {
		return fmt.Errorf("api.rate_per_sec must be >= 0")
	}
	if _, err := tz.Load(cfg.Board.Timezone); err != nil {
		return err
	}
	if _, err := mapStorageConfig(cfg); err != nil {
		return err
	}
	if _, err := mapAPIConfig(cfg); err != nil {
		return err
	}
	return nil
}
