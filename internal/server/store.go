package server

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/linkshift/linkshift/internal/config"
	"github.com/linkshift/linkshift/internal/match"
	"github.com/linkshift/linkshift/internal/observability"
	"github.com/linkshift/linkshift/internal/rules"
	"github.com/linkshift/linkshift/internal/trace"
)

// Snapshot is everything a request needs, built once per configuration.
// It is never mutated after Build returns.
type Snapshot struct {
	Config        *config.Config
	Index         *match.Index
	Settings      trace.Settings
	DefaultDomain string
	AutoRedirect  bool
	Built         time.Time
}

// Build validates cfg and compiles it into a snapshot.
func Build(cfg *config.Config) (*Snapshot, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	compiled, err := rules.CompileAll(cfg)
	if err != nil {
		return nil, err
	}
	matchCfg := match.ConfigFrom(cfg.Matching, cfg.Settings.CaseSensitive)
	return &Snapshot{
		Config:        cfg,
		Index:         match.NewIndex(compiled, matchCfg),
		Settings:      trace.SettingsFromConfig(cfg.Settings),
		DefaultDomain: cfg.Settings.DefaultDomain,
		AutoRedirect:  cfg.Settings.AutoRedirect,
		Built:         time.Now(),
	}, nil
}

// Store holds the current snapshot and swaps it when the config file
// changes. Readers never block on a reload.
type Store struct {
	path    string
	current atomic.Pointer[Snapshot]
	group   singleflight.Group

	mu      sync.Mutex
	modTime time.Time

	metrics *observability.Metrics
	logger  *slog.Logger
}

// Open loads the config at path and builds the first snapshot.
func Open(path string, logger *slog.Logger, metrics *observability.Metrics) (*Store, error) {
	s := &Store{path: path, logger: logger, metrics: metrics}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	if _, err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewStaticStore serves snap forever; Refresh and Reload are no-ops.
func NewStaticStore(snap *Snapshot) *Store {
	s := &Store{logger: slog.New(slog.DiscardHandler)}
	s.current.Store(snap)
	return s
}

func (s *Store) Snapshot() *Snapshot {
	return s.current.Load()
}

// Reload rebuilds the snapshot from disk. Concurrent callers share one
// load. On failure the previous snapshot stays in place.
func (s *Store) Reload() (*Snapshot, error) {
	if s.path == "" {
		return s.Snapshot(), nil
	}
	v, err, _ := s.group.Do("reload", func() (any, error) {
		info, err := os.Stat(s.path)
		if err != nil {
			return nil, fmt.Errorf("stat config: %w", err)
		}
		cfg, err := config.Load(s.path)
		if err != nil {
			return nil, err
		}
		snap, err := Build(cfg)
		if err != nil {
			return nil, err
		}
		s.current.Store(snap)
		s.mu.Lock()
		s.modTime = info.ModTime()
		s.mu.Unlock()
		return snap, nil
	})
	s.metrics.ObserveReload(err)
	if err != nil {
		return nil, err
	}
	snap := v.(*Snapshot)
	s.logger.Info("config loaded", "path", s.path, "rules", snap.Index.Len(), "hosts", snap.Index.Hosts())
	return snap, nil
}

// Refresh reloads when the config file's modification time moved.
func (s *Store) Refresh() error {
	if s.path == "" {
		return nil
	}
	info, err := os.Stat(s.path)
	if err != nil {
		return fmt.Errorf("stat config: %w", err)
	}
	s.mu.Lock()
	unchanged := info.ModTime().Equal(s.modTime)
	s.mu.Unlock()
	if unchanged {
		return nil
	}
	_, err = s.Reload()
	return err
}

// Watch calls Refresh every interval until done is closed. Reload errors are
// logged and the old snapshot keeps serving.
func (s *Store) Watch(done <-chan struct{}, interval time.Duration) {
	if s.path == "" || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := s.Refresh(); err != nil {
				s.logger.Warn("config reload failed", "path", s.path, "error", err)
			}
		}
	}
}
