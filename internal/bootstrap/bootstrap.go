// Package bootstrap builds the dashsync stack from a config.Config.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	stdslog "log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/unkn0wn-root/dashsync"
	"github.com/unkn0wn-root/dashsync/api"
	"github.com/unkn0wn-root/dashsync/config"
	"github.com/unkn0wn-root/dashsync/genstore"
	asynchook "github.com/unkn0wn-root/dashsync/hooks/async"
	"github.com/unkn0wn-root/dashsync/kv/bolt"
	"github.com/unkn0wn-root/dashsync/live"
	liveredis "github.com/unkn0wn-root/dashsync/live/redis"
	"github.com/unkn0wn-root/dashsync/live/ws"
	logruslog "github.com/unkn0wn-root/dashsync/log/logrus"
	slogadapter "github.com/unkn0wn-root/dashsync/log/slog"
	zaplog "github.com/unkn0wn-root/dashsync/log/zap"
	"github.com/unkn0wn-root/dashsync/provider"
	"github.com/unkn0wn-root/dashsync/provider/bigcache"
	"github.com/unkn0wn-root/dashsync/provider/lru"
	redisprov "github.com/unkn0wn-root/dashsync/provider/redis"
	"github.com/unkn0wn-root/dashsync/provider/ristretto"
	"github.com/unkn0wn-root/dashsync/sloghooks"
	"github.com/unkn0wn-root/dashsync/stepup"
)

const genTTL = 24 * time.Hour

// App holds everything a command needs. Close releases it in reverse order.
type App struct {
	Config   *config.Config
	Log      dashsync.Logger
	Store    *bolt.Store
	API      *api.Client
	Cache    *dashsync.Cache
	Verifier stepup.Verifier // nil => server-side master key check

	rdb     goredis.UniversalClient
	hooks   *asynchook.Hooks
	closers []func() error

	mu     sync.Mutex
	bridge *live.Bridge
}

// Build wires the cache, its provider and generation store, the local state
// store and the API client. It does not contact the server.
func Build(ctx context.Context, cfg *config.Config, logOut io.Writer) (_ *App, err error) {
	a := &App{Config: cfg}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	var hookLog *stdslog.Logger
	a.Log, hookLog, err = NewLogger(cfg.Logging, logOut)
	if err != nil {
		return nil, err
	}

	a.Store, err = bolt.Open(cfg.State.Path, time.Second)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: state: %w", err)
	}
	a.closers = append(a.closers, a.Store.Close)

	a.API, err = api.New(api.Options{
		BaseURL: cfg.API.URL,
		Store:   a.Store,
		Timeout: cfg.API.Timeout,
		MaxBody: cfg.Cache.MaxPayload,
		Logger:  a.Log,
	})
	if err != nil {
		return nil, err
	}

	if cfg.MasterKeyHash != "" {
		v, err := stepup.NewHashVerifier(cfg.MasterKeyHash)
		if err != nil {
			return nil, err
		}
		a.Verifier = v
	}

	prov, err := NewProvider(cfg.Cache, a.redis)
	if err != nil {
		return nil, err
	}
	var gens genstore.GenStore
	if cfg.Cache.GenStore == "redis" {
		gens = genstore.NewRedis(a.redis(), cfg.Cache.Namespace, genTTL)
	}

	var hooks dashsync.Hooks
	if hookLog != nil {
		a.hooks = asynchook.New(sloghooks.New(hookLog, sloghooks.Options{DiscardEvery: 10, SelfHealEvery: 10}), 1, 256)
		hooks = a.hooks
	}

	a.Cache, err = dashsync.New(dashsync.Options{
		Provider:   prov,
		Namespace:  cfg.Cache.Namespace,
		GenStore:   gens,
		Logger:     a.Log,
		Hooks:      hooks,
		StaleTime:  cfg.Cache.StaleTime,
		DefaultTTL: cfg.Cache.TTL,
		OnUnauthorized: func() {
			a.Log.Warn("session expired, cache cleared", nil)
		},
	})
	if err != nil {
		_ = prov.Close(ctx)
		return nil, err
	}
	return a, nil
}

// redis lazily creates the one client shared by every redis-backed part.
func (a *App) redis() goredis.UniversalClient {
	if a.rdb == nil {
		c := a.Config.Redis
		a.rdb = goredis.NewClient(&goredis.Options{Addr: c.Addr, Password: c.Password, DB: c.DB})
		a.closers = append(a.closers, a.rdb.Close)
	}
	return a.rdb
}

// Bridge connects the configured live transport on first use. It returns
// (nil, nil) when live updates are switched off.
func (a *App) Bridge(ctx context.Context) (*live.Bridge, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.bridge != nil {
		return a.bridge, nil
	}

	var t live.Transport
	switch a.Config.Live.Transport {
	case "none":
		return nil, nil
	case "redis":
		t = liveredis.New(ctx, a.redis(), liveredis.Options{Prefix: a.Config.Live.Prefix, Logger: a.Log})
	default:
		tok, err := a.API.Token(ctx)
		if err != nil {
			return nil, err
		}
		wt, err := ws.Dial(ctx, a.Config.Live.URL, ws.Options{
			Header: http.Header{"Authorization": {"Bearer " + tok}},
			Logger: a.Log,
		})
		if err != nil {
			return nil, fmt.Errorf("bootstrap: live: %w", err)
		}
		t = wt
	}
	a.bridge = live.New(a.Cache, t, live.Options{Logger: a.Log})
	return a.bridge, nil
}

func (a *App) Close() error {
	var errs []error
	a.mu.Lock()
	if a.bridge != nil {
		errs = append(errs, a.bridge.Close())
		a.bridge = nil
	}
	a.mu.Unlock()
	if a.Cache != nil {
		errs = append(errs, a.Cache.Close(context.Background()))
	}
	if a.hooks != nil {
		a.hooks.Close()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

// NewProvider builds the payload store named by cfg.Provider. rdb is only
// called for the redis provider.
func NewProvider(cfg config.CacheConfig, rdb func() goredis.UniversalClient) (provider.Provider, error) {
	var (
		p   provider.Provider
		err error
	)
	switch cfg.Provider {
	case "lru":
		p, err = lru.New(lru.Config{Size: cfg.Size, TTL: cfg.TTL})
	case "ristretto":
		p, err = ristretto.New(ristretto.Config{MaxCost: int64(cfg.Size) << 10, Metrics: true})
	case "bigcache":
		p, err = bigcache.New(bigcache.Config{LifeWindow: cfg.TTL, HardMaxCacheSizeMB: cfg.Size})
	case "redis":
		p, err = redisprov.New(redisprov.Config{Client: rdb(), Match: dashsync.StoragePattern(cfg.Namespace)})
	default:
		return nil, fmt.Errorf("bootstrap: unknown cache provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %s provider: %w", cfg.Provider, err)
	}
	return p, nil
}

// NewLogger builds the configured backend writing to out. The second result
// is the slog logger behind it, nil for other backends.
func NewLogger(cfg config.LoggingConfig, out io.Writer) (dashsync.Logger, *stdslog.Logger, error) {
	jsonOut := useJSON(cfg.Format, out)
	switch cfg.Backend {
	case "zap":
		lvl, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, nil, fmt.Errorf("bootstrap: log level: %w", err)
		}
		enc := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
		if jsonOut {
			enc = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
		}
		return zaplog.New(zap.New(zapcore.NewCore(enc, zapcore.AddSync(out), lvl)), "dashsync"), nil, nil
	case "logrus":
		lvl, err := logrus.ParseLevel(cfg.Level)
		if err != nil {
			return nil, nil, fmt.Errorf("bootstrap: log level: %w", err)
		}
		l := logrus.New()
		l.SetOutput(out)
		l.SetLevel(lvl)
		if jsonOut {
			l.SetFormatter(&logrus.JSONFormatter{})
		}
		return logruslog.New(l, "dashsync"), nil, nil
	default:
		var lvl stdslog.Level
		if err := lvl.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, nil, fmt.Errorf("bootstrap: log level: %w", err)
		}
		hopts := &stdslog.HandlerOptions{Level: lvl}
		var h stdslog.Handler = stdslog.NewTextHandler(out, hopts)
		if jsonOut {
			h = stdslog.NewJSONHandler(out, hopts)
		}
		l := stdslog.New(h)
		return slogadapter.New(l, "dashsync"), l, nil
	}
}

// useJSON resolves "auto" to text on a terminal and JSON otherwise.
func useJSON(format string, out io.Writer) bool {
	switch strings.ToLower(format) {
	case "json":
		return true
	case "text":
		return false
	}
	f, ok := out.(interface{ Fd() uintptr })
	if !ok {
		return true
	}
	return !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd())
}
