package daemon

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/rescue-app/rescue/internal/api"
	"github.com/rescue-app/rescue/internal/auth"
	"github.com/rescue-app/rescue/internal/bus"
	"github.com/rescue-app/rescue/internal/chat"
	"github.com/rescue-app/rescue/internal/config"
	"github.com/rescue-app/rescue/internal/feed"
	"github.com/rescue-app/rescue/internal/lock"
	"github.com/rescue-app/rescue/internal/logging"
	"github.com/rescue-app/rescue/internal/media"
	"github.com/rescue-app/rescue/internal/middleware"
	"github.com/rescue-app/rescue/internal/notify"
	"github.com/rescue-app/rescue/internal/profile"
	"github.com/rescue-app/rescue/internal/realtime"
	"github.com/rescue-app/rescue/internal/status"
	"github.com/rescue-app/rescue/internal/store"
)

// Params holds the resolved profile configuration passed to the fx module.
type Params struct {
	ProfileName string
	Config      *config.Config
	SocketPath  string // optional override for testing; empty = use default
}

func (p Params) socketPath() string {
	if p.SocketPath != "" {
		return p.SocketPath
	}
	return profile.SocketPath(p.ProfileName)
}

func (p Params) config() *config.Config {
	if p.Config == nil {
		return config.Default()
	}
	return p.Config
}

// Limiters maps full method names to their per-caller rate limiter.
type Limiters map[string]*middleware.LimiterStore

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideBus,
			provideLock,
			provideStore,
			provideHub,
			provideChatBackend,
			provideStateMachine,
			provideFeedSource,
			provideJWT,
			provideLimiters,
			provideSigner,
			provideNotifier,
			api.NewAccountService,
			provideFeedService,
			api.NewPostService,
			provideChatService,
			provideHealthService,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(profile.LogPath(p.ProfileName), p.ProfileName)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := profile.EnsureDir(p.ProfileName); err != nil {
		return nil, err
	}
	logger.Info("acquiring profile lock", zap.String("profile", p.ProfileName))
	l, err := lock.Acquire(profile.Dir(p.ProfileName))
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired")
	return l, nil
}

// provideStore takes the lock so the database is never opened by a second daemon.
func provideStore(p Params, _ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
	dbPath := profile.DBPath(p.ProfileName)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("from", result.From), zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideHub(db *store.DB, b *bus.Bus, logger *zap.Logger) *realtime.Hub {
	return realtime.NewHub(db, b, logger)
}

func provideChatBackend(db *store.DB, b *bus.Bus) *chat.LocalBackend {
	return chat.NewLocalBackend(db, b)
}

func provideStateMachine(db *store.DB, b *bus.Bus) *status.Machine {
	return status.NewMachine(db, b)
}

func provideFeedSource(p Params, db *store.DB) *feed.StoreSource {
	return feed.NewStoreSource(db, p.config().Feed.PageSize)
}

func provideJWT(p Params, logger *zap.Logger) (*auth.JWTManager, error) {
	cfg := p.config().Auth
	secret := cfg.JWTSecret
	if secret == "" {
		var err error
		secret, err = loadOrCreateSecret(filepath.Join(profile.Dir(p.ProfileName), "jwt.secret"))
		if err != nil {
			return nil, fmt.Errorf("jwt secret: %w", err)
		}
		logger.Info("using profile jwt secret; set RESCUE_JWT_SECRET to override")
	}
	return auth.NewJWTManager(secret, cfg.TokenTTL.Duration)
}

// loadOrCreateSecret reads a signing secret from path, generating one on first use.
func loadOrCreateSecret(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err == nil && len(strings.TrimSpace(string(data))) > 0 {
		return strings.TrimSpace(string(data)), nil
	}
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return "", err
	}
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	secret := hex.EncodeToString(buf)
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return "", err
	}
	return secret, os.WriteFile(path, []byte(secret+"\n"), 0600)
}

func provideLimiters(p Params) Limiters {
	l := p.config().Limits
	login := middleware.NewLimiterStore(l.LoginPerMinute, l.Burst, time.Minute)
	return Limiters{
		api.AccountLogin:    login,
		api.AccountRegister: login,
		api.ChatAppend:      middleware.NewLimiterStore(l.SendPerMinute, l.Burst, time.Minute),
		api.PostReport:      middleware.NewLimiterStore(l.ReportPerMinute, l.Burst, time.Minute),
	}
}

// provideSigner returns nil when no bucket is configured; UploadURL then
// answers Unavailable.
func provideSigner(p Params, logger *zap.Logger) (*media.Signer, error) {
	cfg := p.config().Media
	if cfg.Bucket == "" {
		logger.Info("media uploads disabled: no bucket configured")
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s, err := media.New(ctx, cfg.Bucket, cfg.Region, cfg.URLExpiry.Duration)
	if err != nil {
		return nil, err
	}
	logger.Info("media uploads enabled", zap.String("bucket", cfg.Bucket))
	return s, nil
}

// provideNotifier returns nil when push is not configured.
func provideNotifier(p Params, db *store.DB, b *bus.Bus, logger *zap.Logger) (*notify.Notifier, error) {
	creds := p.config().Push.CredentialsFile
	if creds == "" {
		logger.Info("push notifications disabled: no credentials file")
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := notify.NewFCMClient(ctx, creds)
	if err != nil {
		return nil, err
	}
	return notify.NewNotifier(client, db, b, logger), nil
}

func provideFeedService(src *feed.StoreSource) *api.FeedService {
	return api.NewFeedService(src)
}

func provideChatService(db *store.DB, backend *chat.LocalBackend, hub *realtime.Hub) *api.ChatService {
	return api.NewChatService(db, backend, hub)
}

func provideHealthService(p Params) *api.HealthService {
	return api.NewHealthService(p.ProfileName)
}

func registerLifecycle(lc fx.Lifecycle, srv *Server, lk *lock.Lock, db *store.DB, hub *realtime.Hub, notifier *notify.Notifier, limiters Limiters, b *bus.Bus, logger *zap.Logger) {
	var cancel context.CancelFunc
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			var ctx context.Context
			ctx, cancel = context.WithCancel(context.Background())

			// Start the hub before serving so no WatchRoom misses a change.
			hub.Start(ctx)
			if notifier != nil {
				notifier.Start(ctx)
			}

			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("gRPC server error", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			srv.Stop(ctx)
			if notifier != nil {
				notifier.Stop()
			}
			hub.Stop()
			if cancel != nil {
				cancel()
			}
			for _, l := range limiters {
				l.Stop()
			}
			b.Close()
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped", zap.Int64("dropped_events", b.Dropped()))
			_ = logger.Sync()
			return nil
		},
	})
}
