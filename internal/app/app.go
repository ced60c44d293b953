// Package app は設定からストレージ・ユースケース・取り込みパイプラインを組み立てます。
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/ogurasousui/codex-contact-directory/internal/adapters/http/handler"
	"github.com/ogurasousui/codex-contact-directory/internal/adapters/inbox"
	pgrepo "github.com/ogurasousui/codex-contact-directory/internal/adapters/repository/postgres"
	"github.com/ogurasousui/codex-contact-directory/internal/adapters/repository/sqlstore"
	"github.com/ogurasousui/codex-contact-directory/internal/core/employee"
	"github.com/ogurasousui/codex-contact-directory/internal/core/ingest"
	"github.com/ogurasousui/codex-contact-directory/internal/platform/config"
	pg "github.com/ogurasousui/codex-contact-directory/internal/platform/db/postgres"
)

// App はプロセス内で共有する依存をまとめます。
type App struct {
	Config    *config.Config
	Employees *employee.Service
	Pipeline  *ingest.Pipeline

	logger *slog.Logger
	ping   func(context.Context) error
	close  func()
}

type storage struct {
	repo  employee.Repository
	tx    employee.TransactionManager
	ping  func(context.Context) error
	close func()
}

// New は設定に従って App を構築します。呼び出し側は Close を呼ぶ必要があります。
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	store, err := openStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("storage ready", "driver", cfg.Storage.Driver)

	decoder, err := ingest.NewTextDecoder(cfg.Ingest.DefaultCharset)
	if err != nil {
		store.close()
		return nil, fmt.Errorf("app: %w", err)
	}

	svc := employee.NewService(store.repo, nil, store.tx)
	selector := ingest.NewSelector(ingest.DefaultDateNormalizer(), decoder)
	limiter := ingest.NewLimiter(cfg.Ingest.MaxConcurrent, cfg.Ingest.MaxWait)

	return &App{
		Config:    cfg,
		Employees: svc,
		Pipeline:  ingest.NewPipeline(selector, svc, limiter),
		logger:    logger,
		ping:      store.ping,
		close:     store.close,
	}, nil
}

// Handler は HTTP API のハンドラーを返します。
func (a *App) Handler() http.Handler {
	return handler.NewRouter(handler.RouterConfig{
		Employees:      a.Employees,
		Ingester:       a.Pipeline,
		APIKey:         a.Config.Security.APIKey,
		MaxUploadBytes: a.Config.Ingest.MaxUploadBytes,
		CORSOrigins:    a.Config.Server.CORSAllowedOrigins,
		RequestTimeout: a.Config.Server.WriteTimeout,
		Ready:          a.Ping,
	})
}

// Inbox は inbox 監視が有効な場合に Watcher を返します。無効なら nil です。
func (a *App) Inbox() (*inbox.Watcher, error) {
	if !a.Config.Inbox.Enabled() {
		return nil, nil
	}
	return inbox.New(a.Pipeline, inbox.Options{
		Dir:           a.Config.Inbox.Dir,
		SweepSchedule: a.Config.Inbox.SweepSchedule,
		Debounce:      a.Config.Inbox.Debounce,
		Logger:        a.logger.With("component", "inbox"),
	})
}

// Ping はストレージへの疎通を確認します。
func (a *App) Ping(ctx context.Context) error {
	return a.ping(ctx)
}

// Close はストレージ接続を解放します。
func (a *App) Close() {
	if a.close != nil {
		a.close()
	}
}

func openStorage(ctx context.Context, cfg *config.Config) (*storage, error) {
	switch cfg.Storage.Driver {
	case config.DriverPostgres, "":
		pool, err := pg.NewPool(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("app: initialize database pool: %w", err)
		}
		return &storage{
			repo:  pgrepo.NewEmployeeRepository(pool),
			tx:    pg.NewTransactionManager(pool),
			ping:  pool.Ping,
			close: pool.Close,
		}, nil
	case config.DriverSQLite, config.DriverMySQL:
		store, err := sqlstore.Open(ctx, cfg.Storage.Driver, cfg.Storage.DSN)
		if err != nil {
			return nil, fmt.Errorf("app: open %s store: %w", cfg.Storage.Driver, err)
		}
		return &storage{
			repo:  store,
			tx:    store,
			ping:  store.Ping,
			close: func() { store.Close() },
		}, nil
	default:
		return nil, fmt.Errorf("app: unsupported storage driver %q", cfg.Storage.Driver)
	}
}
