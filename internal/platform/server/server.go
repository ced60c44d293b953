package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/ogurasousui/codex-contact-directory/internal/platform/config"
)

const defaultShutdownTimeout = 10 * time.Second

// Server は HTTP API サーバーと、任意のヘルスチェック用 gRPC サーバーのライフサイクルを管理します。
type Server struct {
	httpServer      *http.Server
	healthAddr      string
	grpcServer      *grpc.Server
	health          *health.Server
	shutdownTimeout time.Duration
	logger          *slog.Logger
}

// New は設定に従ってサーバーを構築します。GRPCHealthAddr が空なら gRPC サーバーは起動しません。
func New(cfg config.ServerConfig, handler http.Handler, logger *slog.Logger, opts ...grpc.ServerOption) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	shutdown := cfg.ShutdownTimeout
	if shutdown <= 0 {
		shutdown = defaultShutdownTimeout
	}

	s := &Server{
		httpServer: &http.Server{
			Addr:              cfg.ListenAddr,
			Handler:           handler,
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
		},
		healthAddr:      cfg.GRPCHealthAddr,
		shutdownTimeout: shutdown,
		logger:          logger,
	}

	if s.healthAddr != "" {
		s.grpcServer = grpc.NewServer(opts...)
		s.health = health.NewServer()
		s.health.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
		healthpb.RegisterHealthServer(s.grpcServer, s.health)
		reflection.Register(s.grpcServer)
	}

	return s
}

// Run は設定されたアドレスで待ち受け、コンテキストがキャンセルされると安全に停止します。
func (s *Server) Run(ctx context.Context) error {
	httpLis, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.httpServer.Addr, err)
	}

	var healthLis net.Listener
	if s.grpcServer != nil {
		healthLis, err = net.Listen("tcp", s.healthAddr)
		if err != nil {
			httpLis.Close()
			return fmt.Errorf("listen on %s: %w", s.healthAddr, err)
		}
	}

	return s.Serve(ctx, httpLis, healthLis)
}

// Serve は受け取ったリスナーでサーバーを起動します。healthLis は gRPC 無効時に nil を許容します。
func (s *Server) Serve(ctx context.Context, httpLis, healthLis net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("http server listening", "addr", httpLis.Addr().String())
		if err := s.httpServer.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	})

	if s.grpcServer != nil && healthLis != nil {
		s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
		g.Go(func() error {
			s.logger.Info("grpc health server listening", "addr", healthLis.Addr().String())
			if err := s.grpcServer.Serve(healthLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return fmt.Errorf("serve gRPC: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		return s.shutdown()
	})

	return g.Wait()
}

func (s *Server) shutdown() error {
	if s.health != nil {
		s.health.Shutdown()
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	err := s.httpServer.Shutdown(ctx)
	if s.grpcServer != nil {
		s.grpcServer.GracefulStop()
	}
	if err != nil {
		return fmt.Errorf("shutdown http: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}
