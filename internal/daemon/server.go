package daemon

import (
	"context"
	"fmt"
	"net"
	"os"

	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/rescue-app/rescue/internal/api"
	"github.com/rescue-app/rescue/internal/auth"
	"github.com/rescue-app/rescue/internal/middleware"
)

// Server manages the gRPC server lifecycle for a profile daemon.
type Server struct {
	grpcServer *grpc.Server
	listener   net.Listener
	socketPath string
	logger     *zap.Logger
}

// NewServer creates a gRPC server bound to the profile's Unix domain socket.
// Calls are authenticated first, then rate limited per user.
func NewServer(
	p Params,
	logger *zap.Logger,
	jwt *auth.JWTManager,
	limiters Limiters,
	accountSvc *api.AccountService,
	feedSvc *api.FeedService,
	postSvc *api.PostService,
	chatSvc *api.ChatService,
	healthSvc *api.HealthService,
) (*Server, error) {
	socketPath := p.socketPath()

	// Clean stale socket if it exists.
	if _, err := os.Stat(socketPath); err == nil {
		_ = os.Remove(socketPath)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("listen unix socket: %w", err)
	}

	// Set socket permissions to 0600.
	if err := os.Chmod(socketPath, 0600); err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("chmod socket: %w", err)
	}

	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			middleware.AuthUnaryInterceptor(jwt, api.PublicMethods),
			middleware.RateLimitUnaryInterceptor(limiters),
		),
		grpc.ChainStreamInterceptor(
			middleware.AuthStreamInterceptor(jwt, api.PublicMethods),
		),
	)
	api.Register(srv, accountSvc, feedSvc, postSvc, chatSvc, healthSvc)

	return &Server{
		grpcServer: srv,
		listener:   listener,
		socketPath: socketPath,
		logger:     logger,
	}, nil
}

// Start begins serving gRPC requests. Blocks until stopped.
func (s *Server) Start() error {
	s.logger.Info("gRPC server starting", zap.String("socket", s.socketPath))
	return s.grpcServer.Serve(s.listener)
}

// Stop shuts down gracefully, cutting open streams when ctx expires, and
// removes the socket file.
func (s *Server) Stop(ctx context.Context) {
	s.logger.Info("gRPC server stopping")
	done := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.grpcServer.Stop()
		<-done
	}
	_ = os.Remove(s.socketPath)
}
