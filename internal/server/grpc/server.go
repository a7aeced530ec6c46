// Package grpc exposes the offline store to local frontends over gRPC.
// AI-backed methods are gated by the request rate limiter.
package grpc

import (
	"context"
	"errors"
	"net"

	"github.com/scriptureforge/offline/internal/ai"
	"github.com/scriptureforge/offline/internal/logging"
	"github.com/scriptureforge/offline/internal/ratelimit"
	"github.com/scriptureforge/offline/internal/services"
	"google.golang.org/grpc"
)

type GRPCServer struct {
	address   string
	content   services.ContentService
	responder ai.Responder
	limiter   *ratelimit.Limiter
	logger    logging.Logger
	jwtSecret []byte
}

// NewGRPCServer wires the daemon. responder may be nil, in which case Chat
// is unavailable.
func NewGRPCServer(address string, l logging.Logger, content services.ContentService, responder ai.Responder, limiter *ratelimit.Limiter, secretKey string) *GRPCServer {
	return &GRPCServer{
		address:   address,
		content:   content,
		responder: responder,
		limiter:   limiter,
		logger:    l.With("module", "grpc_server"),
		jwtSecret: []byte(secretKey),
	}
}

// NewServer returns a grpc.Server with the interceptor chain and the
// service registered.
func (s *GRPCServer) NewServer() *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.accessTokenInterceptor, s.rateLimitInterceptor))
	srv.RegisterService(&ServiceDesc, s)
	return srv
}

// Run listens on the configured address and serves until ctx is done.
func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

func (s *GRPCServer) Serve(ctx context.Context, listen net.Listener) error {
	srv := s.NewServer()

	go s.limiter.Run(ctx)
	go func() {
		<-ctx.Done()
		s.logger.Info(context.Background(), "stopping gRPC server")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "starting gRPC server", "address", listen.Addr().String())
	if err := srv.Serve(listen); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}
