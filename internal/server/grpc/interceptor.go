package grpc

import (
	"context"
	"net"
	"strconv"
	"strings"

	"github.com/scriptureforge/offline/internal/auth"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

type ctxKey string

const userIDKey ctxKey = "userID"

const (
	authorizationHeader = "authorization"
	RemainingTrailer    = "x-ratelimit-remaining"
)

// rateLimited lists the methods that reach an AI endpoint.
var rateLimited = map[string]bool{
	MethodTranslateChapter: true,
	MethodChat:             true,
}

// UserIDFromContext returns the authenticated caller, if any.
func UserIDFromContext(ctx context.Context) (string, bool) {
	uid, ok := ctx.Value(userIDKey).(string)
	return uid, ok && uid != ""
}

// accessTokenInterceptor authenticates callers that present a bearer token.
// Anonymous calls pass through; an invalid token is rejected.
func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	var token string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(authorizationHeader); len(values) > 0 {
			token = strings.TrimSpace(values[0])
		}
	}
	if token == "" {
		return handler(ctx, req)
	}

	scheme, raw, found := strings.Cut(token, " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return nil, status.Error(codes.Unauthenticated, "malformed authorization header")
	}

	userID, err := auth.GetUserIDFromToken(strings.TrimSpace(raw), s.jwtSecret)
	if err != nil {
		s.logger.Debug(ctx, "rejected token", "method", info.FullMethod, "error", err)
		return nil, status.Error(codes.Unauthenticated, "invalid token")
	}

	return handler(context.WithValue(ctx, userIDKey, userID), req)
}

// rateLimitInterceptor charges AI-backed calls to the user, or to the peer
// host for anonymous callers.
func (s *GRPCServer) rateLimitInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if !rateLimited[info.FullMethod] {
		return handler(ctx, req)
	}

	id := callerID(ctx)
	res := s.limiter.CheckAndConsume(id)
	_ = grpc.SetTrailer(ctx, metadata.Pairs(RemainingTrailer, strconv.Itoa(res.Remaining)))

	if !res.Allowed {
		s.logger.Warn(ctx, "rate limit exceeded", "caller", id, "method", info.FullMethod)
		return nil, status.Error(codes.ResourceExhausted, "too many requests, try again later")
	}
	return handler(ctx, req)
}

func callerID(ctx context.Context) string {
	if uid, ok := UserIDFromContext(ctx); ok {
		return "user:" + uid
	}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		addr := p.Addr.String()
		if host, _, err := net.SplitHostPort(addr); err == nil {
			return "ip:" + host
		}
		return "ip:" + addr
	}
	return "anonymous"
}
