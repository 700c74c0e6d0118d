package middleware

import (
	"context"
	"errors"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/rescue-app/rescue/internal/auth"
)

type loginReq struct{ email string }

func (r loginReq) GetEmail() string { return r.email }

func TestLimiterStoreBurst(t *testing.T) {
	s := NewLimiterStore(5, 5, 0)
	defer s.Stop()

	for i := range 5 {
		if !s.Allow("k") {
			t.Fatalf("expected allow at iteration %d", i)
		}
	}
	if s.Allow("k") {
		t.Fatal("expected limiter to block after burst consumed")
	}
	if !s.Allow("other") {
		t.Error("keys must be limited independently")
	}
}

func TestLimiterStoreSweep(t *testing.T) {
	s := NewLimiterStore(5, 1, 0)
	defer s.Stop()
	s.Allow("a")
	s.sweep(time.Now().Add(time.Second))
	if n := s.size(); n != 0 {
		t.Errorf("size after sweep = %d, want 0", n)
	}
	s.Stop()
}

func TestRateLimitInterceptor(t *testing.T) {
	limited := NewLimiterStore(1, 1, 0)
	defer limited.Stop()
	ic := RateLimitUnaryInterceptor(map[string]*LimiterStore{"/svc/Limited": limited})

	calls := 0
	handler := func(context.Context, any) (any, error) { calls++; return "ok", nil }
	ctx := auth.WithClaims(context.Background(), &auth.Claims{UserID: "u1"})

	if _, err := ic(ctx, nil, &grpc.UnaryServerInfo{FullMethod: "/svc/Limited"}, handler); err != nil {
		t.Fatal(err)
	}
	_, err := ic(ctx, nil, &grpc.UnaryServerInfo{FullMethod: "/svc/Limited"}, handler)
	if status.Code(err) != codes.ResourceExhausted {
		t.Errorf("second call code = %v, want ResourceExhausted", status.Code(err))
	}
	for range 3 {
		if _, err := ic(ctx, nil, &grpc.UnaryServerInfo{FullMethod: "/svc/Free"}, handler); err != nil {
			t.Fatal(err)
		}
	}
	if calls != 4 {
		t.Errorf("handler calls = %d, want 4", calls)
	}
}

func TestCallerKey(t *testing.T) {
	if k := callerKey(context.Background(), loginReq{email: "a@x"}); k != "email:a@x" {
		t.Errorf("key = %q, want email:a@x", k)
	}
	ctx := auth.WithClaims(context.Background(), &auth.Claims{UserID: "u"})
	if k := callerKey(ctx, loginReq{email: "a@x"}); k != "user:u" {
		t.Errorf("key = %q, want user:u", k)
	}
	if k := callerKey(context.Background(), nil); k != "unknown" {
		t.Errorf("key = %q, want unknown", k)
	}
}

type stubVerifier struct{}

func (stubVerifier) VerifyToken(tok string) (*auth.Claims, error) {
	if tok != "good" {
		return nil, errors.New("bad token")
	}
	return &auth.Claims{UserID: "u1"}, nil
}

func TestAuthUnaryInterceptor(t *testing.T) {
	ic := AuthUnaryInterceptor(stubVerifier{}, map[string]bool{"/svc/Login": true})
	var seen string
	handler := func(ctx context.Context, _ any) (any, error) {
		if c, ok := auth.ClaimsFromContext(ctx); ok {
			seen = c.UserID
		}
		return nil, nil
	}

	if _, err := ic(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/svc/Login"}, handler); err != nil {
		t.Errorf("public method rejected: %v", err)
	}

	tests := []struct {
		name string
		md   metadata.MD
		code codes.Code
	}{
		{"no metadata", nil, codes.Unauthenticated},
		{"no header", metadata.Pairs("x", "y"), codes.Unauthenticated},
		{"bad token", metadata.Pairs("authorization", "Bearer nope"), codes.Unauthenticated},
		{"good token", metadata.Pairs("authorization", "Bearer good"), codes.OK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			if tt.md != nil {
				ctx = metadata.NewIncomingContext(ctx, tt.md)
			}
			_, err := ic(ctx, nil, &grpc.UnaryServerInfo{FullMethod: "/svc/Private"}, handler)
			if status.Code(err) != tt.code {
				t.Errorf("code = %v, want %v", status.Code(err), tt.code)
			}
		})
	}
	if seen != "u1" {
		t.Errorf("handler saw user %q, want u1", seen)
	}
}
