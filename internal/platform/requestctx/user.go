// Package requestctx carries caller identity resolved by the edge gateway.
// Authentication happens upstream; services only read the forwarded headers.
package requestctx

import (
	"context"
	"strings"

	"google.golang.org/grpc/metadata"
)

const (
	// UserIDHeader is the metadata key the gateway uses to forward the
	// authenticated user id.
	UserIDHeader = "x-branching-user-id"
	// LocaleHeader carries the caller's preferred locale.
	LocaleHeader = "x-branching-locale"
)

type userIDContextKey struct{}

type localeContextKey struct{}

// WithUserID stores a user identifier in context.
func WithUserID(ctx context.Context, userID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, userIDContextKey{}, userID)
}

// UserIDFromContext returns the user identifier stored in context.
func UserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(userIDContextKey{}).(string)
	return value
}

// WithLocale stores the caller's locale preference in context.
func WithLocale(ctx context.Context, locale string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, localeContextKey{}, locale)
}

// LocaleFromContext returns the stored locale preference, or "".
func LocaleFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(localeContextKey{}).(string)
	return value
}

// FromIncomingMetadata copies gateway headers from gRPC metadata into ctx.
func FromIncomingMetadata(ctx context.Context) context.Context {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ctx
	}
	if userID := firstValue(md, UserIDHeader); userID != "" {
		ctx = WithUserID(ctx, userID)
	}
	if locale := firstValue(md, LocaleHeader); locale != "" {
		ctx = WithLocale(ctx, locale)
	}
	return ctx
}

func firstValue(md metadata.MD, key string) string {
	for _, value := range md.Get(key) {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
