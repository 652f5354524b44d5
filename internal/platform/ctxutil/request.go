package ctxutil

import (
	"context"
	"strings"
)

type requestDataKey struct{}

// RequestData is the authenticated caller plus connection metadata used for audit entries.
type RequestData struct {
	Email     string
	Name      string
	IP        string
	UserAgent string
}

// Actor is the identity recorded in ledgers; falls back to the display name.
func (rd *RequestData) Actor() string {
	if rd == nil {
		return ""
	}
	if e := strings.TrimSpace(rd.Email); e != "" {
		return e
	}
	return strings.TrimSpace(rd.Name)
}

func WithRequestData(ctx context.Context, rd *RequestData) context.Context {
	return context.WithValue(ctx, requestDataKey{}, rd)
}

func GetRequestData(ctx context.Context) *RequestData {
	if ctx == nil {
		return nil
	}
	if rd, ok := ctx.Value(requestDataKey{}).(*RequestData); ok {
		return rd
	}
	return nil
}

// Actor returns the caller identity stored on ctx, or "system".
func Actor(ctx context.Context) string {
	if a := GetRequestData(ctx).Actor(); a != "" {
		return a
	}
	return "system"
}
