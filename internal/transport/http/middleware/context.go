package middleware

import (
	"context"

	"cardadmin/internal/requestctx"
)

type ctxKey string

const ctxKeyUser ctxKey = "user"

func GetRequestID(ctx context.Context) string {
	return requestctx.GetRequestID(ctx)
}
