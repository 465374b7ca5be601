package middleware

import "context"

type contextKey string

const RequestIDKey contextKey = "request_id"

// GetRequestID возвращает id запроса из контекста (устанавливается RequestLog).
func GetRequestID(ctx context.Context) string {
	v, _ := ctx.Value(RequestIDKey).(string)
	return v
}
