package userctx

import "context"

type contextKey struct{}

// identity — кто выполняет запрос. Local означает, что токена не было и
// запрос идёт от общего локального пользователя.
type identity struct {
	userID string
	local  bool
}

// WithUserID привязывает запрос к аутентифицированному пользователю.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, contextKey{}, identity{userID: userID})
}

// WithLocalUser привязывает анонимный запрос к общему локальному пользователю.
func WithLocalUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, contextKey{}, identity{userID: userID, local: true})
}

// GetUserID возвращает владельца данных запроса.
func GetUserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(contextKey{}).(identity)
	if !ok || id.userID == "" {
		return "", false
	}
	return id.userID, true
}

// IsAuthenticated сообщает, что пользователь предъявил токен.
func IsAuthenticated(ctx context.Context) bool {
	id, ok := ctx.Value(contextKey{}).(identity)
	return ok && id.userID != "" && !id.local
}
