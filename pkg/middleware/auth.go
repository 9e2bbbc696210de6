package middleware

import (
	"net/http"
	"strings"

	"telegram-auth/internal/usecase"
	"telegram-auth/pkg/utils"

	"go.uber.org/zap"
)

// AuthSession validates the bearer access token and its backing session,
// then stores the user and session ids in the request context.
func AuthSession(sessions usecase.SessionService, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				utils.ResponseUnauthorized(w, "Missing authorization token")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
				utils.ResponseUnauthorized(w, "Invalid token format. Use: Bearer <token>")
				return
			}

			userID, sessionID, err := sessions.Authenticate(r.Context(), parts[1])
			if err != nil {
				authErr := usecase.AsAuthError(err)
				if authErr.Kind == usecase.KindInternal {
					logger.Error("Failed to validate session", zap.Error(err))
					utils.ResponseInternalError(w, "Internal server error")
					return
				}
				logger.Warn("Invalid or expired session", zap.String("path", r.URL.Path))
				utils.ResponseUnauthorized(w, authErr.Message)
				return
			}

			ctx := utils.SetSessionContext(r.Context(), userID, sessionID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
