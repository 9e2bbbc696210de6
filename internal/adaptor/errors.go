package adaptor

import (
	"net"
	"net/http"
	"strconv"

	"telegram-auth/internal/dto/request"
	"telegram-auth/internal/usecase"
	"telegram-auth/pkg/utils"

	"go.uber.org/zap"
)

// handleServiceError maps AuthError kinds to HTTP statuses.
func handleServiceError(w http.ResponseWriter, log *zap.Logger, err error, operation string) {
	authErr := usecase.AsAuthError(err)

	switch authErr.Kind {
	case usecase.KindNotFound:
		log.Warn(operation+" failed - not found", zap.Error(err))
		utils.ResponseNotFound(w, authErr.Message)

	case usecase.KindInvalid, usecase.KindUnauthenticated:
		log.Warn(operation+" failed - invalid credentials", zap.Error(err))
		if authErr.AttemptsRemaining > 0 {
			utils.ResponseJSON(w, http.StatusUnauthorized, false, authErr.Message,
				map[string]int{"attempts_remaining": authErr.AttemptsRemaining}, nil)
			return
		}
		utils.ResponseUnauthorized(w, authErr.Message)

	case usecase.KindExpired, usecase.KindLocked:
		log.Warn(operation+" failed - "+authErr.Kind.String(), zap.Error(err))
		if authErr.RetryAfter > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(authErr.RetryAfterSeconds()))
		}
		utils.ResponseForbidden(w, authErr.Message)

	case usecase.KindConflict:
		log.Warn(operation+" failed - conflict", zap.Error(err))
		utils.ResponseConflict(w, authErr.Message)

	case usecase.KindRateLimited:
		log.Warn(operation+" failed - rate limited", zap.Error(err))
		utils.ResponseTooManyRequests(w, authErr.Message, authErr.RetryAfterSeconds())

	default:
		log.Error("Failed to "+operation, zap.Error(err), zap.String("operation", operation))
		utils.ResponseInternalError(w, "Internal server error")
	}
}

func sessionMeta(r *http.Request) request.SessionMeta {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return request.SessionMeta{
		UserAgent: r.UserAgent(),
		IPAddress: ip,
	}
}
