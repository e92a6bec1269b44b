package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"forum/pkg/common"
	"forum/pkg/logger"
	"forum/pkg/sessions"
	"forum/pkg/user"
)

type (
	IUserRepo interface {
		GetById(context.Context, int64) (*user.User, error)
	}
	ISessionManager interface {
		UserIdFromToken(string) (int64, error)
	}
	Auth struct {
		UserRepo       IUserRepo
		SessionManager ISessionManager
	}
)

func NewAuthMiddleware(sm ISessionManager, ur IUserRepo) *Auth {
	return &Auth{
		UserRepo:       ur,
		SessionManager: sm,
	}
}

// Middleware resolves the bearer token into the authenticated user and
// puts it into the request context. Requests without a token (or with a
// stale one) pass through anonymous; each operation decides for itself
// whether it requires a viewer.
func (auth Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")

		if authHeader == "" {
			next.ServeHTTP(w, r)
			return
		}

		ctx := context.WithValue(r.Context(), sessions.TokenKey, authHeader)

		userId, err := auth.SessionManager.UserIdFromToken(authHeader)
		if err != nil {
			if !errors.Is(err, sessions.ErrNoAuth) {
				logger.Log(r.Context()).Errorf("can't resolve session from token: %v", err)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		repoCtx, repoCtxCancel := context.WithTimeout(ctx, 5*time.Second)
		defer repoCtxCancel()
		u, err := auth.UserRepo.GetById(repoCtx, userId)
		if err != nil {
			logger.Log(r.Context()).Errorf("auth: can't get the user from repo: %v", err)
			common.WriteMsg(w, "user lookup failed", http.StatusInternalServerError)
			return
		}
		if u == nil {
			// Session points at a user that no longer exists.
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		ctx = context.WithValue(ctx, sessions.SessionKey, u)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
