package middleware

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/craftfolio/backend/api/domain"
	"github.com/craftfolio/backend/api/util"
	"github.com/go-redis/redis/v8"
)

type contextKey string

const (
	USER_CONTEXT_KEY contextKey = "user"
	JSON_CONTEXT_KEY contextKey = "json"
)

// AuthUserValue is the resolved owner identity every scoped operation runs
// under.
type AuthUserValue struct {
	ID      int
	Email   string
	IsAdmin bool
	Token   string
}

func AuthUser(r *http.Request) (AuthUserValue, bool) {
	user, ok := r.Context().Value(USER_CONTEXT_KEY).(AuthUserValue)
	return user, ok
}

func OAuth2Middleware(authCache domain.AuthCache, admin string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		parts := strings.Split(header, " ")

		if len(parts) < 2 || strings.ToLower(parts[0]) != "bearer" {
			log.Println("bad Authorization header")
			util.WriteUnauthorized(w)
			return
		}

		ctx, cancel := util.GetContextWithTimeout(r.Context())
		defer cancel()
		token := parts[1]
		email, id, err := authCache.GetUserByToken(ctx, token)

		if err != nil {
			log.Println(err)
			if err == redis.Nil {
				util.WriteUnauthorized(w)
			} else {
				util.WriteInternalServerError(w)
			}
			return
		}

		ctx = context.WithValue(r.Context(), USER_CONTEXT_KEY, AuthUserValue{
			ID:      id,
			Email:   email,
			IsAdmin: email == admin,
			Token:   token,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
