package middleware

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/craftfolio/backend/api/util"
)

const MAX_BODY_SIZE = 1 << 20

// JsonBodyMiddleware reads and syntax-checks the request body once and hands
// the raw JSON to the handler for a typed unmarshal.
func JsonBodyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, MAX_BODY_SIZE))
		if err != nil {
			log.Println(err)
			util.WriteStatus(w, http.StatusBadRequest)
			return
		}
		if !json.Valid(body) {
			util.WriteError(w, http.StatusBadRequest, "body must be valid json")
			return
		}
		ctx := context.WithValue(r.Context(), JSON_CONTEXT_KEY, json.RawMessage(body))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func JsonBody(r *http.Request) (json.RawMessage, bool) {
	body, ok := r.Context().Value(JSON_CONTEXT_KEY).(json.RawMessage)
	return body, ok
}
