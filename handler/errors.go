package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/craftfolio/backend/api/domain"
	"github.com/craftfolio/backend/api/repository"
	"github.com/craftfolio/backend/api/store"
	"github.com/craftfolio/backend/api/util"
)

// writeDomainError maps the error taxonomy onto HTTP statuses. Partial sync
// failures keep their step name in the body so the client can report it and
// offer a manual retry.
func writeDomainError(w http.ResponseWriter, err error) {
	log.Println(err)
	switch {
	case domain.IsValidation(err):
		util.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotAuthenticated):
		util.WriteUnauthorized(w)
	case repository.IsPartialSync(err):
		util.WriteError(w, http.StatusInternalServerError, err.Error())
	default:
		switch store.KindOf(err) {
		case store.KindNotFound:
			util.WriteStatus(w, http.StatusNotFound)
		case store.KindConflict:
			util.WriteStatus(w, http.StatusConflict)
		case store.KindNotAuthenticated:
			util.WriteUnauthorized(w)
		default:
			util.WriteInternalServerError(w)
		}
	}
}
