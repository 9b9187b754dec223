package handler

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/craftfolio/backend/api/domain"
	"github.com/craftfolio/backend/api/util"
	"github.com/craftfolio/backend/api/util/middleware"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v4"
)

type UserHandler struct {
	repo   domain.UserRepository
	router *mux.Router
}

// UserProfileHandler returns the caller's account including the live project
// count and quota.
func (u *UserHandler) UserProfileHandler(w http.ResponseWriter, r *http.Request) {
	authUser, _ := middleware.AuthUser(r)

	ctx, cancel := util.GetContextWithTimeout(r.Context())
	defer cancel()
	user, err := u.repo.GetByEmail(ctx, authUser.Email)
	if err != nil {
		log.Println(err)
		if err == pgx.ErrNoRows {
			util.WriteUnauthorized(w)
		} else {
			util.WriteInternalServerError(w)
		}
		return
	}
	util.WriteJson(w, user)
}

func (u *UserHandler) UserRoleHandler(w http.ResponseWriter, r *http.Request) {
	authUser, _ := middleware.AuthUser(r)

	ret := make(map[string]string)
	ret["email"] = authUser.Email
	ret["admin"] = fmt.Sprintf("%t", authUser.IsAdmin)
	util.WriteJson(w, &ret)
}

// AdminUpdateQuotaHandler sets another user's project quota. Zero means
// unlimited.
func (u *UserHandler) AdminUpdateQuotaHandler(w http.ResponseWriter, r *http.Request) {
	authUser, _ := middleware.AuthUser(r)
	if !authUser.IsAdmin {
		util.WriteStatus(w, http.StatusForbidden)
		return
	}

	body, ok := middleware.JsonBody(r)
	if !ok {
		util.WriteStatus(w, http.StatusBadRequest)
		return
	}
	var req struct {
		Email        string `json:"email"`
		ProjectQuota int    `json:"project_quota"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		log.Println(err)
		util.WriteStatus(w, http.StatusBadRequest)
		return
	}
	if req.Email == "" || req.ProjectQuota < 0 {
		util.WriteStatus(w, http.StatusBadRequest)
		return
	}

	ctx, cancel := util.GetContextWithTimeout(r.Context())
	defer cancel()
	user, err := u.repo.GetByEmail(ctx, req.Email)
	if err != nil {
		log.Println(err)
		if err == pgx.ErrNoRows {
			util.WriteStatus(w, http.StatusNotFound)
		} else {
			util.WriteInternalServerError(w)
		}
		return
	}

	user.ProjectQuota = req.ProjectQuota
	ctx, cancel = util.GetContextWithTimeout(r.Context())
	defer cancel()
	if err := u.repo.Update(ctx, user); err != nil {
		log.Println(err)
		util.WriteInternalServerError(w)
		return
	}
	util.WriteOK(w)
}

func NewUserHandler(r *mux.Router, authMiddleware mux.MiddlewareFunc, repo domain.UserRepository) *UserHandler {
	u := &UserHandler{
		repo:   repo,
		router: r.PathPrefix("/user").Subrouter(),
	}

	u.router.Use(authMiddleware)
	u.router.HandleFunc("/profile", u.UserProfileHandler).Methods("GET")
	u.router.HandleFunc("/role", u.UserRoleHandler).Methods("GET")

	subrouter := u.router.NewRoute().Subrouter()
	subrouter.Use(middleware.JsonBodyMiddleware)
	subrouter.HandleFunc("/quota", u.AdminUpdateQuotaHandler).Methods("POST")
	return u
}
