package handler

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/craftfolio/backend/api/domain"
	"github.com/craftfolio/backend/api/util"
	"github.com/craftfolio/backend/api/util/middleware"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v4"
)

type ProjectHandler struct {
	prRepo   domain.ProjectRepository
	userRepo domain.UserRepository
	router   *mux.Router
}

func (pr *ProjectHandler) GetAllProjectsHandler(w http.ResponseWriter, r *http.Request) {
	authUser, _ := middleware.AuthUser(r)

	ctx, cancel := util.GetContextWithTimeout(r.Context())
	defer cancel()
	projects, err := pr.prRepo.List(ctx, authUser.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	util.WriteJson(w, projects)
}

func (pr *ProjectHandler) GetStatsHandler(w http.ResponseWriter, r *http.Request) {
	authUser, _ := middleware.AuthUser(r)

	ctx, cancel := util.GetContextWithTimeout(r.Context())
	defer cancel()
	projects, err := pr.prRepo.List(ctx, authUser.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	stats := domain.ProjectStats{Total: len(projects)}
	for _, p := range projects {
		switch p.Status {
		case domain.STATUS_PENDING:
			stats.Pending++
		case domain.STATUS_IN_WORK:
			stats.InWork++
		case domain.STATUS_DONE:
			stats.Done++
		}
	}
	util.WriteJson(w, stats)
}

func (pr *ProjectHandler) GetProjectHandler(w http.ResponseWriter, r *http.Request) {
	authUser, _ := middleware.AuthUser(r)

	id, err := projectID(r)
	if err != nil {
		util.WriteStatus(w, http.StatusBadRequest)
		return
	}

	ctx, cancel := util.GetContextWithTimeout(r.Context())
	defer cancel()
	project, err := pr.prRepo.GetByID(ctx, authUser.ID, id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	util.WriteJson(w, project)
}

func (pr *ProjectHandler) GetHistoryHandler(w http.ResponseWriter, r *http.Request) {
	authUser, _ := middleware.AuthUser(r)

	id, err := projectID(r)
	if err != nil {
		util.WriteStatus(w, http.StatusBadRequest)
		return
	}

	ctx, cancel := util.GetContextWithTimeout(r.Context())
	defer cancel()
	history, err := pr.prRepo.History(ctx, authUser.ID, id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	util.WriteJson(w, history)
}

func (pr *ProjectHandler) CreateProjectHandler(w http.ResponseWriter, r *http.Request) {
	authUser, _ := middleware.AuthUser(r)

	body, ok := middleware.JsonBody(r)
	if !ok {
		util.WriteStatus(w, http.StatusBadRequest)
		return
	}
	draft := domain.ProjectDraft{}
	if err := json.Unmarshal(body, &draft); err != nil {
		log.Println(err)
		util.WriteStatus(w, http.StatusBadRequest)
		return
	}

	ctx, cancel := util.GetContextWithTimeout(r.Context())
	defer cancel()
	user, err := pr.userRepo.GetByEmail(ctx, authUser.Email)
	if err != nil {
		if err == pgx.ErrNoRows {
			util.WriteUnauthorized(w)
		} else {
			util.WriteInternalServerError(w)
		}
		return
	}
	if user.QuotaExceeded() {
		util.WriteError(w, http.StatusForbidden, "Sorry, your quota has been exceeded.")
		return
	}

	ctx, cancel = util.GetContextWithTimeout(r.Context())
	defer cancel()
	project, err := pr.prRepo.Create(ctx, user.ID, &draft)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	util.WriteJson(w, project)
}

func (pr *ProjectHandler) UpdateProjectHandler(w http.ResponseWriter, r *http.Request) {
	authUser, _ := middleware.AuthUser(r)

	id, err := projectID(r)
	if err != nil {
		util.WriteStatus(w, http.StatusBadRequest)
		return
	}

	body, ok := middleware.JsonBody(r)
	if !ok {
		util.WriteStatus(w, http.StatusBadRequest)
		return
	}
	patch := domain.ProjectPatch{}
	if err := json.Unmarshal(body, &patch); err != nil {
		log.Println(err)
		util.WriteStatus(w, http.StatusBadRequest)
		return
	}

	ctx, cancel := util.GetContextWithTimeout(r.Context())
	defer cancel()
	if err := pr.prRepo.Update(ctx, authUser.ID, id, &patch); err != nil {
		writeDomainError(w, err)
		return
	}
	util.WriteOK(w)
}

func (pr *ProjectHandler) DeleteProjectHandler(w http.ResponseWriter, r *http.Request) {
	authUser, _ := middleware.AuthUser(r)

	id, err := projectID(r)
	if err != nil {
		util.WriteStatus(w, http.StatusBadRequest)
		return
	}

	ctx, cancel := util.GetContextWithTimeout(r.Context())
	defer cancel()
	if err := pr.prRepo.Remove(ctx, authUser.ID, id); err != nil {
		writeDomainError(w, err)
		return
	}
	util.WriteOK(w)
}

func projectID(r *http.Request) (int, error) {
	return strconv.Atoi(mux.Vars(r)["id"])
}

func NewProjectHandler(r *mux.Router, authMiddleware mux.MiddlewareFunc, prRepo domain.ProjectRepository, userRepo domain.UserRepository) *ProjectHandler {
	p := &ProjectHandler{
		prRepo:   prRepo,
		userRepo: userRepo,
		router:   r.NewRoute().Subrouter(),
	}

	p.router.Use(authMiddleware)
	p.router.HandleFunc("/projects", p.GetAllProjectsHandler).Methods("GET")
	p.router.HandleFunc("/projects/stats", p.GetStatsHandler).Methods("GET")
	p.router.HandleFunc("/projects/{id:[0-9]+}", p.GetProjectHandler).Methods("GET")
	p.router.HandleFunc("/projects/{id:[0-9]+}/history", p.GetHistoryHandler).Methods("GET")
	p.router.HandleFunc("/projects/{id:[0-9]+}/delete", p.DeleteProjectHandler).Methods("POST")

	subrouter := p.router.NewRoute().Subrouter()
	subrouter.Use(middleware.JsonBodyMiddleware)
	subrouter.HandleFunc("/projects/new", p.CreateProjectHandler).Methods("POST")
	subrouter.HandleFunc("/projects/{id:[0-9]+}/update", p.UpdateProjectHandler).Methods("POST")
	return p
}
