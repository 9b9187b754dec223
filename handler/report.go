package handler

import (
	"log"
	"net/http"

	"github.com/craftfolio/backend/api/domain"
	"github.com/craftfolio/backend/api/util"
	"github.com/craftfolio/backend/api/util/middleware"
	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
)

type ReportHandler struct {
	prRepo  domain.ProjectRepository
	reports domain.ReportCache
	router  *mux.Router
}

// GetReportsHandler serves the financial-report projection through the
// cache: miss -> read the projection table -> fill the cache -> serve.
func (rh *ReportHandler) GetReportsHandler(w http.ResponseWriter, r *http.Request) {
	authUser, _ := middleware.AuthUser(r)

	ctx, cancel := util.GetContextWithTimeout(r.Context())
	defer cancel()
	rows, err := rh.reports.GetByOwnerID(ctx, authUser.ID)
	if err != nil {
		if err != redis.Nil {
			log.Println(err)
			util.WriteInternalServerError(w)
			return
		}
		rh.refetch(w, r, authUser.ID)
		return
	}
	util.WriteJson(w, rows)
}

// RefreshReportsHandler forces a full re-read bypassing the cache.
func (rh *ReportHandler) RefreshReportsHandler(w http.ResponseWriter, r *http.Request) {
	authUser, _ := middleware.AuthUser(r)

	ctx, cancel := util.GetContextWithTimeout(r.Context())
	defer cancel()
	if err := rh.reports.Invalidate(ctx, authUser.ID); err != nil {
		log.Println(err)
		util.WriteInternalServerError(w)
		return
	}
	rh.refetch(w, r, authUser.ID)
}

func (rh *ReportHandler) refetch(w http.ResponseWriter, r *http.Request, ownerID int) {
	ctx, cancel := util.GetContextWithTimeout(r.Context())
	defer cancel()
	rows, err := rh.prRepo.Reports(ctx, ownerID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	ctx, cancel = util.GetContextWithTimeout(r.Context())
	defer cancel()
	if err := rh.reports.Update(ctx, ownerID, rows); err != nil {
		log.Println(err)
		util.WriteInternalServerError(w)
		return
	}
	util.WriteJson(w, rows)
}

func NewReportHandler(r *mux.Router, authMiddleware mux.MiddlewareFunc, prRepo domain.ProjectRepository, reports domain.ReportCache) *ReportHandler {
	rh := &ReportHandler{
		prRepo:  prRepo,
		reports: reports,
		router:  r.NewRoute().Subrouter(),
	}

	rh.router.Use(authMiddleware)
	rh.router.HandleFunc("/reports", rh.GetReportsHandler).Methods("GET")
	rh.router.HandleFunc("/reports/refresh", rh.RefreshReportsHandler).Methods("POST")
	return rh
}
