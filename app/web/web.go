// Package web exposes the status store over HTTP for querying callers:
// status lookup and removal by encoded identifier, the operation journal and
// basic runtime info.
package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/didip/tollbooth/v8"
	log "github.com/go-pkgz/lgr"
	"github.com/go-pkgz/rest"
	"github.com/go-pkgz/rest/logger"
	"github.com/go-pkgz/routegroup"
	"github.com/shirou/gopsutil/v4/disk"

	"github.com/jobvault/jobvault/app/journal"
	"github.com/jobvault/jobvault/app/store"
)

// JobStore is the subset of store operations the web server needs.
type JobStore interface {
	Get(id store.ID) store.Status
	Remove(id store.ID)
	Stats() store.Stats
}

// Activity reads the operation journal.
type Activity interface {
	Recent(limit int) ([]journal.Entry, error)
}

// Server is the HTTP API for the status store.
type Server struct {
	Store        JobStore
	Activity     Activity // optional, nil disables /activity
	Version      string
	StoreRoot    string
	PasswordHash string // bcrypt hash, enables basic auth when set
}

// Run starts the server and blocks until the context is canceled.
func (s *Server) Run(ctx context.Context, address string) error {
	srv := &http.Server{
		Addr:              address,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       30 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("[WARN] failed to shutdown web server: %v", err)
		}
	}()

	log.Printf("[INFO] starting web server on %s", address)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("web server failed: %w", err)
	}
	return nil
}

func (s *Server) routes() http.Handler {
	router := routegroup.New(http.NewServeMux())

	router.Use(
		rest.RealIP,
		rest.Recoverer(log.Default()),
		rest.Throttle(1000),
		rest.AppInfo("jobvault", "jobvault", s.Version),
		rest.Ping,
		rest.Trace,
		rest.SizeLimit(64*1024), // 64KB max request size
		logger.New(logger.Log(log.Default()), logger.Prefix("[DEBUG]")).Handler,
	)
	if s.PasswordHash != "" {
		router.Use(s.basicAuth)
	}

	removeLimiter := tollbooth.NewLimiter(5, nil) // mutating calls rate limited per client

	router.Mount("/api/v1").Route(func(api *routegroup.Bundle) {
		api.Use(rest.NoCache)
		api.HandleFunc("GET /status/{id...}", s.handleGetStatus)
		api.With(tollbooth.HTTPMiddleware(removeLimiter)).HandleFunc("DELETE /status/{id...}", s.handleRemoveStatus)
		api.HandleFunc("GET /activity", s.handleActivity)
		api.HandleFunc("GET /info", s.handleInfo)
	})

	return router
}

// idFromRequest parses the wildcard path as an encoded identifier, the same
// form the store uses on disk.
func idFromRequest(r *http.Request) (store.ID, error) {
	return store.DecodeID(r.PathValue("id"))
}

// handleGetStatus returns the status for the id, 404 when none exists
func (s *Server) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	id, err := idFromRequest(r)
	if err != nil {
		rest.SendErrorJSON(w, r, log.Default(), http.StatusBadRequest, err, "invalid job id")
		return
	}

	st := s.Store.Get(id)
	if st == nil {
		rest.SendErrorJSON(w, r, log.Default(), http.StatusNotFound,
			fmt.Errorf("no status for id [%s]", id), "status not found")
		return
	}
	rest.RenderJSON(w, st)
}

// handleRemoveStatus deletes the status subtree for the id, descendants
// included. Idempotent, removing an unknown id reports ok too.
func (s *Server) handleRemoveStatus(w http.ResponseWriter, r *http.Request) {
	id, err := idFromRequest(r)
	if err != nil {
		rest.SendErrorJSON(w, r, log.Default(), http.StatusBadRequest, err, "invalid job id")
		return
	}

	s.Store.Remove(id)
	rest.RenderJSON(w, rest.JSON{"removed": id.Key()})
}

// handleActivity returns recent journal entries, newest first
func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	if s.Activity == nil {
		rest.SendErrorJSON(w, r, log.Default(), http.StatusNotFound,
			fmt.Errorf("journal not configured"), "activity disabled")
		return
	}

	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	entries, err := s.Activity.Recent(limit)
	if err != nil {
		rest.SendErrorJSON(w, r, log.Default(), http.StatusInternalServerError, err, "failed to read journal")
		return
	}
	rest.RenderJSON(w, entries)
}

type diskInfo struct {
	TotalBytes  uint64  `json:"total_bytes"`
	FreeBytes   uint64  `json:"free_bytes"`
	UsedPercent float64 `json:"used_percent"`
}

// handleInfo reports version, store counters and disk usage of the store root
func (s *Server) handleInfo(w http.ResponseWriter, _ *http.Request) {
	info := struct {
		Version string      `json:"version"`
		Root    string      `json:"root"`
		Store   store.Stats `json:"store"`
		Disk    *diskInfo   `json:"disk,omitempty"`
	}{
		Version: s.Version,
		Root:    s.StoreRoot,
		Store:   s.Store.Stats(),
	}

	if du, err := disk.Usage(s.StoreRoot); err == nil {
		info.Disk = &diskInfo{TotalBytes: du.Total, FreeBytes: du.Free, UsedPercent: du.UsedPercent}
	} else {
		log.Printf("[WARN] can't get disk usage for %s, %v", s.StoreRoot, err)
	}

	rest.RenderJSON(w, info)
}
