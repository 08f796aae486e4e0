package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"studiod/internal/hub"
	"studiod/internal/metrics"
	"studiod/internal/probe"
	"studiod/internal/registry"
	"studiod/internal/supervisor"
)

// Router provides the HTTP control plane for the orchestrator.
// Endpoints under basePath (default /api):
//
//	GET  {basePath}/services/status       full public status table
//	POST {basePath}/services/:name/start  launch a service
//	POST {basePath}/services/:name/stop   terminate a service
//	POST {basePath}/files/process         pass-through to the file processor
//	POST {basePath}/assets/confirm        pass-through to the file processor
//
// plus /ws (realtime channel), /healthz and /metrics at the root.
type Router struct {
	sup      *supervisor.Supervisor
	reg      *registry.Registry
	hub      *hub.Hub
	basePath string
}

func NewRouter(sup *supervisor.Supervisor, reg *registry.Registry, h *hub.Hub, basePath string) *Router {
	return &Router{sup: sup, reg: reg, hub: h, basePath: sanitizeBase(basePath)}
}

// Handler returns an http.Handler powered by gin that can be mounted in
// any server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())

	group := g.Group(r.basePath)
	group.GET("/services/status", r.handleStatus)
	group.POST("/services/:name/start", r.handleStart)
	group.POST("/services/:name/stop", r.handleStop)
	group.POST("/files/process", r.proxyTo("fileProcessor", "/process"))
	group.POST("/assets/confirm", r.proxyTo("fileProcessor", "/confirm"))

	g.GET("/ws", func(c *gin.Context) { r.hub.ServeWS(c.Writer, c.Request) })
	g.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	g.GET("/metrics", gin.WrapH(metrics.Handler()))
	return g
}

// NewServer starts a standalone HTTP server on addr using this router.
// There is deliberately no WriteTimeout: a start response is held open for
// the whole readiness budget, which runs to minutes for model servers, and
// a write deadline shorter than that would cut the connection before the
// result can be delivered.
func NewServer(addr string, r *Router) *http.Server {
	server := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() { _ = server.ListenAndServe() }()
	return server
}

// --- Handlers ---

type successResp struct {
	Success bool `json:"success"`
}

type failureResp struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func (r *Router) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, r.reg.Snapshot())
}

func (r *Router) handleStart(c *gin.Context) {
	name := c.Param("name")
	// Detached from the request context: once issued, a start runs to
	// completion even if the caller goes away.
	err := r.sup.Start(context.Background(), name)
	r.finishLifecycle(c, name, err)
}

func (r *Router) handleStop(c *gin.Context) {
	name := c.Param("name")
	err := r.sup.Stop(name)
	r.finishLifecycle(c, name, err)
}

func (r *Router) finishLifecycle(c *gin.Context, name string, err error) {
	switch {
	case err == nil:
		c.JSON(http.StatusOK, successResp{Success: true})
	case errors.Is(err, supervisor.ErrUnknownService):
		// No broadcast: an unknown name never touches the table.
		c.JSON(http.StatusNotFound, failureResp{Success: false, Error: err.Error()})
	default:
		r.hub.BroadcastError(name, err.Error())
		status := http.StatusInternalServerError
		if errors.Is(err, probe.ErrReadinessTimeout) {
			status = http.StatusGatewayTimeout
		}
		c.JSON(status, failureResp{Success: false, Error: err.Error()})
	}
}

func sanitizeBase(basePath string) string {
	if basePath == "" {
		return "/api"
	}
	if basePath[0] != '/' {
		basePath = "/" + basePath
	}
	for len(basePath) > 1 && basePath[len(basePath)-1] == '/' {
		basePath = basePath[:len(basePath)-1]
	}
	return basePath
}
