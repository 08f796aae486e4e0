package server

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/gin-gonic/gin"
)

// proxyTo forwards a request to a supervised service, rewriting the path.
// The orchestrator does not inspect payloads; upload parsing and
// validation belong to the target service.
func (r *Router) proxyTo(service, targetPath string) gin.HandlerFunc {
	return func(c *gin.Context) {
		desc, ok := r.reg.Lookup(service)
		if !ok {
			c.JSON(http.StatusNotFound, failureResp{Success: false, Error: fmt.Sprintf("service %s not configured", service)})
			return
		}
		target := &url.URL{Scheme: "http", Host: fmt.Sprintf("localhost:%d", desc.Port)}
		proxy := httputil.NewSingleHostReverseProxy(target)
		proxy.Director = func(req *http.Request) {
			req.URL.Scheme = target.Scheme
			req.URL.Host = target.Host
			req.URL.Path = targetPath
			req.Host = target.Host
		}
		proxy.ErrorHandler = func(w http.ResponseWriter, req *http.Request, err error) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadGateway)
			_, _ = fmt.Fprintf(w, `{"success":false,"error":%q}`, err.Error())
		}
		proxy.ServeHTTP(c.Writer, c.Request)
	}
}
