package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"basegraph.app/textrelay/internal/http/handler"
	"basegraph.app/textrelay/internal/http/handler/webhook"
	"basegraph.app/textrelay/internal/http/middleware"
)

type RouterConfig struct {
	Credentials middleware.BasicCredentials
}

type Handlers struct {
	Status  *handler.StatusHandler
	Webhook *webhook.TwilioWebhookHandler
}

type route struct {
	method  string
	path    string
	access  middleware.Access
	handler gin.HandlerFunc
}

// SetupRoutes registers every route together with its access level. The
// access gate is installed from the same table, before the routes, so a
// route cannot be registered without a policy entry.
func SetupRoutes(router *gin.Engine, h Handlers, cfg RouterConfig) {
	routes := []route{
		{http.MethodGet, "/", middleware.Public, h.Status.Index},
		{http.MethodGet, "/health", middleware.Public, h.Status.Health},
		{http.MethodPost, "/webhook", middleware.Public, h.Webhook.HandleMessage},
		{http.MethodGet, "/admin", middleware.Gated, h.Status.Admin},
		{http.MethodGet, "/metrics", middleware.Gated, gin.WrapH(promhttp.Handler())},
	}

	policy := make(middleware.RoutePolicy, len(routes))
	for _, r := range routes {
		policy[r.path] = r.access
	}
	router.Use(middleware.AccessGate(policy, cfg.Credentials))

	for _, r := range routes {
		router.Handle(r.method, r.path, r.handler)
	}
}
