package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/smallbiznis/gnap-auth/internal/config"
	"github.com/smallbiznis/gnap-auth/internal/http/handler"
	"github.com/smallbiznis/gnap-auth/internal/http/middleware"
	"github.com/smallbiznis/gnap-auth/internal/tenant"
)

// NewRouter wires Gin routes and middleware.
func NewRouter(
	cfg config.Config,
	grantHandler *handler.GrantHandler,
	tokenHandler *handler.TokenHandler,
	interactionHandler *handler.InteractionHandler,
	signature *middleware.Signature,
	resolver *tenant.Resolver,
) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS(cfg))
	r.Use(middleware.Tenant(resolver))
	r.Use(otelgin.Middleware(cfg.ServiceName))

	r.POST("/", signature.GrantInit, grantHandler.Create)

	r.POST("/continue/:id", signature.Continuation, grantHandler.Continue)
	r.DELETE("/continue/:id", signature.Continuation, grantHandler.Revoke)

	r.POST("/token/:id", signature.TokenManagement, tokenHandler.Rotate)
	r.DELETE("/token/:id", signature.TokenManagement, tokenHandler.Revoke)
	r.POST("/introspect", tokenHandler.Introspect)

	interact := r.Group("/interact")
	{
		interact.GET("/:id/:nonce", interactionHandler.Start)
		interact.GET("/:id/:nonce/finish", interactionHandler.Finish)
	}

	idp := r.Group("/grant")
	{
		idp.GET("/:id/:nonce", interactionHandler.GetGrant)
		idp.POST("/:id/:nonce/:choice", interactionHandler.Choice)
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return r
}
