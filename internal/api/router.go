package api

import (
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/d60-Lab/tastegraph/config"
	_ "github.com/d60-Lab/tastegraph/docs"
	"github.com/d60-Lab/tastegraph/internal/api/handler"
	"github.com/d60-Lab/tastegraph/internal/api/middleware"
	"github.com/d60-Lab/tastegraph/pkg/auth"
)

// NewRouter 注册中间件与全部路由
func NewRouter(cfg *config.Config, h *handler.Handler, verifier auth.TokenVerifier) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	if cfg.Tracing.Enabled {
		r.Use(otelgin.Middleware(cfg.Tracing.ServiceName))
	}
	r.Use(middleware.Logger())
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	r.GET("/health", h.Health)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	limiter := middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	required := middleware.Auth(verifier)
	optional := middleware.OptionalAuth(verifier)

	v1 := r.Group("/api/v1")
	{
		// 可匿名访问
		public := v1.Group("", optional)
		public.GET("/follows/status/:user_id", h.GetStatus)
		public.GET("/users", h.SearchUsers)
		public.GET("/users/:user_id/followers", h.ListFollowers)
		public.GET("/users/:user_id/following", h.ListFollowing)
		public.GET("/users/:user_id/mutual", h.ListMutual)
		public.GET("/users/:user_id/visibility", h.GetVisibility)
		public.GET("/profiles/:user_id", h.GetProfile)

		authed := v1.Group("", required)
		authed.GET("/follows/requests", h.ListPendingRequests)
		authed.GET("/notifications", h.ListNotifications)

		// 写接口限流
		write := authed.Group("", limiter.Middleware())
		write.POST("/follows", h.Follow)
		write.DELETE("/follows/:user_id", h.Unfollow)
		write.DELETE("/followers/:user_id", h.RemoveFollower)
		write.POST("/follows/requests/:request_id/respond", h.RespondToRequest)
		write.PUT("/profile", h.UpsertProfile)
		write.PATCH("/profile/settings", h.UpdateSettings)
		write.POST("/profile/reconcile", h.ReconcileCounts)
		write.POST("/notifications/read", h.MarkNotificationsRead)
	}
	return r
}
