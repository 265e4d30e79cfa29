package server

import (
	"github.com/adilbek/sisyphus/internal/auth"
	"github.com/adilbek/sisyphus/internal/config"
	"github.com/adilbek/sisyphus/internal/metrics"
	"github.com/adilbek/sisyphus/internal/task"
	"github.com/adilbek/sisyphus/internal/user"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Dependencies groups the services required by the HTTP router.
type Dependencies struct {
	Config      config.Config
	DB          *pgxpool.Pool
	Redis       *redis.Client
	AuthService *auth.Service
	TaskService *task.Service
	UserService *user.Service
}

// NewRouter builds a Gin engine with foundational middleware and routes.
func NewRouter(deps Dependencies) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gin.Logger())
	router.Use(metrics.Middleware())

	registerHealthRoutes(router, deps)
	metrics.Register(router, deps.Config.Metrics.PrometheusPath)

	api := router.Group("/v1")
	if deps.AuthService != nil {
		auth.RegisterRoutes(api, deps.AuthService)

		protected := api.Group("/")
		protected.Use(auth.Middleware(deps.AuthService))

		auth.RegisterProtectedRoutes(protected, deps.AuthService)
		if deps.TaskService != nil {
			task.RegisterRoutes(protected, deps.TaskService, deps.AuthService)
		}
		if deps.UserService != nil {
			user.RegisterRoutes(protected, deps.UserService)
		}
	}

	return router
}
