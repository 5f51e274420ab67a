package server

import (
	"context"
	"net/http"
	"time"

	"todoapp/internal/clock"
	"todoapp/internal/domain/errors"
	"todoapp/internal/notify"
	"todoapp/internal/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type TodoAPI struct {
	httpSrv *http.Server
	cfg     Config
	clock   clock.Clock

	accounts      *service.AccountService
	verifications *service.VerificationService
	resets        *service.PasswordResetService
	tasks         *service.TaskService
	stats         *service.StatsService
}

// NewTodoAPI wires the services over store and registers the routes. cache may
// be nil, in which case statistics are computed on every request.
func NewTodoAPI(store service.Store, notifier notify.Notifier, cache service.StatsCache, cfg *Config) *TodoAPI {
	return newTodoAPI(store, notifier, cache, cfg, clock.System{})
}

func newTodoAPI(store service.Store, notifier notify.Notifier, cache service.StatsCache, cfg *Config, clk clock.Clock) *TodoAPI {
	if store == nil || notifier == nil {
		return nil
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	conf := cfg.withDefaults()

	verifications := service.NewVerificationService(store, notifier, clk)
	api := &TodoAPI{
		httpSrv:       &http.Server{Addr: conf.ListenAddr(), ReadHeaderTimeout: 10 * time.Second},
		cfg:           conf,
		clock:         clk,
		accounts:      service.NewAccountService(store, verifications, clk, cache),
		verifications: verifications,
		resets:        service.NewPasswordResetService(store, notifier, clk, conf.JWTSecret, service.DefaultResetTTL),
		tasks:         service.NewTaskService(store, store, clk, cache),
		stats:         service.NewStatsService(store, clk, cache),
	}
	api.configRoutes()
	return api
}

func (api *TodoAPI) Start() error {
	if api.httpSrv == nil {
		return errors.ErrInternalServer
	}
	if api.httpSrv.Addr == "" {
		api.httpSrv.Addr = ":8080"
	}
	return api.httpSrv.ListenAndServe()
}

func (api *TodoAPI) Shutdown(ctx context.Context) error {
	return api.httpSrv.Shutdown(ctx)
}

func (api *TodoAPI) configRoutes() {
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(RequestLogger(), gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     api.cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Content-Encoding"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	router.Use(DecompressRequest(), CompressResponse())

	router.NoMethod(func(ctx *gin.Context) {
		ctx.JSON(http.StatusMethodNotAllowed, gin.H{"error": "method not allowed", "code": "method_not_allowed"})
	})
	router.NoRoute(func(ctx *gin.Context) {
		writeError(ctx, errors.ErrNotFound)
	})

	router.GET("/health", api.health)

	limited := RateLimiter(rate.Limit(float64(api.cfg.RateLimitPerMin)/60.0), api.cfg.RateLimitBurst)
	auth := api.authRequired()

	users := router.Group("/users")
	{
		users.POST("/register", limited, api.register)
		users.POST("/login", limited, api.login)
		users.POST("/logout", api.logout)
		users.GET("/me", auth, api.me)
		users.DELETE("/me", auth, api.deleteMe)
	}

	verify := router.Group("/verify-email")
	{
		verify.POST("/resend", limited, auth, api.resendVerification)
		verify.GET("/:token", api.verifyEmail)
	}

	reset := router.Group("/password-reset", limited)
	{
		reset.POST("", api.requestPasswordReset)
		reset.POST("/:token", api.confirmPasswordReset)
	}

	tasks := router.Group("/tasks", auth)
	{
		tasks.GET("", api.listTasks)
		tasks.POST("", api.createTask)
		tasks.GET("/:taskID", api.getTask)
		tasks.PUT("/:taskID", api.updateTask)
		tasks.DELETE("/:taskID", api.deleteTask)
		tasks.POST("/:taskID/toggle", api.toggleTask)
		tasks.POST("/:taskID/subtasks", api.addSubtask)
	}

	subtasks := router.Group("/subtasks", auth)
	{
		subtasks.POST("/:subtaskID/toggle", api.toggleSubtask)
		subtasks.DELETE("/:subtaskID", api.deleteSubtask)
	}

	router.GET("/statistics", auth, api.statistics)

	api.httpSrv.Handler = router
}
