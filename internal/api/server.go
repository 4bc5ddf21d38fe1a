package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"reviewhub/internal/api/auth"
	"reviewhub/internal/api/middleware"
	"reviewhub/internal/config"
	"reviewhub/internal/model"
	"reviewhub/internal/pkg/metrics"
	"reviewhub/internal/pkg/notify"
	"reviewhub/internal/pkg/ratelimit"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// Server 封装了 API 服务所需的依赖和路由处理。
//
// 它持有数据库连接、Redis 客户端与 Gin 路由引擎。
type Server struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *gorm.DB
	rdb    *redis.Client
	router *gin.Engine
	auth   *auth.Handler

	users    UserStore
	catalog  CatalogStore
	titles   TitleStore
	reviews  ReviewStore
	comments CommentStore
}

// NewServer 初始化 API 服务器。
//
// 它负责：
// 1. 连接 MySQL 数据库并执行自动迁移
// 2. 连接 Redis（认证接口限流）
// 3. 初始化 Gin 路由引擎
func NewServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	db, err := gorm.Open(mysql.Open(cfg.MySQL.DSN), &gorm.Config{
		Logger:         gormLogger.Default.LogMode(gormLogger.Silent), // 关闭GORM调试日志
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(
		&model.User{},
		&model.Category{},
		&model.Genre{},
		&model.Title{},
		&model.Review{},
		&model.Comment{},
	); err != nil {
		return nil, err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       0,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	metrics.InitMetrics()

	mailer := notify.NewEmailNotifier(&cfg.Email, logger)
	users := dbUserStore{db: db}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger))

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		db:       db,
		rdb:      rdb,
		router:   r,
		auth:     auth.NewHandler(users, mailer, &cfg.Security, logger),
		users:    users,
		catalog:  dbCatalogStore{db: db},
		titles:   dbTitleStore{db: db},
		reviews:  dbReviewStore{db: db},
		comments: dbCommentStore{db: db},
	}
	s.registerRoutes()
	return s, nil
}

// Router 返回 HTTP 路由处理器。
func (s *Server) Router() http.Handler {
	return s.router
}

// Close 关闭数据库与缓存连接。
func (s *Server) Close() error {
	var firstErr error
	if s.rdb != nil {
		if err := s.rdb.Close(); err != nil {
			firstErr = err
		}
	}
	if s.db != nil {
		sqlDB, err := s.db.DB()
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
		} else {
			if closeErr := sqlDB.Close(); closeErr != nil {
				if firstErr == nil {
					firstErr = closeErr
				}
			}
		}
	}
	return firstErr
}

// registerRoutes 注册所有的 API 路由。
func (s *Server) registerRoutes() {
	// Prometheus metrics 端点
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	s.router.GET("/healthz", s.handleHealthz)

	secret := s.cfg.Security.JWTSecret
	limiter := ratelimit.NewRedisRateLimiter(
		s.rdb,
		"reviewhub:ratelimit:auth:",
		s.cfg.App.AuthRateLimit,
		s.cfg.App.AuthRateBurst,
	)

	v1 := s.router.Group("/api/v1")

	authGroup := v1.Group("/auth")
	authGroup.Use(middleware.AuthRateLimit(limiter, s.logger))
	authGroup.POST("/signup", s.auth.Signup)
	authGroup.POST("/token", s.auth.Token)

	users := v1.Group("/users")
	users.Use(middleware.AuthRequired(secret))
	users.GET("", s.handleListUsers)
	users.POST("", s.handleCreateUser)
	users.GET("/me", s.handleGetMe)
	users.PATCH("/me", s.handleUpdateMe)
	users.GET("/:username", s.handleGetUser)
	users.PATCH("/:username", s.handleUpdateUser)
	users.DELETE("/:username", s.handleDeleteUser)

	// 目录与评价：读公开，写在 handler 内按主体判权
	public := v1.Group("")
	public.Use(middleware.AuthOptional(secret))

	public.GET("/categories", s.handleListCategories)
	public.POST("/categories", s.handleCreateCategory)
	public.PATCH("/categories/:slug", s.handleUpdateCategory)
	public.DELETE("/categories/:slug", s.handleDeleteCategory)

	public.GET("/genres", s.handleListGenres)
	public.POST("/genres", s.handleCreateGenre)
	public.PATCH("/genres/:slug", s.handleUpdateGenre)
	public.DELETE("/genres/:slug", s.handleDeleteGenre)

	public.GET("/titles", s.handleListTitles)
	public.POST("/titles", s.handleCreateTitle)
	public.GET("/titles/:id", s.handleGetTitle)
	public.PATCH("/titles/:id", s.handleUpdateTitle)
	public.DELETE("/titles/:id", s.handleDeleteTitle)

	public.GET("/titles/:id/reviews", s.handleListReviews)
	public.POST("/titles/:id/reviews", s.handleCreateReview)
	public.GET("/titles/:id/reviews/:rid", s.handleGetReview)
	public.PATCH("/titles/:id/reviews/:rid", s.handleUpdateReview)
	public.DELETE("/titles/:id/reviews/:rid", s.handleDeleteReview)

	public.GET("/titles/:id/reviews/:rid/comments", s.handleListComments)
	public.POST("/titles/:id/reviews/:rid/comments", s.handleCreateComment)
	public.GET("/titles/:id/reviews/:rid/comments/:cid", s.handleGetComment)
	public.PATCH("/titles/:id/reviews/:rid/comments/:cid", s.handleUpdateComment)
	public.DELETE("/titles/:id/reviews/:rid/comments/:cid", s.handleDeleteComment)
}

func (s *Server) handleHealthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if s.db == nil || s.rdb == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error"})
		return
	}

	var one int
	if err := s.db.WithContext(ctx).Raw("SELECT 1").Scan(&one).Error; err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error"})
		return
	}
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
