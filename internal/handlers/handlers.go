package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/BHARGAVSAI558/final-zero-trust/internal/authctx"
	"github.com/BHARGAVSAI558/final-zero-trust/internal/client"
	"github.com/BHARGAVSAI558/final-zero-trust/internal/config"
	"github.com/BHARGAVSAI558/final-zero-trust/internal/dashboard"
	"github.com/BHARGAVSAI558/final-zero-trust/internal/files"
	"github.com/BHARGAVSAI558/final-zero-trust/internal/gateway"
	"github.com/BHARGAVSAI558/final-zero-trust/internal/middleware"
	"github.com/BHARGAVSAI558/final-zero-trust/internal/models"
	"github.com/BHARGAVSAI558/final-zero-trust/internal/store"
	"github.com/BHARGAVSAI558/final-zero-trust/internal/stream"
)

type Registrar interface {
	Register(ctx context.Context, r client.Registration) error
}

// Pinger is a backing service checked by /healthz.
type Pinger interface {
	Ping(ctx context.Context) error
}

type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

type Deps struct {
	Auth      *authctx.Context
	Registrar Registrar
	Store     *store.Store
	Dashboard *dashboard.Dashboard
	Gateway   *gateway.Gateway
	Files     *files.Manager
	Stream    *stream.Streamer
	Checks    map[string]Pinger
}

type HandlerSet struct {
	log       zerolog.Logger
	cfg       *config.AppConfig
	auth      *authctx.Context
	registrar Registrar
	store     *store.Store
	dashboard *dashboard.Dashboard
	gateway   *gateway.Gateway
	files     *files.Manager
	stream    *stream.Streamer
	checks    map[string]Pinger
}

func NewHandlerSet(log zerolog.Logger, cfg *config.AppConfig, deps Deps) HandlerSet {
	return HandlerSet{
		log:       log.With().Str("component", "handlers").Logger(),
		cfg:       cfg,
		auth:      deps.Auth,
		registrar: deps.Registrar,
		store:     deps.Store,
		dashboard: deps.Dashboard,
		gateway:   deps.Gateway,
		files:     deps.Files,
		stream:    deps.Stream,
		checks:    deps.Checks,
	}
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	auth := router.Group("/auth")
	auth.POST("/login", h.Login)
	auth.POST("/register", h.RegisterPrincipal)
	auth.POST("/logout", h.Logout)
	auth.GET("/me", middleware.RequireSession(h.auth), h.Me)

	session := router.Group("")
	session.Use(middleware.RequireSession(h.auth))
	session.GET("/view", h.View)
	session.GET("/stream", h.Stream)

	staff := session.Group("/principals")
	staff.Use(middleware.RequireRoles(models.RoleAdmin, models.RoleHR, models.RoleSOC))
	staff.GET("", h.ListPrincipals)
	staff.GET("/:username/sessions", h.PrincipalSessions)

	admin := session.Group("/admin")
	admin.Use(middleware.RequireRoles(models.RoleAdmin))
	admin.POST("/approve", h.Approve)
	admin.POST("/revoke", h.Revoke)

	fileRoutes := session.Group("/files")
	fileRoutes.GET("", h.ListFiles)
	fileRoutes.GET("/trash", h.ListTrash)
	fileRoutes.GET("/:name", h.OpenFile)
	fileRoutes.PUT("/:name", h.SaveFile)
	fileRoutes.DELETE("/:name", h.DeleteFile)
	fileRoutes.POST("/:name/restore", h.RestoreFile)
	fileRoutes.POST("/:name/download", h.DownloadFile)
}
