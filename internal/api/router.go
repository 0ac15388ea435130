package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/opsdesk/desk-agent/internal/api/handler"
	"github.com/opsdesk/desk-agent/internal/api/middleware"
	"github.com/opsdesk/desk-agent/internal/core/domain"
	"github.com/opsdesk/desk-agent/internal/core/ports"
	"github.com/opsdesk/desk-agent/internal/core/service"
)

// Deps carries everything the status server exposes.
type Deps struct {
	Session    *service.SessionService
	Aggregator *service.Aggregator
	Chat       *service.ChatTracker
	Transport  ports.Transport
	Alerter    ports.Alerter
	Store      ports.StateStore
	Log        zerolog.Logger
}

// NewRouter builds and returns the Echo instance with all routes registered.
// The surface is a local control plane: it gates feed routes behind the
// permission model the same way the SPA gates its navigation.
func NewRouter(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echoprometheus.NewMiddleware("deskd"))

	// --- Handlers ---
	agentHandler := handler.NewAgentHandler(d.Session, d.Transport, d.Alerter, d.Store)
	sessionHandler := handler.NewSessionHandler(d.Session)
	feedHandler := handler.NewFeedHandler(d.Aggregator, d.Chat)

	// --- Open routes ---
	e.GET("/health", agentHandler.Liveness)
	e.GET("/metrics", echoprometheus.NewHandler())
	e.GET("/status", agentHandler.Status)
	e.POST("/session/login", sessionHandler.Login)
	e.POST("/session/logout", sessionHandler.Logout)
	e.GET("/session", sessionHandler.Current)
	e.POST("/interact", agentHandler.Interact)
	e.GET("/preferences/language", agentHandler.Language)
	e.PUT("/preferences/language", agentHandler.SetLanguage)

	// --- Session-gated routes ---
	authed := e.Group("", middleware.RequireSession(d.Session))
	authed.GET("/nav", sessionHandler.Navigation)
	authed.POST("/realtime/connect", agentHandler.Connect)
	authed.POST("/realtime/disconnect", agentHandler.Disconnect)
	authed.POST("/chat/conversations/:id/read", feedHandler.MarkConversationRead)

	// --- Feed routes, gated like the dashboard page ---
	feed := e.Group("/feed", middleware.PageAccess(d.Session, domain.PageDashboard, false))
	feed.GET("", feedHandler.List)
	feed.GET("/unread", feedHandler.Unread)
	feed.POST("/refresh", feedHandler.Refresh)
	feed.POST("/read", feedHandler.MarkRead)
	feed.POST("/read-all", feedHandler.MarkAllRead)

	// --- Approval actions require edit on the tasks page ---
	approvals := e.Group("/approvals", middleware.PageAccess(d.Session, domain.PageTasks, true))
	approvals.POST("/:id/respond", feedHandler.RespondApproval)
	approvals.DELETE("/:id", feedHandler.DismissApproval)
	approvals.DELETE("", feedHandler.ClearApprovals)

	return e
}
