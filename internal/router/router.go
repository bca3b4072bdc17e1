// Package router registers the HTTP routes. Every protected route declares
// the permissions it needs; all of them must be present in the token.
package router

import (
	"crypto/rsa"
	"database/sql"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/guesthouse-admin/internal/config"
	"github.com/iliyamo/guesthouse-admin/internal/handler"
	"github.com/iliyamo/guesthouse-admin/internal/metrics"
	"github.com/iliyamo/guesthouse-admin/internal/middleware"
	m "github.com/iliyamo/guesthouse-admin/internal/model"
)

// Handlers groups the handler sets served by the API.
type Handlers struct {
	Auth        *handler.AuthHandler
	Guests      *handler.GuestHandler
	Rooms       *handler.RoomHandler
	Assignments *handler.AssignmentHandler
	Masters     *handler.MasterHandler
	Admin       *handler.AdminHandler
	Reports     *handler.ReportHandler
}

// Options carries the infrastructure the routes are wrapped with. Redis
// and Metrics may be nil.
type Options struct {
	DB        *sql.DB
	PublicKey *rsa.PublicKey
	Redis     *redis.Client
	RateLimit config.RateLimitConfig
	Cache     config.CacheConfig
	Metrics   *metrics.Metrics
	Log       *zap.Logger
}

// RegisterRoutes registers the unauthenticated operational endpoints.
func RegisterRoutes(e *echo.Echo, o Options) {
	e.GET("/healthz", handler.Health(o.DB))
	if o.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(o.Metrics.Handler()))
	}
}

// RegisterAuth registers the session endpoints. The public ones sit behind
// the token bucket.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, o Options) {
	g := e.Group("/auth", middleware.NewTokenBucket(o.RateLimit, o.Redis, o.Log))
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)
	g.POST("/forgot-password", a.ForgotPassword)
	g.POST("/reset-password", a.ResetPassword)

	jwt := middleware.JWTAuth(o.PublicKey)
	e.GET("/auth/me", a.Me, jwt)
	e.POST("/auth/change-password", a.ChangePassword, jwt)
}

// Register wires every route.
func Register(e *echo.Echo, h Handlers, o Options) {
	RegisterRoutes(e, o)
	RegisterAuth(e, h.Auth, o)

	jwt := middleware.JWTAuth(o.PublicKey)
	perm := middleware.RequirePermissions

	// ---- Guests ----
	g := e.Group("/guests", jwt)
	g.POST("", h.Guests.CreateGuest, perm(m.PermGuestCreate))
	g.GET("", h.Guests.ListGuests, perm(m.PermGuestRead))
	g.GET("/all", h.Guests.ListGuests, perm(m.PermGuestRead))
	g.GET("/:id", h.Guests.GetGuest, perm(m.PermGuestRead))
	g.PUT("/:id", h.Guests.UpdateGuest, perm(m.PermGuestUpdate))
	g.PATCH("/:id", h.Guests.UpdateGuest, perm(m.PermGuestUpdate))
	g.DELETE("/:id", h.Guests.DeleteGuest, perm(m.PermGuestDelete))
	g.PUT("/:id/designation", h.Guests.ChangeDesignation, perm(m.PermGuestUpdate))
	g.GET("/:id/visits", h.Guests.ListVisits, perm(m.PermGuestRead, m.PermInOutRead))

	// ---- Visits ----
	io := e.Group("/guest-inout", jwt)
	io.POST("", h.Guests.ScheduleVisit, perm(m.PermInOutManage))
	io.GET("/:id", h.Guests.GetVisit, perm(m.PermInOutRead))
	io.PATCH("/:id", h.Guests.UpdateVisit, perm(m.PermInOutManage))
	io.POST("/:id/inside", h.Guests.MarkInside, perm(m.PermInOutManage))
	io.POST("/:id/exit", h.Guests.Exit, perm(m.PermInOutManage))
	io.POST("/:id/cancel", h.Guests.Cancel, perm(m.PermInOutManage))

	// ---- Rooms ----
	r := e.Group("/rooms", jwt)
	r.POST("", h.Rooms.CreateRoom, perm(m.PermRoomManage))
	r.GET("", h.Rooms.ListRooms, perm(m.PermRoomRead))
	r.GET("/all", h.Rooms.ListRooms, perm(m.PermRoomRead))
	r.GET("/:id", h.Rooms.GetRoom, perm(m.PermRoomRead))
	r.PUT("/:id", h.Rooms.UpdateRoom, perm(m.PermRoomManage))
	r.PATCH("/:id", h.Rooms.UpdateRoom, perm(m.PermRoomManage))
	r.DELETE("/:id", h.Rooms.DeleteRoom, perm(m.PermRoomManage))

	gr := e.Group("/guest-rooms", jwt)
	gr.POST("", h.Rooms.Assign, perm(m.PermRoomAssign))
	gr.GET("/:id", h.Rooms.GetAssignment, perm(m.PermRoomRead))
	gr.PATCH("/:id", h.Rooms.UpdateAssignment, perm(m.PermRoomAssign))
	gr.POST("/:id/vacate", h.Rooms.Vacate, perm(m.PermRoomAssign))
	gr.POST("/:id/change", h.Rooms.Change, perm(m.PermRoomAssign))

	// Master reads are cached after the permission check. A successful
	// master write purges the cache, and so does an assignment write since
	// it moves driver and vehicle statuses.
	cache := middleware.NewRedisCache(o.Cache, o.Redis, o.Log)
	purge := middleware.NewCachePurge(o.Cache, o.Redis, o.Log)

	// ---- Resource assignments ----
	as := e.Group("/assignments", jwt)
	as.GET("", h.Assignments.Kinds, perm(m.PermAssignmentRead))
	as.POST("/:kind", h.Assignments.Assign, perm(m.PermAssignmentManage), purge)
	as.POST("/:kind/request", h.Assignments.Request, perm(m.PermAssignmentManage), purge)
	as.GET("/:kind", h.Assignments.ListByGuest, perm(m.PermAssignmentRead))
	as.GET("/:kind/:id", h.Assignments.Get, perm(m.PermAssignmentRead))
	as.PATCH("/:kind/:id", h.Assignments.Update, perm(m.PermAssignmentManage), purge)
	as.POST("/:kind/:id/close", h.Assignments.Close, perm(m.PermAssignmentManage), purge)

	// ---- Masters ----
	ms := e.Group("/masters", jwt)
	ms.GET("", h.Masters.Kinds, perm(m.PermMasterRead))
	ms.POST("/:kind", h.Masters.Create, perm(m.PermMasterManage), cache)
	ms.GET("/:kind", h.Masters.List, perm(m.PermMasterRead), cache)
	ms.GET("/:kind/all", h.Masters.List, perm(m.PermMasterRead), cache)
	ms.GET("/:kind/:id", h.Masters.Get, perm(m.PermMasterRead), cache)
	ms.PUT("/:kind/:id", h.Masters.Update, perm(m.PermMasterManage), cache)
	ms.PATCH("/:kind/:id", h.Masters.Update, perm(m.PermMasterManage), cache)
	ms.DELETE("/:kind/:id", h.Masters.Delete, perm(m.PermMasterManage), cache)

	// ---- Users, roles, permissions ----
	u := e.Group("/users", jwt)
	u.POST("", h.Admin.CreateUser, perm(m.PermUserManage))
	u.GET("", h.Admin.ListUsers, perm(m.PermUserRead))
	u.GET("/all", h.Admin.ListUsers, perm(m.PermUserRead))
	u.GET("/:id", h.Admin.GetUser, perm(m.PermUserRead))
	u.PUT("/:id", h.Admin.UpdateUser, perm(m.PermUserManage))
	u.PATCH("/:id", h.Admin.UpdateUser, perm(m.PermUserManage))
	u.DELETE("/:id", h.Admin.DeleteUser, perm(m.PermUserManage))

	rl := e.Group("/roles", jwt)
	rl.POST("", h.Admin.CreateRole, perm(m.PermRoleManage))
	rl.GET("", h.Admin.ListRoles, perm(m.PermRoleRead))
	rl.GET("/all", h.Admin.ListRoles, perm(m.PermRoleRead))
	rl.GET("/:id", h.Admin.GetRole, perm(m.PermRoleRead))
	rl.PUT("/:id", h.Admin.UpdateRole, perm(m.PermRoleManage))
	rl.PATCH("/:id", h.Admin.UpdateRole, perm(m.PermRoleManage))
	rl.DELETE("/:id", h.Admin.DeleteRole, perm(m.PermRoleManage))
	rl.PUT("/:id/permissions/:permissionId", h.Admin.TogglePermission, perm(m.PermRoleManage))

	e.GET("/permissions", h.Admin.ListPermissions, jwt, perm(m.PermRoleRead))

	// ---- Reports ----
	rp := e.Group("/reports", jwt)
	rp.GET("", h.Reports.Views, perm(m.PermReportRead))
	rp.GET("/assignments/:kind", h.Reports.Query, perm(m.PermReportRead, m.PermAssignmentRead))
	rp.GET("/assignments/:kind/export", h.Reports.Export, perm(m.PermReportExport, m.PermAssignmentRead))
	rp.GET("/:view", h.Reports.Query, perm(m.PermReportRead))
	rp.GET("/:view/export", h.Reports.Export, perm(m.PermReportExport))
}
