package handler

import (
	"net/http"
	"time"

	"asyncops/internal/config"
	"asyncops/internal/middleware"
	"asyncops/internal/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type Services struct {
	Auth      *service.AuthService
	Users     *service.UserService
	Status    *service.StatusService
	Incidents *service.IncidentService
	Blockers  *service.BlockerService
	Decisions *service.DecisionService
	Summaries *service.SummaryService
}

func NewServices(db *gorm.DB, auth config.AuthConfig, opts ...service.SummaryOption) Services {
	tokens := service.NewTokenService(auth.JWTSecret, auth.TokenTTL)
	return Services{
		Auth:      service.NewAuthService(db, tokens),
		Users:     service.NewUserService(db),
		Status:    service.NewStatusService(db),
		Incidents: service.NewIncidentService(db),
		Blockers:  service.NewBlockerService(db),
		Decisions: service.NewDecisionService(db),
		Summaries: service.NewSummaryService(db, opts...),
	}
}

func NewRouter(cfg config.CORSConfig, s Services) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger())
	cc := cors.Config{
		AllowOrigins:     cfg.Origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.Origins) == 0 {
		cc.AllowOrigins = nil
		cc.AllowAllOrigins = true
		cc.AllowCredentials = false
	}
	r.Use(cors.New(cc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "asyncops-api"})
	})

	authH := NewAuthHandler(s.Auth, s.Users)
	statusH := NewStatusHandler(s.Status)
	incidentH := NewIncidentHandler(s.Incidents)
	blockerH := NewBlockerHandler(s.Blockers)
	decisionH := NewDecisionHandler(s.Decisions)
	summaryH := NewSummaryHandler(s.Summaries)
	admin := middleware.RequireAdmin()

	r.POST("/api/auth/register", authH.Register)
	r.POST("/api/auth/login", authH.Login)

	api := r.Group("/api", middleware.JWTAuth(s.Auth))
	api.GET("/auth/me", authH.Me)

	users := api.Group("/users")
	users.GET("/me", authH.Me)
	users.PATCH("/me", authH.UpdateMe)
	users.POST("/me/change-password", authH.ChangePassword)
	users.GET("/for-assignment", authH.ForAssignment)
	users.GET("", admin, authH.ListUsers)
	users.GET("/:id", admin, authH.GetUser)

	st := api.Group("/status")
	st.POST("", statusH.Create)
	st.GET("", statusH.List)
	st.GET("/:id", statusH.Get)
	st.PATCH("/:id", statusH.Update)
	st.DELETE("/:id", statusH.Delete)

	inc := api.Group("/incidents")
	inc.POST("", incidentH.Create)
	inc.GET("", incidentH.List)
	inc.GET("/:id", incidentH.Get)
	inc.PATCH("/:id", incidentH.Update)
	inc.PATCH("/:id/status", incidentH.SetStatus)
	inc.PATCH("/:id/assign", incidentH.Assign)
	inc.PATCH("/:id/archive", incidentH.Archive)
	inc.PATCH("/:id/unarchive", incidentH.Unarchive)
	inc.DELETE("/:id", admin, incidentH.Delete)

	bl := api.Group("/blockers")
	bl.POST("", blockerH.Create)
	bl.GET("", blockerH.List)
	bl.GET("/:id", blockerH.Get)
	bl.PATCH("/:id", blockerH.Update)
	bl.PATCH("/:id/resolve", blockerH.Resolve)
	bl.PATCH("/:id/archive", blockerH.Archive)
	bl.PATCH("/:id/unarchive", blockerH.Unarchive)
	bl.DELETE("/:id", admin, blockerH.Delete)

	dec := api.Group("/decisions")
	dec.POST("", decisionH.Create)
	dec.GET("", decisionH.List)
	dec.GET("/:id", decisionH.Get)
	dec.PATCH("/:id", decisionH.Update)
	dec.DELETE("/:id", decisionH.Delete)
	dec.GET("/:id/audit", decisionH.Audit)

	sum := api.Group("/summaries")
	sum.POST("/generate", admin, summaryH.Generate)
	sum.GET("", summaryH.List)
	sum.GET("/:id", summaryH.Get)

	return r
}
