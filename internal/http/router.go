package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/reconify-backend/internal/http/handlers"
	httpMW "github.com/yungbote/reconify-backend/internal/http/middleware"
	"github.com/yungbote/reconify-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	ServiceName    string
	CORSOrigins    []string
	MaxUploadBytes int64

	AuthMiddleware *httpMW.AuthMiddleware

	HealthHandler *httpH.HealthHandler
	PanelHandler  *httpH.PanelHandler
	SOTHandler    *httpH.SOTHandler
	ReconHandler  *httpH.ReconHandler
	AuditHandler  *httpH.AuditHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	log := cfg.Log
	if log == nil {
		log = logger.NewNop()
	}
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "reconify"
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(serviceName))
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.AttachRequestContext())
	r.Use(httpMW.RequestLogger(log))
	r.Use(httpMW.CORS(cfg.CORSOrigins))
	r.Use(httpMW.LimitBody(cfg.MaxUploadBytes))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	protected := r.Group("/")
	{
		// Middleware
		if cfg.AuthMiddleware != nil {
			protected.Use(cfg.AuthMiddleware.RequireAuth())
		}

		// Panels
		if cfg.PanelHandler != nil {
			protected.GET("/panels", cfg.PanelHandler.ListPanels)
			protected.POST("/panels/save", cfg.PanelHandler.SavePanel)
			protected.POST("/panels/add", cfg.PanelHandler.SavePanel)
			protected.PUT("/panels/modify", cfg.PanelHandler.ModifyPanel)
			protected.DELETE("/panels/delete", cfg.PanelHandler.DeletePanel)
			protected.POST("/panels/upload_file", cfg.PanelHandler.PreviewHeaders)
			protected.GET("/panels/upload_history", cfg.PanelHandler.UploadHistory)
			protected.GET("/panels/:name/headers", cfg.PanelHandler.PanelHeaders)
			protected.GET("/panels/:name/details", cfg.PanelHandler.PanelDetails)
		}

		// Sources of truth
		if cfg.SOTHandler != nil {
			protected.GET("/sot/list", cfg.SOTHandler.ListSOTs)
			protected.GET("/sot/fields/:sot", cfg.SOTHandler.Fields)
			protected.POST("/sot/upload", cfg.SOTHandler.Upload)
			protected.GET("/sot/uploads", cfg.SOTHandler.ListUploads)
			protected.GET("/sot/config", cfg.SOTHandler.ListConfigs)
			protected.POST("/sot/config", cfg.SOTHandler.CreateConfig)
			protected.PUT("/sot/config/:sot", cfg.SOTHandler.UpdateConfig)
			protected.DELETE("/sot/config/:sot", cfg.SOTHandler.DeleteConfig)
		}

		// Reconciliation
		if cfg.ReconHandler != nil {
			protected.POST("/recon/upload", cfg.ReconHandler.UploadPanelData)
			protected.POST("/categorize_users", cfg.ReconHandler.CategorizeUsers)
			protected.POST("/recon/process", cfg.ReconHandler.ReconcilePanel)
			protected.POST("/recategorize_users", cfg.ReconHandler.RecategorizeUsers)
			protected.GET("/recon/summary", cfg.ReconHandler.ReconSummaries)
			protected.GET("/recon/summary/:id", cfg.ReconHandler.ReconSummary)
			protected.GET("/recon/initialsummary", cfg.ReconHandler.StatusBreakdown)
			protected.GET("/recon/initialsummary/:id", cfg.ReconHandler.StatusBreakdown)
			protected.GET("/recategorizations", cfg.ReconHandler.Recategorizations)
			protected.GET("/users/summary", cfg.ReconHandler.UserSummary)
		}

		// Audit
		if cfg.AuditHandler != nil {
			protected.GET("/audit/trail", cfg.AuditHandler.Trail)
			protected.GET("/audit/summary", cfg.AuditHandler.Summary)
			protected.GET("/audit/actions", cfg.AuditHandler.Actions)
			protected.GET("/audit/user-activity/:user", cfg.AuditHandler.UserActivity)
			protected.GET("/audit/action-stats/:action", cfg.AuditHandler.ActionStats)
			protected.DELETE("/audit/cleanup", cfg.AuditHandler.Cleanup)
		}
	}

	return r
}
