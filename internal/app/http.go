package app

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/reconify-backend/internal/http"
	httpH "github.com/yungbote/reconify-backend/internal/http/handlers"
	httpMW "github.com/yungbote/reconify-backend/internal/http/middleware"
	"github.com/yungbote/reconify-backend/internal/platform/logger"
)

type Middleware struct {
	Auth *httpMW.AuthMiddleware
}

type Handlers struct {
	Health *httpH.HealthHandler
	Panel  *httpH.PanelHandler
	SOT    *httpH.SOTHandler
	Recon  *httpH.ReconHandler
	Audit  *httpH.AuditHandler
}

func wireHandlers(log *logger.Logger, services Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health: httpH.NewHealthHandler(),
		Panel:  httpH.NewPanelHandler(log, services.Panels, services.History, services.Parser),
		SOT:    httpH.NewSOTHandler(log, services.SOTs, services.Parser),
		Recon:  httpH.NewReconHandler(log, services.Recon, services.Uploads, services.History, services.Parser),
		Audit:  httpH.NewAuditHandler(log, services.Audit),
	}
}

func wireMiddleware(log *logger.Logger, services Services) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Auth: httpMW.NewAuthMiddleware(log, services.Auth),
	}
}

func wireRouter(log *logger.Logger, cfg Config, handlers Handlers, middleware Middleware) *gin.Engine {
	return http.NewRouter(http.RouterConfig{
		Log:            log,
		ServiceName:    "reconify",
		CORSOrigins:    cfg.CORSOrigins,
		MaxUploadBytes: cfg.MaxUploadBytes,
		AuthMiddleware: middleware.Auth,
		HealthHandler:  handlers.Health,
		PanelHandler:   handlers.Panel,
		SOTHandler:     handlers.SOT,
		ReconHandler:   handlers.Recon,
		AuditHandler:   handlers.Audit,
	})
}
