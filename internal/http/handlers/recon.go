package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/reconify-backend/internal/http/response"
	"github.com/yungbote/reconify-backend/internal/ingest"
	"github.com/yungbote/reconify-backend/internal/platform/logger"
	"github.com/yungbote/reconify-backend/internal/services"
)

type ReconHandler struct {
	log     *logger.Logger
	recon   services.ReconciliationService
	uploads services.UploadService
	history services.HistoryService
	parser  *ingest.Parser
}

func NewReconHandler(
	log *logger.Logger,
	recon services.ReconciliationService,
	uploads services.UploadService,
	history services.HistoryService,
	parser *ingest.Parser,
) *ReconHandler {
	return &ReconHandler{
		log:     log.With("handler", "ReconHandler"),
		recon:   recon,
		uploads: uploads,
		history: history,
		parser:  parser,
	}
}

// POST /recon/upload
func (h *ReconHandler) UploadPanelData(c *gin.Context) {
	file, err := readUpload(c, h.parser)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	panelName, err := panelNameParam(c)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	res, err := h.uploads.UploadPanelData(c.Request.Context(), panelName, file)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondCreated(c, res)
}

// POST /categorize_users
func (h *ReconHandler) CategorizeUsers(c *gin.Context) {
	panelName, err := panelNameParam(c)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	out, err := h.recon.CategorizeUsers(c.Request.Context(), panelName)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, out)
}

// POST /recon/process
func (h *ReconHandler) ReconcilePanel(c *gin.Context) {
	panelName, err := panelNameParam(c)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	out, err := h.recon.ReconcilePanel(c.Request.Context(), panelName)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, out)
}

// POST /recategorize_users
func (h *ReconHandler) RecategorizeUsers(c *gin.Context) {
	file, err := readUpload(c, h.parser)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	panelName, err := panelNameParam(c)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	out, err := h.recon.RecategorizeUsers(c.Request.Context(), panelName, file)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, out)
}

// GET /recon/summary
func (h *ReconHandler) ReconSummaries(c *gin.Context) {
	runs, err := h.history.ReconSummaries(c.Request.Context())
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, runs)
}

// GET /recon/summary/:id
func (h *ReconHandler) ReconSummary(c *gin.Context) {
	detail, err := h.history.ReconSummary(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, detail)
}

// GET /recon/initialsummary, GET /recon/initialsummary/:id
func (h *ReconHandler) StatusBreakdown(c *gin.Context) {
	out, err := h.history.StatusBreakdown(c.Request.Context(), c.Query("status_type"), c.Param("id"))
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, out)
}

// GET /recategorizations
func (h *ReconHandler) Recategorizations(c *gin.Context) {
	runs, err := h.history.ListRecategorizations(c.Request.Context(), c.Query("panel_name"))
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, runs)
}

// GET /users/summary
func (h *ReconHandler) UserSummary(c *gin.Context) {
	out, err := h.history.UserSummary(c.Request.Context())
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, out)
}
