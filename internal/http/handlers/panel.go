package handlers

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	types "github.com/yungbote/reconify-backend/internal/domain/recon"
	"github.com/yungbote/reconify-backend/internal/http/response"
	"github.com/yungbote/reconify-backend/internal/ingest"
	"github.com/yungbote/reconify-backend/internal/platform/apierr"
	"github.com/yungbote/reconify-backend/internal/platform/logger"
	"github.com/yungbote/reconify-backend/internal/services"
)

type PanelHandler struct {
	log     *logger.Logger
	panels  services.PanelService
	history services.HistoryService
	parser  *ingest.Parser
}

func NewPanelHandler(log *logger.Logger, panels services.PanelService, history services.HistoryService, parser *ingest.Parser) *PanelHandler {
	return &PanelHandler{
		log:     log.With("handler", "PanelHandler"),
		panels:  panels,
		history: history,
		parser:  parser,
	}
}

type panelResponse struct {
	Message string       `json:"message"`
	Panel   *types.Panel `json:"panel"`
}

// GET /panels
func (h *PanelHandler) ListPanels(c *gin.Context) {
	panels, err := h.panels.List(c.Request.Context())
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, panels)
}

// POST /panels/save, POST /panels/add
func (h *PanelHandler) SavePanel(c *gin.Context) {
	var in services.PanelInput
	if err := bindJSON(c, &in); err != nil {
		response.RespondErr(c, err)
		return
	}
	p, err := h.panels.Create(c.Request.Context(), in)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondCreated(c, panelResponse{
		Message: fmt.Sprintf("panel %q saved", p.Name),
		Panel:   p,
	})
}

// PUT /panels/modify
func (h *PanelHandler) ModifyPanel(c *gin.Context) {
	var in services.PanelUpdate
	if err := bindJSON(c, &in); err != nil {
		response.RespondErr(c, err)
		return
	}
	p, err := h.panels.Modify(c.Request.Context(), in)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, panelResponse{
		Message: fmt.Sprintf("panel %q updated", p.Name),
		Panel:   p,
	})
}

// DELETE /panels/delete
func (h *PanelHandler) DeletePanel(c *gin.Context) {
	var in struct {
		Name string `json:"name"`
	}
	if err := bindJSON(c, &in); err != nil {
		response.RespondErr(c, err)
		return
	}
	if strings.TrimSpace(in.Name) == "" {
		response.RespondErr(c, apierr.BadRequest("missing_name", errors.New("name is required")))
		return
	}
	if err := h.panels.Delete(c.Request.Context(), in.Name); err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, messageResponse{Message: fmt.Sprintf("panel %q deleted", strings.TrimSpace(in.Name))})
}

// GET /panels/:name/headers
func (h *PanelHandler) PanelHeaders(c *gin.Context) {
	headers, err := h.panels.Headers(c.Request.Context(), c.Param("name"))
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"headers": headers})
}

// GET /panels/:name/details
func (h *PanelHandler) PanelDetails(c *gin.Context) {
	d, err := h.panels.Details(c.Request.Context(), c.Param("name"))
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, d)
}

// POST /panels/upload_file
func (h *PanelHandler) PreviewHeaders(c *gin.Context) {
	file, err := readUpload(c, h.parser)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	headers, err := h.panels.PreviewHeaders(c.Request.Context(), file)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"headers": headers})
}

// GET /panels/upload_history
func (h *PanelHandler) UploadHistory(c *gin.Context) {
	entries, err := h.history.UploadHistory(c.Request.Context())
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, entries)
}
