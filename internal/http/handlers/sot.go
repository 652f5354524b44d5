package handlers

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/reconify-backend/internal/http/response"
	"github.com/yungbote/reconify-backend/internal/ingest"
	"github.com/yungbote/reconify-backend/internal/platform/apierr"
	"github.com/yungbote/reconify-backend/internal/platform/logger"
	"github.com/yungbote/reconify-backend/internal/services"
)

type SOTHandler struct {
	log    *logger.Logger
	sots   services.SOTService
	parser *ingest.Parser
}

func NewSOTHandler(log *logger.Logger, sots services.SOTService, parser *ingest.Parser) *SOTHandler {
	return &SOTHandler{
		log:    log.With("handler", "SOTHandler"),
		sots:   sots,
		parser: parser,
	}
}

// GET /sot/list
func (h *SOTHandler) ListSOTs(c *gin.Context) {
	names, err := h.sots.ListNames(c.Request.Context())
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"sots": names})
}

// GET /sot/fields/:sot
func (h *SOTHandler) Fields(c *gin.Context) {
	fields, err := h.sots.Fields(c.Request.Context(), c.Param("sot"))
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"fields": fields})
}

// POST /sot/upload
func (h *SOTHandler) Upload(c *gin.Context) {
	file, err := readUpload(c, h.parser)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	sotType := strings.TrimSpace(c.PostForm("sot_type"))
	if sotType == "" {
		response.RespondErr(c, apierr.BadRequest("missing_sot_type", errors.New("sot_type is required")))
		return
	}
	up, err := h.sots.Upload(c.Request.Context(), sotType, file)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondCreated(c, up)
}

// GET /sot/uploads
func (h *SOTHandler) ListUploads(c *gin.Context) {
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	uploads, err := h.sots.ListUploads(c.Request.Context(), c.Query("sot_type"), limit)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, uploads)
}

// GET /sot/config
func (h *SOTHandler) ListConfigs(c *gin.Context) {
	configs, err := h.sots.ListConfigs(c.Request.Context())
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, configs)
}

// POST /sot/config
func (h *SOTHandler) CreateConfig(c *gin.Context) {
	var in services.SOTConfigInput
	if err := bindJSON(c, &in); err != nil {
		response.RespondErr(c, err)
		return
	}
	sot, err := h.sots.CreateConfig(c.Request.Context(), in)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondCreated(c, gin.H{
		"message": fmt.Sprintf("SOT %q created", sot.Name),
		"sot":     sot,
	})
}

// PUT /sot/config/:sot
func (h *SOTHandler) UpdateConfig(c *gin.Context) {
	var in services.SOTConfigInput
	if err := bindJSON(c, &in); err != nil {
		response.RespondErr(c, err)
		return
	}
	sot, err := h.sots.UpdateConfig(c.Request.Context(), c.Param("sot"), in)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{
		"message": fmt.Sprintf("SOT %q updated", sot.Name),
		"sot":     sot,
	})
}

// DELETE /sot/config/:sot
func (h *SOTHandler) DeleteConfig(c *gin.Context) {
	name := c.Param("sot")
	if err := h.sots.DeleteConfig(c.Request.Context(), name); err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, messageResponse{Message: fmt.Sprintf("SOT %q deleted", name)})
}
