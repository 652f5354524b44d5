package handlers

import (
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/reconify-backend/internal/data/repos"
	"github.com/yungbote/reconify-backend/internal/http/response"
	"github.com/yungbote/reconify-backend/internal/platform/apierr"
	"github.com/yungbote/reconify-backend/internal/platform/logger"
	"github.com/yungbote/reconify-backend/internal/services"
)

type AuditHandler struct {
	log   *logger.Logger
	audit services.AuditService
}

func NewAuditHandler(log *logger.Logger, audit services.AuditService) *AuditHandler {
	return &AuditHandler{log: log.With("handler", "AuditHandler"), audit: audit}
}

func parseSince(c *gin.Context) (*time.Time, error) {
	raw := strings.TrimSpace(c.Query("since"))
	if raw == "" {
		return nil, nil
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, apierr.BadRequest("invalid_query", errors.New("since must be an RFC3339 timestamp"))
	}
	return &ts, nil
}

// GET /audit/trail
func (h *AuditHandler) Trail(c *gin.Context) {
	since, err := parseSince(c)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	page, err := h.audit.List(c.Request.Context(), repos.AuditFilter{
		Action: strings.TrimSpace(c.Query("action")),
		Actor:  strings.TrimSpace(c.Query("actor")),
		Status: strings.TrimSpace(c.Query("status")),
		Since:  since,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, page)
}

// GET /audit/summary
func (h *AuditHandler) Summary(c *gin.Context) {
	since, err := parseSince(c)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	sum, err := h.audit.Summary(c.Request.Context(), since)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, sum)
}

// GET /audit/actions
func (h *AuditHandler) Actions(c *gin.Context) {
	actions := h.audit.Actions()
	response.RespondOK(c, gin.H{"available_actions": actions, "total_actions": len(actions)})
}

// GET /audit/user-activity/:user
func (h *AuditHandler) UserActivity(c *gin.Context) {
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	act, err := h.audit.UserActivity(c.Request.Context(), c.Param("user"), limit)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, act)
}

// GET /audit/action-stats/:action
func (h *AuditHandler) ActionStats(c *gin.Context) {
	stats, err := h.audit.ActionStats(c.Request.Context(), c.Param("action"))
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, stats)
}

// DELETE /audit/cleanup
func (h *AuditHandler) Cleanup(c *gin.Context) {
	days, err := queryInt(c, "days_to_keep", services.DefaultAuditRetentionDays)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	out, err := h.audit.Cleanup(c.Request.Context(), days)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, out)
}
