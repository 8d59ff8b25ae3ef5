// Assistant HTTP handlers - conversation sync engine surface for the webview
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sagekit/sagekit/pkg/models"
	"github.com/sagekit/sagekit/pkg/service"
	"github.com/sagekit/sagekit/pkg/transport"
)

// AssistantHandler handles assistant-related HTTP requests
type AssistantHandler struct {
	assistant *service.AssistantService
}

// NewAssistantHandler creates a new assistant handler
func NewAssistantHandler(assistant *service.AssistantService) *AssistantHandler {
	return &AssistantHandler{
		assistant: assistant,
	}
}

// RegisterRoutes registers assistant routes
func (h *AssistantHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/assistant/info", h.Info)
	r.GET("/assistant/name", h.Name)
	r.GET("/assistant/state", h.State)
	r.PUT("/assistant/user_name", h.SetUserName)

	conversations := r.Group("/conversations")
	{
		conversations.GET("", h.ListConversations)
		conversations.POST("/load_previous", h.LoadPrevious)
		conversations.POST("/refresh", h.Refresh)
		conversations.GET("/:id", h.GetConversation)
	}

	r.POST("/prompt", h.SubmitPrompt)
	r.POST("/prompt/stop", h.StopActive)

	r.GET("/kip_logs", h.ListKipLogs)
}

// writeServiceError maps host-reported failures to 502 and everything else
// (transport down, codec) to 500.
func writeServiceError(c *gin.Context, err error) {
	var backendErr *transport.BackendError
	if errors.As(err, &backendErr) {
		c.JSON(http.StatusBadGateway, gin.H{"error": backendErr.Error()})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

// Info returns the engine card
// GET /api/v1/assistant/info
func (h *AssistantHandler) Info(c *gin.Context) {
	card, err := h.assistant.Info(c.Request.Context())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, card)
}

// Name returns the assistant's self-chosen name
// GET /api/v1/assistant/name
func (h *AssistantHandler) Name(c *gin.Context) {
	name, err := h.assistant.Name(c.Request.Context())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"name": name})
}

// State returns the engine snapshot the UI renders from
// GET /api/v1/assistant/state
func (h *AssistantHandler) State(c *gin.Context) {
	c.JSON(http.StatusOK, h.assistant.State())
}

// SetUserName records the display name used in prompt metadata
// PUT /api/v1/assistant/user_name
func (h *AssistantHandler) SetUserName(c *gin.Context) {
	var req struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.assistant.SetUserName(c.Request.Context(), req.Name)
	c.JSON(http.StatusOK, gin.H{"updated": true})
}

// ListConversations returns the current conversation list
// GET /api/v1/conversations
func (h *AssistantHandler) ListConversations(c *gin.Context) {
	st := h.assistant.State()
	c.JSON(http.StatusOK, gin.H{
		"conversations": st.Conversations,
		"prev_cursor":   st.PrevCursor,
		"latest_id":     st.LatestID,
	})
}

// LoadPrevious pages older history into the list
// POST /api/v1/conversations/load_previous
func (h *AssistantHandler) LoadPrevious(c *gin.Context) {
	more, err := h.assistant.LoadPreviousConversations(c.Request.Context())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"has_more": more})
}

// Refresh re-fetches the most recent page and reconciles it
// POST /api/v1/conversations/refresh
func (h *AssistantHandler) Refresh(c *gin.Context) {
	if err := h.assistant.LoadLatestConversations(c.Request.Context()); err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"refreshed": true})
}

// GetConversation returns one conversation from the local view
// GET /api/v1/conversations/:id
func (h *AssistantHandler) GetConversation(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return
	}

	conv, ok := h.assistant.Conversation(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		return
	}
	c.JSON(http.StatusOK, conv)
}

// SubmitPrompt sends a prompt to the host agent
// POST /api/v1/prompt
func (h *AssistantHandler) SubmitPrompt(c *gin.Context) {
	var req struct {
		Content   string            `json:"content"`
		Resources []models.Resource `json:"resources,omitempty"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.assistant.SubmitPrompt(c.Request.Context(), req.Content, req.Resources); err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"submitted": true, "thinking_id": h.assistant.ThinkingID()})
}

// StopActive stops the conversation currently being waited on
// POST /api/v1/prompt/stop
func (h *AssistantHandler) StopActive(c *gin.Context) {
	if err := h.assistant.StopActive(c.Request.Context()); err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stopped": true})
}

// ListKipLogs pages through the host's knowledge-graph command log
// GET /api/v1/kip_logs?cursor=xxx&limit=20
func (h *AssistantHandler) ListKipLogs(c *gin.Context) {
	cursor := c.Query("cursor")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	res, err := h.assistant.ListKipLogs(c.Request.Context(), cursor, limit)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"logs":        res.Result,
		"next_cursor": res.NextCursor,
	})
}
