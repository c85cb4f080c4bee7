package api

import (
	"errors"
	"net/http"

	"SFHelp_Agent/internal/agent_service/service"
	"SFHelp_Agent/internal/embedding"
	"SFHelp_Agent/internal/llm"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler 封装了所有 API endpoint 的处理函数。
type Handler struct {
	service *service.Service
}

// NewHandler 创建一个新的 Handler 实例。
func NewHandler(s *service.Service) *Handler {
	return &Handler{service: s}
}

// ChatRequest 定义了对话请求的 JSON 结构。
// session_id 为空时由服务端生成一个新的会话。
type ChatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message" binding:"required"`
	Product   string `json:"product"`
}

// Chat 处理一轮对话请求。
func (h *Handler) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	answer, err := h.service.RunChat(c.Request.Context(), req.SessionID, req.Message, req.Product)
	if err != nil {
		// 网关类错误返回 503，其余视为内部错误
		if errors.Is(err, embedding.ErrEmbeddingUnavailable) || errors.Is(err, llm.ErrCompletionUnavailable) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, answer)
}

// SearchRequest 定义了直接检索请求的 JSON 结构。
type SearchRequest struct {
	Query   string `json:"query" binding:"required"`
	Product string `json:"product"`
}

// Search 暴露混合检索能力，不经过对话编排。
func (h *Handler) Search(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	chunks, err := h.service.Search(c.Request.Context(), req.Query, req.Product)
	if err != nil {
		if errors.Is(err, embedding.ErrEmbeddingUnavailable) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"query": req.Query, "chunks": chunks})
}

// ListProducts 返回语料库中所有出现过的产品标签。
func (h *Handler) ListProducts(c *gin.Context) {
	products, err := h.service.Products(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"products": products})
}

// Health 报告各依赖存储的健康状况。
func (h *Handler) Health(c *gin.Context) {
	status := h.service.Health(c.Request.Context())
	code := http.StatusOK
	for _, ok := range status {
		if !ok {
			code = http.StatusServiceUnavailable
			break
		}
	}
	c.JSON(code, status)
}
