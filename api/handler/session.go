package handler

import (
	"net/http"

	"github.com/fyerfyer/doc-qa-extractor/api/middleware"
	"github.com/fyerfyer/doc-qa-extractor/api/model"
	"github.com/fyerfyer/doc-qa-extractor/internal/credential"
	"github.com/fyerfyer/doc-qa-extractor/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// SessionHandler 管理会话中的API密钥
type SessionHandler struct {
	session  *services.SessionStore
	resolver *credential.Resolver
	logger   *logrus.Logger
}

// NewSessionHandler 创建会话处理器
func NewSessionHandler(session *services.SessionStore, resolver *credential.Resolver) *SessionHandler {
	return &SessionHandler{
		session:  session,
		resolver: resolver,
		logger:   middleware.GetLogger(),
	}
}

// SetAPIKey 设置会话API密钥
// POST /api/session/api-key
func (h *SessionHandler) SetAPIKey(c *gin.Context) {
	var req model.APIKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("API密钥缺失或格式不正确"))
		return
	}

	if err := h.session.SetAPIKey(req.APIKey); err != nil {
		middleware.HandleError(c, toAppError(err))
		return
	}

	h.logger.WithField("key", credential.Mask(req.APIKey)).Info("Session API key updated")
	c.JSON(http.StatusOK, model.NewSuccessResponse(h.status()))
}

// ClearAPIKey 清除会话API密钥
// DELETE /api/session/api-key
func (h *SessionHandler) ClearAPIKey(c *gin.Context) {
	if err := h.session.ClearAPIKey(); err != nil {
		middleware.HandleError(c, toAppError(err))
		return
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse(h.status()))
}

// GetCredential 查看当前生效的API密钥状态
// GET /api/session/credential
func (h *SessionHandler) GetCredential(c *gin.Context) {
	c.JSON(http.StatusOK, model.NewSuccessResponse(h.status()))
}

func (h *SessionHandler) status() model.CredentialResponse {
	key, source := h.resolver.Resolve()
	resp := model.CredentialResponse{
		Configured: key != "",
		Valid:      credential.Valid(key),
		Source:     string(source),
	}
	if key != "" {
		resp.Masked = credential.Mask(key)
	}
	return resp
}
