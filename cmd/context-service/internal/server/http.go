package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"tavernchat/cmd/context-service/internal/domain"
	"tavernchat/cmd/context-service/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTPServer HTTP 服务器
type HTTPServer struct {
	engine  *gin.Engine
	server  *http.Server
	service *service.ContextService
	logger  log.Logger
}

// NewHTTPServer 创建 HTTP 服务器
func NewHTTPServer(srv *service.ContextService, logger log.Logger) *HTTPServer {
	engine := gin.New()

	s := &HTTPServer{
		engine:  engine,
		service: srv,
		logger:  logger,
	}

	s.registerMiddleware()
	s.registerRoutes()
	return s
}

// registerMiddleware 注册中间件
func (s *HTTPServer) registerMiddleware() {
	s.engine.Use(TracingMiddleware())
	s.engine.Use(RecoveryMiddleware(s.logger))
	s.engine.Use(CORSMiddleware())
	s.engine.Use(LoggingMiddleware(s.logger))
}

// registerRoutes 注册路由
func (s *HTTPServer) registerRoutes() {
	api := s.engine.Group("/api/v1")

	// 上下文裁剪接口
	api.POST("/context/prune", s.pruneContext)

	// 会话与消息接口
	conversations := api.Group("/conversations")
	{
		conversations.POST("", s.createConversation)
		conversations.GET("/:id", s.getConversation)
		conversations.POST("/:id/messages", s.appendMessage)
		conversations.GET("/:id/messages", s.listMessages)
	}

	// 角色接口
	characters := api.Group("/characters")
	{
		characters.PUT("/:id", s.saveCharacter)
		characters.GET("/:id", s.getCharacter)
	}

	// 健康检查与指标
	s.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// pruneContext 执行上下文预算裁剪
func (s *HTTPServer) pruneContext(c *gin.Context) {
	var req struct {
		ConversationID string `json:"conversation_id" binding:"required"`
		CharacterID    string `json:"character_id"`
		MaxTokens      int    `json:"max_tokens"`
		TopicHint      string `json:"topic_hint"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	result, err := s.service.PruneContext(c.Request.Context(), req.ConversationID, &service.PruneOptions{
		MaxTokens:   req.MaxTokens,
		CharacterID: req.CharacterID,
		TopicHint:   req.TopicHint,
	})
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, result)
}

// createConversation 创建会话
func (s *HTTPServer) createConversation(c *gin.Context) {
	var req struct {
		Title string `json:"title"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	conversation, err := s.service.CreateConversation(c.Request.Context(), req.Title)
	if err != nil {
		Error(c, err)
		return
	}
	Created(c, conversation)
}

// getConversation 查询会话
func (s *HTTPServer) getConversation(c *gin.Context) {
	conversation, err := s.service.GetConversation(c.Request.Context(), c.Param("id"))
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, conversation)
}

// appendMessage 追加消息
func (s *HTTPServer) appendMessage(c *gin.Context) {
	conversationID := c.Param("id")

	var req struct {
		Role        string   `json:"role" binding:"required"`
		Content     string   `json:"content" binding:"required"`
		CharacterID string   `json:"character_id"`
		Mentions    []string `json:"mentions"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	msg, err := s.service.AppendMessage(
		c.Request.Context(),
		conversationID,
		domain.MessageRole(req.Role),
		req.Content,
		req.CharacterID,
		req.Mentions,
	)
	if err != nil {
		Error(c, err)
		return
	}
	Created(c, msg)
}

// listMessages 分页查询消息
func (s *HTTPServer) listMessages(c *gin.Context) {
	conversationID := c.Param("id")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	messages, total, err := s.service.ListMessages(c.Request.Context(), conversationID, limit, offset)
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, gin.H{
		"messages": messages,
		"total":    total,
	})
}

// saveCharacter 保存角色档案
func (s *HTTPServer) saveCharacter(c *gin.Context) {
	var req struct {
		Name        string   `json:"name" binding:"required"`
		Personality string   `json:"personality"`
		Background  string   `json:"background"`
		Interests   []string `json:"interests"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	character := &domain.CharacterProfile{
		ID:          c.Param("id"),
		Name:        req.Name,
		Personality: req.Personality,
		Background:  req.Background,
		Interests:   req.Interests,
	}
	if err := s.service.SaveCharacter(c.Request.Context(), character); err != nil {
		Error(c, err)
		return
	}
	Success(c, character)
}

// getCharacter 查询角色档案
func (s *HTTPServer) getCharacter(c *gin.Context) {
	character, err := s.service.GetCharacter(c.Request.Context(), c.Param("id"))
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, character)
}

// Start 启动服务器
func (s *HTTPServer) Start(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown 优雅关闭
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
