// Command query-service exposes the RAG Query Service's chat endpoint
// (spec §6), wiring the agent graph to its collaborators. Bootstrap
// mirrors unified-rag-service/main.go's gin.New()+Logger()+Recovery()
// pattern.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"docrag/internal/agent"
	"docrag/internal/chatstore"
	"docrag/internal/config"
	"docrag/internal/embeddings"
	"docrag/internal/llm"
	"docrag/internal/logging"
	"docrag/internal/relationaldb"
	"docrag/internal/retriever"
	"docrag/internal/safety"
	"docrag/internal/vectorindex"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Dev)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logging:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := relationaldb.Open(ctx, cfg.PostgresDSN, cfg.EmbeddingDimension, logger)
	if err != nil {
		logger.Fatal("open relational store", zap.Error(err))
	}
	defer db.Close()

	chat := chatstore.New(db.Pool)
	vectors := vectorindex.New(db.Pool)
	embedder := embeddings.NewHTTPProvider(cfg.EmbeddingProviderURL, cfg.EmbeddingAPIKey, cfg.EmbeddingModel,
		cfg.EmbeddingDimension, cfg.EmbeddingTimeout)
	completer := llm.NewHTTPCompleter(cfg.LLMProviderURL, cfg.LLMAPIKey, cfg.LLMModel, cfg.LLMTimeout)
	rtr := retriever.New(embedder, vectors, 3, logger)

	deps := agent.Deps{
		Chat:        chat,
		InputGuard:  safety.WithFailClosed(safety.NewInputGuard(cfg.InputGuardThreshold)),
		OutputGuard: safety.WithFailClosed(safety.NewOutputGuard(cfg.OutputGuardThreshold, cfg.PIIEntities)),
		Completer:   completer,
		Retriever:   rtr,
		NHistory:    cfg.ChatMessageLimit,
		Logger:      logger,
	}
	svc := agent.NewService(deps)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	h := &handlers{svc: svc, chat: chat, chatLimit: cfg.ChatMessageLimit, logger: logger}
	api := r.Group("/chat")
	{
		api.POST("/messages", h.postMessage)
		api.GET("/history/:session_id", h.history)
	}

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r}
	go func() {
		logger.Info("query service listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

type handlers struct {
	svc       *agent.Service
	chat      *chatstore.Store
	chatLimit int
	logger    *zap.Logger
}

type messageRequest struct {
	Message   string     `json:"message" binding:"required"`
	SessionID *uuid.UUID `json:"session_id"`
	UserID    string     `json:"user_id" binding:"required"`
}

func (h *handlers) postMessage(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	outcome, err := h.svc.Handle(c.Request.Context(), req.UserID, req.SessionID, req.Message)
	if err != nil {
		if errors.Is(err, chatstore.ErrAccessDenied) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "not found or access denied"})
			return
		}
		h.logger.Error("agent run failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "processing error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id": outcome.SessionID,
		"message":    outcome.Response,
	})
}

func (h *handlers) history(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return
	}

	msgs, err := h.chat.History(c.Request.Context(), sessionID, h.chatLimit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "history lookup failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}
