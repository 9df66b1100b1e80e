// Command ingest-service exposes the Document Ingestion Service HTTP
// surface (spec §6) and runs the Event Consumer in the background.
// Bootstrap mirrors unified-rag-service/main.go: gin.SetMode(ReleaseMode)
// + gin.New() + Logger()/Recovery(), routes grouped under /api, and a
// CORS middleware closure adapted from document-chunker/main.go.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"docrag/internal/broker"
	"docrag/internal/chunker"
	"docrag/internal/config"
	"docrag/internal/consumer"
	"docrag/internal/documents"
	"docrag/internal/embeddings"
	"docrag/internal/indexer"
	"docrag/internal/logging"
	"docrag/internal/objectstore"
	"docrag/internal/pipeline"
	"docrag/internal/relationaldb"
	"docrag/internal/vectorindex"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxUploadBytes = 10 << 20 // 10 MB (spec §6)

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

	store, err := objectstore.New(ctx, cfg.ObjectStoreEndpoint, cfg.ObjectStoreAccessKey,
		cfg.ObjectStoreSecretKey, cfg.ObjectStoreBucket, cfg.ObjectStoreUseTLS, logger)
	if err != nil {
		logger.Fatal("open object store", zap.Error(err))
	}

	docsRepo := documents.NewRepository(db.Pool)
	vectors := vectorindex.New(db.Pool)
	ck := chunker.New(chunker.Config{
		ChunkSize: cfg.ChunkSize, ChunkOverlap: cfg.ChunkOverlap, MinStandaloneChunkSize: cfg.MinStandaloneChunkSize,
	}, logger)
	embedder := embeddings.NewHTTPProvider(cfg.EmbeddingProviderURL, cfg.EmbeddingAPIKey, cfg.EmbeddingModel,
		cfg.EmbeddingDimension, cfg.EmbeddingTimeout)
	ix := indexer.New(embedder, vectors, cfg.IndexBatchSize)
	pl := pipeline.New(store, docsRepo, vectors, ck, ix, logger)

	brokerConn, err := broker.Dial(cfg.BrokerURL, cfg.BrokerExchange, cfg.BrokerQueue, cfg.BrokerRoutingKey, logger)
	if err != nil {
		logger.Fatal("connect broker", zap.Error(err))
	}
	defer brokerConn.Close()

	cons := consumer.New(brokerConn, pl, logger)
	go func() {
		if err := cons.Run(ctx); err != nil {
			logger.Error("event consumer stopped", zap.Error(err))
		}
	}()

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	h := &handlers{store: store, docs: docsRepo, pipeline: pl, folder: cfg.ObjectStoreFolder, logger: logger}
	api := r.Group("/api")
	{
		api.POST("/documents/upload", h.upload)
		api.GET("/documents", h.list)
		api.GET("/documents/:id", h.get)
		api.DELETE("/documents/:id", h.delete)
	}

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r}
	go func() {
		logger.Info("ingest service listening", zap.String("addr", cfg.HTTPAddr))
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
	store    objectstore.Store
	docs     *documents.Repository
	pipeline *pipeline.Pipeline
	folder   string
	logger   *zap.Logger
}

func (h *handlers) upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid or missing file"})
		return
	}
	defer file.Close()

	if ext := strings.ToLower(filepath.Ext(header.Filename)); ext != ".pdf" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "only .pdf uploads are accepted"})
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read upload"})
		return
	}

	objectKey := fmt.Sprintf("%s/%s.pdf", h.folder, uuid.NewString())
	if err := h.store.Put(c.Request.Context(), objectKey, data, "application/pdf"); err != nil {
		h.logger.Error("upload storage failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage failure"})
		return
	}

	go func() {
		bgCtx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if _, err := h.pipeline.Process(bgCtx, objectKey); err != nil {
			h.logger.Error("async processing failed", zap.String("object_key", objectKey), zap.Error(err))
		}
	}()

	c.JSON(http.StatusCreated, gin.H{
		"filename":    header.Filename,
		"object_key":  objectKey,
		"status":      "processing",
		"uploaded_at": time.Now().UTC(),
	})
}

func (h *handlers) list(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 {
		limit = 20
	}

	docs, total, err := h.docs.List(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"documents": docs, "total": total})
}

func (h *handlers) get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	doc, err := h.docs.Get(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	if doc == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (h *handlers) delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	doc, err := h.docs.Get(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	if doc == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	if err := h.docs.Delete(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}

	if err := h.store.Remove(c.Request.Context(), doc.Path); err != nil {
		h.logger.Warn("best-effort object removal failed", zap.String("path", doc.Path), zap.Error(err))
	}

	c.Status(http.StatusNoContent)
}

