package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/keeperhq/keeper/internal/buffer"
	"github.com/keeperhq/keeper/internal/config"
	"github.com/keeperhq/keeper/internal/core"
	"github.com/keeperhq/keeper/internal/core/model"
	"github.com/keeperhq/keeper/internal/driver"
	"github.com/keeperhq/keeper/internal/llm"
	"github.com/keeperhq/keeper/internal/provider"
)

type Server struct {
	Engine *core.Engine
	Buffer *buffer.Buffer
	Pool   *buffer.Pool
	Config *config.Config
}

func NewServer() *Server {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config/config.toml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Printf("Could not load %s (%v), using defaults", cfgPath, err)
		cfg = config.Default()
	}
	applyEnvOverrides(cfg)

	dbURI := cfg.Store.URI
	if dbURI == "" {
		dbURI = "bolt://localhost:7687"
	}
	store, err := driver.NewMemgraphStore(dbURI, cfg.Store.User, cfg.Store.Password)
	if err != nil {
		log.Fatalf("Failed to connect to Memgraph: %v", err)
	}
	if err := store.BuildIndices(context.Background()); err != nil {
		log.Printf("Failed to build indices: %v", err)
	}

	llmClient, embedderClient, err := llm.NewClient(context.Background(), cfg.LLM)
	if err != nil {
		log.Fatalf("Failed to initialize LLM client: %v", err)
	}

	prov := provider.NewMemoryProvider(cfg.Sync.Provider)

	buf := buffer.New(time.Duration(cfg.Buffer.RetryDelayMs)*time.Millisecond, cfg.Buffer.MaxRetries)
	pool := buffer.NewPool(buf, buffer.NewEmbedExecutor(embedderClient, store), cfg.Buffer.Workers)

	engine := core.NewEngine(store, prov, llmClient, buf,
		model.DedupeConfig{
			Threshold:    cfg.Dedupe.Threshold,
			LLMThreshold: cfg.Dedupe.LLMThreshold,
			EnableLLM:    cfg.Dedupe.EnableLLM,
			Model:        cfg.Dedupe.Model,
			MaxRetries:   cfg.Dedupe.MaxRetries,
			RetryDelayMs: cfg.Dedupe.RetryDelayMs,
		},
		model.ResolutionConfig{
			Strategy:        model.Strategy(cfg.Conflict.Strategy),
			AutoMerge:       cfg.Conflict.AutoMerge,
			PreferredSource: model.Source(cfg.Conflict.PreferredSource),
		},
		cfg.Concurrency.SyncWrites)

	return &Server{
		Engine: engine,
		Buffer: buf,
		Pool:   pool,
		Config: cfg,
	}
}

func applyEnvOverrides(cfg *config.Config) {
	if v := os.Getenv("MEMGRAPH_URI"); v != "" {
		cfg.Store.URI = v
	}
	if v := os.Getenv("MEMGRAPH_USER"); v != "" {
		cfg.Store.User = v
	}
	if v := os.Getenv("MEMGRAPH_PASSWORD"); v != "" {
		cfg.Store.Password = v
	}
	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		cfg.LLM.Provider = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("LLM_EMBEDDING_MODEL"); v != "" {
		cfg.LLM.EmbeddingModel = v
	}
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}

	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "ollama"
		cfg.LLM.Model = "gpt-oss:latest"
		cfg.LLM.BaseURL = "http://localhost:11434"
	}
}

func (s *Server) SetupRouter() *gin.Engine {
	r := gin.Default()

	r.POST("/sync", s.Sync)
	r.POST("/buffer", s.SubmitBufferItem)
	r.GET("/buffer/:id", s.BufferItemStatus)
	r.GET("/healthz", s.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

type SyncHTTPRequest struct {
	UserID         string `json:"user_id" binding:"required"`
	Direction      string `json:"direction"`
	DryRun         bool   `json:"dry_run"`
	ForceFull      bool   `json:"force_full"`
	EnableLLMDedup *bool  `json:"enable_llm_dedup"`
	Threshold      int    `json:"deduplication_threshold"`
}

func (s *Server) Sync(c *gin.Context) {
	var req SyncHTTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	if req.Direction == "" {
		req.Direction = s.Config.Sync.Direction
	}
	enableLLM := s.Config.Dedupe.EnableLLM
	if req.EnableLLMDedup != nil {
		enableLLM = *req.EnableLLMDedup
	}

	result, err := s.Engine.Sync(c.Request.Context(), model.SyncRequest{
		UserID:         req.UserID,
		Direction:      model.Direction(req.Direction),
		DryRun:         req.DryRun,
		ForceFull:      req.ForceFull,
		EnableLLMDedup: enableLLM,
		Threshold:      req.Threshold,
	})
	if err != nil {
		// A partial-batch error means the pass completed; the per-item
		// failures are already in the result's error list.
		var pbe *model.PartialBatchError
		if errors.As(err, &pbe) {
			c.JSON(http.StatusOK, result)
			return
		}
		log.Printf("Sync pass failed for user %s: %v", req.UserID, err)
		c.JSON(statusForError(err), gin.H{"error": err.Error(), "result": result})
		return
	}

	c.JSON(http.StatusOK, result)
}

type BufferSubmitRequest struct {
	Type       string                 `json:"type" binding:"required"`
	Data       map[string]interface{} `json:"data"`
	Priority   int                    `json:"priority"`
	MaxRetries int                    `json:"max_retries"`
}

func (s *Server) SubmitBufferItem(c *gin.Context) {
	var req BufferSubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	id, err := s.Buffer.Submit(model.BufferItem{
		Type:       model.BufferItemType(req.Type),
		Data:       req.Data,
		Priority:   req.Priority,
		MaxRetries: req.MaxRetries,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"id": id, "status": model.StatusPending})
}

func (s *Server) BufferItemStatus(c *gin.Context) {
	item, err := s.Buffer.Status(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, item)
}

func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func statusForError(err error) int {
	var se *model.SyncError
	if errors.As(err, &se) {
		switch se.Code {
		case model.CodeConflict:
			return http.StatusConflict
		case model.CodePermanent:
			return http.StatusBadRequest
		case model.CodeTransient:
			return http.StatusServiceUnavailable
		}
	}
	return http.StatusInternalServerError
}
