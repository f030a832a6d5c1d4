package api

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rawblock/evm-risk-engine/internal/db"
	"github.com/rawblock/evm-risk-engine/internal/lists"
	"github.com/rawblock/evm-risk-engine/internal/scoring"
	"github.com/rawblock/evm-risk-engine/pkg/models"
)

// APIHandler wires the HTTP surface to the scoring engine, the event-sink
// database, and the dashboard's WebSocket hub.
type APIHandler struct {
	dbStore *db.PostgresStore
	engine  *scoring.Engine
	lists   *lists.Loader
	wsHub   *Hub
}

// SetupRouter builds the Gin engine: CORS, public routes, then
// auth+rate-limited protected routes.
func SetupRouter(dbStore *db.PostgresStore, engine *scoring.Engine, listLoader *lists.Loader, wsHub *Hub) *gin.Engine {
	r := gin.Default()

	r.Use(func(c *gin.Context) {
		origin := os.Getenv("ALLOWED_ORIGINS")
		if origin == "" {
			origin = "*"
		}
		c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	h := &APIHandler{dbStore: dbStore, engine: engine, lists: listLoader, wsHub: wsHub}

	public := r.Group("/api/v1")
	{
		public.GET("/health", h.handleHealth)
		public.GET("/stream", func(c *gin.Context) { wsHub.Subscribe(c) })
		public.GET("/lists", h.handleListSizes)
	}

	rl := NewRateLimiter(30, 5)
	protected := r.Group("/api/v1")
	protected.Use(AuthMiddleware(), rl.Middleware())
	{
		protected.POST("/analyze", h.handleAnalyze)
		protected.POST("/score-tx", h.handleScoreTx)
		protected.GET("/analyses", h.handleRecentAnalyses)
	}

	r.Static("/dashboard", "./web/dashboard")

	return r
}

// handleHealth reports liveness and whether the event-sink DB is reachable.
func (h *APIHandler) handleHealth(c *gin.Context) {
	status := gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	}
	if h.dbStore == nil {
		status["db"] = "disabled"
	} else {
		status["db"] = "connected"
	}
	c.JSON(http.StatusOK, status)
}

// handleListSizes exposes how many addresses are loaded per reputation list,
// without ever dumping the lists themselves.
func (h *APIHandler) handleListSizes(c *gin.Context) {
	if h.lists == nil {
		c.JSON(http.StatusOK, gin.H{})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"sdn":    h.lists.Size(lists.SDN),
		"cex":    h.lists.Size(lists.CEX),
		"mixer":  h.lists.Size(lists.Mixer),
		"bridge": h.lists.Size(lists.Bridge),
		"scam":   h.lists.Size(lists.Scam),
	})
}

type analyzeRequest struct {
	Address                  string `json:"address" binding:"required"`
	ChainID                  int    `json:"chain_id" binding:"required"`
	MaxHops                  int    `json:"max_hops"`
	MaxAddressesPerDirection int    `json:"max_addresses_per_direction"`
	AnalysisType             string `json:"analysis_type"`
}

// POST /api/v1/analyze runs a full multi-hop address analysis and
// broadcasts the completed result to any subscribed dashboard clients.
func (h *APIHandler) handleAnalyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	if !strings.HasPrefix(req.Address, "0x") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "address must be 0x-prefixed"})
		return
	}
	if req.AnalysisType == "" {
		req.AnalysisType = "basic"
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 60*time.Second)
	defer cancel()

	result, err := h.engine.AnalyzeAddress(ctx, scoring.AnalyzeRequest{
		RequestID:    uuid.NewString(),
		ChainID:      req.ChainID,
		Address:      req.Address,
		AnalysisType: req.AnalysisType,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if h.dbStore != nil {
		if err := h.dbStore.SaveAnalysisResult(ctx, result); err != nil {
			c.Error(err)
		}
	}
	if h.wsHub != nil {
		if payload, err := marshalForBroadcast(result); err == nil {
			h.wsHub.Broadcast(payload)
		}
	}

	c.JSON(http.StatusOK, result)
}

// POST /api/v1/score-tx scores a single raw transaction in isolation,
// without collecting a multi-hop graph.
func (h *APIHandler) handleScoreTx(c *gin.Context) {
	var tx models.Transaction
	if err := c.ShouldBindJSON(&tx); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	result, err := h.engine.ScoreTransaction(ctx, tx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

// GET /api/v1/analyses?page=&limit= returns recently completed analyses
// from the event sink, for the dashboard's history view.
func (h *APIHandler) handleRecentAnalyses(c *gin.Context) {
	if h.dbStore == nil {
		c.JSON(http.StatusOK, gin.H{"analyses": []db.AnalysisInfo{}, "total": 0})
		return
	}

	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))

	analyses, total, err := h.dbStore.RecentAnalyses(c.Request.Context(), page, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"analyses": analyses, "total": total})
}

func marshalForBroadcast(result models.AddressAnalysisResult) ([]byte, error) {
	return json.Marshal(result)
}
