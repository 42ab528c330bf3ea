package api

import (
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"github.com/rawblock/sandoo-engine/internal/db"
	"github.com/rawblock/sandoo-engine/internal/registry"
)

// APIHandler wires the dashboard/control-plane HTTP API to the live
// registries and persistence layer. Any field may be nil — handlers that
// depend on a nil dependency report 503 rather than panicking.
type APIHandler struct {
	dbStore   *db.PostgresStore
	wsHub     *Hub
	blacklist *registry.Blacklist
	pools     *registry.PoolRegistry
}

// SetupRouter builds the gin engine: public health/stream/bundle-history
// endpoints, and bearer-protected blacklist-mutation endpoints.
func SetupRouter(dbStore *db.PostgresStore, wsHub *Hub, blacklist *registry.Blacklist, pools *registry.PoolRegistry) *gin.Engine {
	r := gin.Default()

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if allowedOrigins == "" || allowedOrigins == "*" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		} else {
			for _, allowed := range strings.Split(allowedOrigins, ",") {
				if strings.TrimSpace(allowed) == origin {
					c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
					break
				}
			}
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	handler := &APIHandler{dbStore: dbStore, wsHub: wsHub, blacklist: blacklist, pools: pools}

	pub := r.Group("/api/v1")
	{
		pub.GET("/health", handler.handleHealth)
		pub.GET("/stream", wsHub.Subscribe)
		pub.GET("/bundles", handler.handleGetBundles)
		pub.GET("/pools", handler.handleGetPools)
	}

	protected := r.Group("/api/v1")
	protected.Use(AuthMiddleware())
	protected.Use(NewRateLimiter(rateLimitPerMinFromEnv(), rateLimitBurstFromEnv()).Middleware())
	{
		protected.POST("/blacklist", handler.handleAddBlacklist)
		protected.DELETE("/blacklist/:address", handler.handleRemoveBlacklist)
		protected.GET("/blacklist", handler.handleListBlacklist)
	}

	return r
}

func (h *APIHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "operational",
		"engine":      "sandoo-engine",
		"dbConnected": h.dbStore != nil,
	})
}

// handleGetBundles returns the most recently submitted bundles for the
// dashboard's live feed.
func (h *APIHandler) handleGetBundles(c *gin.Context) {
	if h.dbStore == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "database not connected"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	bundles, err := h.dbStore.GetRecentBundles(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch bundles", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": bundles})
}

// handleGetPools lists the pools the pool registry currently tracks.
func (h *APIHandler) handleGetPools(c *gin.Context) {
	if h.pools == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "pool registry not initialized"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": h.pools.All()})
}

// handleAddBlacklist adds a token/router/pool address to the blacklist.
// POST /api/v1/blacklist { "address": "0x...", "reason": "..." }
func (h *APIHandler) handleAddBlacklist(c *gin.Context) {
	if h.blacklist == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "blacklist not initialized"})
		return
	}

	var req struct {
		Address string `json:"address"`
		Reason  string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || !common.IsHexAddress(req.Address) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body. Expected: {address, reason}"})
		return
	}

	h.blacklist.Add(common.HexToAddress(req.Address), req.Reason)
	c.JSON(http.StatusOK, gin.H{"status": "blacklisted", "address": req.Address})
}

// handleRemoveBlacklist removes an address from the blacklist.
func (h *APIHandler) handleRemoveBlacklist(c *gin.Context) {
	if h.blacklist == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "blacklist not initialized"})
		return
	}

	addr := c.Param("address")
	if !common.IsHexAddress(addr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid address"})
		return
	}

	h.blacklist.Remove(common.HexToAddress(addr))
	c.JSON(http.StatusOK, gin.H{"status": "removed", "address": addr})
}

func (h *APIHandler) handleListBlacklist(c *gin.Context) {
	if h.blacklist == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "blacklist not initialized"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": h.blacklist.All()})
}
