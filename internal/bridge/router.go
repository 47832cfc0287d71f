package bridge

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/verte-zerg/leetgulag/internal/enforce"
	"github.com/verte-zerg/leetgulag/internal/model"
	"github.com/verte-zerg/leetgulag/internal/monitor"
)

// Handler is the daemon side of the bridge.
type Handler interface {
	HandleMessage(ctx context.Context, msg model.Message) (any, error)
	HandleNavigation(ctx context.Context, ev model.NavigationEvent) (string, bool)
	HandleCompletion(ctx context.Context, ev model.CompletionEvent) (monitor.State, error)
	SetMode(ctx context.Context, mode model.Mode) error
	Rules() []enforce.Rule
}

// TabRequest reports the shim's active tab.
type TabRequest struct {
	URL   string `json:"url" binding:"required"`
	TabID int    `json:"tabId"`
}

// ModeRequest switches the enforcement mode.
type ModeRequest struct {
	Mode string `json:"mode" binding:"required"`
}

// NavigationResponse tells the shim where to send a navigation.
type NavigationResponse struct {
	Redirect string `json:"redirect,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(*http.Request) bool {
		return true
	},
}

// NewRouter builds the HTTP API. gatherer backs /metrics.
func NewRouter(hub *Hub, h Handler, gatherer prometheus.Gatherer, logger *slog.Logger) *gin.Engine {
	if logger == nil {
		logger = slog.Default()
	}
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "clients": hub.Clients()})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	v1 := router.Group("/v1")
	v1.POST("/messages", func(c *gin.Context) {
		var msg model.Message
		if err := c.ShouldBindJSON(&msg); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		resp, err := h.HandleMessage(c.Request.Context(), msg)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if resp == nil {
			c.Status(http.StatusNoContent)
			return
		}
		c.JSON(http.StatusOK, resp)
	})
	v1.POST("/events/navigation", func(c *gin.Context) {
		var ev model.NavigationEvent
		if err := c.ShouldBindJSON(&ev); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		target, ok := h.HandleNavigation(c.Request.Context(), ev)
		if !ok {
			target = ""
		}
		c.JSON(http.StatusOK, NavigationResponse{Redirect: target})
	})
	v1.POST("/events/completed", func(c *gin.Context) {
		var ev model.CompletionEvent
		if err := c.ShouldBindJSON(&ev); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if ev.TabURL != "" {
			hub.SetActiveURL(ev.TabURL)
		}
		state, err := h.HandleCompletion(c.Request.Context(), ev)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"state": state.String()})
	})
	v1.POST("/tabs/active", func(c *gin.Context) {
		var req TabRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		hub.SetActiveURL(req.URL)
		c.Status(http.StatusNoContent)
	})
	v1.GET("/rules", func(c *gin.Context) {
		rules := h.Rules()
		if rules == nil {
			rules = []enforce.Rule{}
		}
		c.JSON(http.StatusOK, rules)
	})
	v1.POST("/mode", func(c *gin.Context) {
		var req ModeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		mode, err := model.ParseMode(req.Mode)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := h.SetMode(c.Request.Context(), mode); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"mode": mode})
	})
	v1.GET("/ws", func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Error("failed to upgrade websocket", "error", err)
			return
		}
		hub.serve(conn)
	})
	return router
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}
