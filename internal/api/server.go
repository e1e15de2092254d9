// Package api exposes the bar over HTTP.
package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"barrobot/internal/bar"
	"barrobot/internal/hardware"
	"barrobot/internal/models"
	"barrobot/internal/recipes"
)

// BarAPI represents the main API handler for the bar
type BarAPI struct {
	Router *gin.Engine
	Bar    *bar.Service
	log    *zap.Logger
}

// Options configures NewBarAPI.
type Options struct {
	JWTSecret    string
	AllowOrigins []string
	Logger       *zap.Logger
}

// NewBarAPI creates a new bar API instance
func NewBarAPI(svc *bar.Service, opts Options) *BarAPI {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	corsCfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(opts.AllowOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = opts.AllowOrigins
	}
	router.Use(cors.New(corsCfg))

	api := &BarAPI{
		Router: router,
		Bar:    svc,
		log:    opts.Logger,
	}
	api.setupRoutes(opts.JWTSecret)
	return api
}

// setupRoutes configures all API endpoints
func (b *BarAPI) setupRoutes(secret string) {
	b.Router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "barrobot API is running"})
	})

	v1 := b.Router.Group("/api/v1")
	{
		v1.GET("/menu", b.GetMenu)
		v1.GET("/suggestions", b.GetSuggestions)
		v1.GET("/drinks/:id", b.GetDrink)
		v1.POST("/drinks/:id/make", b.MakeDrink)
		v1.GET("/ws/make/:id", b.StreamMake)
		v1.GET("/status", b.GetStatus)
		v1.GET("/runs", b.GetRuns)
	}

	admin := v1.Group("", AuthMiddleware(secret))
	{
		admin.GET("/config", b.GetConfig)
		admin.PUT("/config", b.UpdateConfig)
		admin.GET("/pins", b.GetPins)
		admin.PUT("/pins", b.UpdatePins)
		admin.POST("/rotate/:slot", b.Rotate)
		admin.POST("/turret/reset", b.ResetTurret)
		admin.POST("/recipes/import", b.ImportRecipes)
	}
}

// Menu handlers

func (b *BarAPI) GetMenu(c *gin.Context) {
	menu, err := b.Bar.Menu()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, menu)
}

func (b *BarAPI) GetSuggestions(c *gin.Context) {
	var anyMissing bool
	switch c.DefaultQuery("mode", "one") {
	case "one":
	case "any":
		anyMissing = true
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "mode must be one or any"})
		return
	}

	out, err := b.Bar.Suggestions(anyMissing)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, out)
}

func (b *BarAPI) GetDrink(c *gin.Context) {
	d, err := b.Bar.Drink(c.Param("id"))
	if errors.Is(err, recipes.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Drink not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, d)
}

// Dispense handlers

func (b *BarAPI) MakeDrink(c *gin.Context) {
	run, err := b.Bar.Make(c.Request.Context(), c.Param("id"), nil)
	switch {
	case errors.Is(err, bar.ErrBusy):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	case errors.Is(err, recipes.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Drink not found"})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	status := http.StatusOK
	if run.Status == models.RunStatusFault {
		status = http.StatusInternalServerError
	}
	c.JSON(status, run)
}

func (b *BarAPI) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, b.Bar.Status())
}

func (b *BarAPI) GetRuns(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	runs, err := b.Bar.Runs(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, runs)
}

// Admin handlers

func (b *BarAPI) GetConfig(c *gin.Context) {
	cfg, err := b.Bar.Config()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func (b *BarAPI) UpdateConfig(c *gin.Context) {
	var cfg models.BottleConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	saved, err := b.Bar.UpdateConfig(cfg)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, saved)
}

func (b *BarAPI) GetPins(c *gin.Context) {
	cfg, err := b.Bar.Config()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, cfg.Pins)
}

func (b *BarAPI) UpdatePins(c *gin.Context) {
	var pins models.PinMap
	if err := c.ShouldBindJSON(&pins); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	saved, err := b.Bar.UpdatePins(pins)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, saved)
}

// Rotate takes a 1-based slot number, as printed on the turret.
func (b *BarAPI) Rotate(c *gin.Context) {
	slot, err := strconv.Atoi(c.Param("slot"))
	if err != nil || slot < 1 || slot > models.SlotCount {
		c.JSON(http.StatusBadRequest, gin.H{"error": "slot must be 1-12"})
		return
	}

	err = b.Bar.Rotate(slot - 1)
	switch {
	case errors.Is(err, bar.ErrBusy):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, hardware.ErrPositionUnknown):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, gin.H{"status": "ok", "slot": slot})
	}
}

// ResetTurret takes the 1-based slot currently under the actuator.
func (b *BarAPI) ResetTurret(c *gin.Context) {
	var req struct {
		Slot int `json:"slot" binding:"required,min=1,max=12"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := b.Bar.ResetTurret(req.Slot - 1); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, bar.ErrBusy) {
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, b.Bar.Status().Turret)
}

func (b *BarAPI) ImportRecipes(c *gin.Context) {
	n, err := b.Bar.Import(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"imported": n})
}
