// Package httpapi exposes the mission queue over HTTP.
package httpapi

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"taskpilot/internal/observability"
	"taskpilot/internal/plan"
	"taskpilot/internal/supervisor"
	"taskpilot/internal/tools"
)

// Missions is the part of the supervisor the API drives.
type Missions interface {
	Submit(objective string, p *plan.Plan) (string, error)
	Get(id string) (supervisor.MissionResult, bool)
	List() []supervisor.MissionResult
	Cancel(id string) (string, error)
}

// Catalog lists the registered tools.
type Catalog interface {
	Entries() []tools.CatalogEntry
}

type Options struct {
	AllowOrigins []string
}

func New(missions Missions, catalog Catalog, opts Options) *gin.Engine {
	g := gin.New()
	g.Use(gin.Logger(), gin.Recovery())
	attachRoutes(g, missions, catalog, opts)
	return g
}

func attachRoutes(r *gin.Engine, missions Missions, catalog Catalog, opts Options) {
	origins := opts.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:  origins,
		AllowMethods:  []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type"},
		ExposeHeaders: []string{"Content-Length"},
	}))

	missionH := NewMissions(missions)

	r.GET("/healthz", func(c *gin.Context) { c.JSON(200, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(observability.Handler()))
	r.GET("/tools", func(c *gin.Context) { c.JSON(200, catalog.Entries()) })

	m := r.Group("/missions")
	m.POST("", missionH.Submit)
	m.GET("", missionH.List)
	m.GET("/:id", missionH.Get)
	m.DELETE("/:id", missionH.Cancel)
}
