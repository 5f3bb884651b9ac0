package handlers

import (
	"github.com/gin-gonic/gin"
)

// NewRouter wires the API. Reads are public; anything that changes the
// camera or the catalog requires basic auth when accounts is not empty.
func NewRouter(cam *CameraHandler, clips *ClipHandler, accounts gin.Accounts) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.SetTrustedProxies([]string{"127.0.0.1"})

	api := router.Group("/api")
	api.GET("/status", cam.Status)
	api.GET("/params", cam.GetParams)
	api.GET("/record", cam.GetRecord)
	api.GET("/frame", cam.Frame)
	api.GET("/stream", cam.Stream)
	api.GET("/clips", clips.List)
	api.GET("/clips/:id", clips.Download)

	authorized := api.Group("/")
	if len(accounts) > 0 {
		authorized.Use(gin.BasicAuth(accounts))
	}
	authorized.POST("/start", cam.Start)
	authorized.POST("/stop", cam.Stop)
	authorized.PUT("/params", cam.PutParams)
	authorized.POST("/record", cam.StartRecord)
	authorized.DELETE("/record", cam.StopRecord)
	authorized.DELETE("/clips/:id", clips.Delete)

	return router
}
