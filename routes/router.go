package routes

import (
	"github.com/julienschmidt/httprouter"
	"github.com/victorjacobs/go-remotethermo/bridge"
)

func New(b *bridge.Bridge) *httprouter.Router {
	router := httprouter.New()
	router.GET("/state", State(b))
	router.POST("/refresh", Refresh(b))
	router.GET("/options", GetOptions(b))
	router.PUT("/options", UpdateOptions(b))

	return router
}
