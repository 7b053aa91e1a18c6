// Package http wires the gin engine, shared middleware, and the module
// registration contract.
package http

import "github.com/gin-gonic/gin"

// RouterContext is handed to each module at registration time.
type RouterContext struct {
	// Engine is the root router, for routes outside the API prefix.
	Engine *gin.Engine
	// Public is the /api/v1 group without authentication.
	Public *gin.RouterGroup
	// API is the /api/v1 group behind JWT authentication.
	API *gin.RouterGroup
}

// Module is a bounded context that exposes HTTP routes.
type Module interface {
	Name() string
	RegisterRoutes(ctx RouterContext)
}
