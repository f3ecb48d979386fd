// Package server wires the HTTP API: relational CRUD, the
// conversational agent, and the app builder agent.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/balamir53/snackforge/internal/builder"
	"github.com/balamir53/snackforge/internal/chat"
	"github.com/balamir53/snackforge/internal/cli"
	"github.com/balamir53/snackforge/internal/store"
)

// Server holds the handler dependencies.
type Server struct {
	store         store.Store
	chat          *chat.Workflow
	builder       *builder.Workflow
	checker       *cli.DependencyChecker
	conversations *store.Registry[*chat.Conversation]
	projects      *store.Registry[*builder.Build]
}

// New wires a server around its three backends.
func New(st store.Store, chatWF *chat.Workflow, buildWF *builder.Workflow) *Server {
	return &Server{
		store:         st,
		chat:          chatWF,
		builder:       buildWF,
		checker:       cli.NewDependencyChecker(false),
		conversations: store.NewRegistry[*chat.Conversation](),
		projects:      store.NewRegistry[*builder.Build](),
	}
}

// Router builds the gin engine with all routes attached.
func (s *Server) Router() *gin.Engine {
	router := gin.Default()
	router.Use(corsMiddleware())

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "Welcome to SnackForge"})
	})
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	v1 := router.Group("/api/v1")
	{
		v1.GET("/items", s.listItems)
		v1.GET("/items/:id", s.getItem)
		v1.POST("/items", s.createItem)
		v1.PUT("/items/:id", s.updateItem)
		v1.DELETE("/items/:id", s.deleteItem)

		v1.GET("/users", s.listUsers)
		v1.GET("/users/:id", s.getUser)
		v1.POST("/users", s.createUser)
		v1.PUT("/users/:id", s.updateUser)
		v1.DELETE("/users/:id", s.deleteUser)

		ai := v1.Group("/ai")
		{
			ai.POST("/chat", s.chatTurn)
			ai.GET("/conversations/:id", s.getConversation)
			ai.DELETE("/conversations/:id", s.clearConversation)
			ai.POST("/workflow/task", s.runTaskWorkflow)
			ai.GET("/health", s.aiHealth)
		}

		mobile := v1.Group("/mobile")
		{
			mobile.POST("/react-native/build", s.buildApp)
			mobile.GET("/react-native/projects/:id", s.getProject)
			mobile.DELETE("/react-native/projects/:id", s.deleteProject)
			mobile.GET("/react-native/health", s.mobileHealth)
		}
	}

	return router
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "*")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// detail mirrors the error body shape clients already parse.
func detail(c *gin.Context, code int, msg string) {
	c.JSON(code, gin.H{"detail": msg})
}
