package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Server wraps the gin.Engine serving the admin HTTP surface, grounded on
// the teacher's federation/api/server.go router setup.
type Server struct {
	engine  *gin.Engine
	address string
}

// NewServer builds a Server bound to address (host:port), with routes
// wired against handler. releaseMode mirrors the teacher's
// cfg.API.IsReleaseMode switch.
func NewServer(address string, releaseMode bool, handler *Handler) *Server {
	if releaseMode {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{address: address}
	r := gin.Default()
	r.Use(corsMiddleware())

	v1 := r.Group("/api/v1")
	v1.POST("/votes/member", handler.VoteMember)
	v1.POST("/votes/hash", handler.VoteHash)
	v1.GET("/votes/scheduled", handler.ListScheduledVotes)
	v1.GET("/polls/pending", handler.ListPendingPolls)
	v1.GET("/polls/approved", handler.ListApprovedPolls)
	v1.GET("/polls/executed", handler.ListExecutedPolls)

	s.engine = r
	return s
}

// Run starts the HTTP server, blocking until it exits.
func (s *Server) Run() error {
	return s.engine.Run(s.address)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		c.Header("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}
