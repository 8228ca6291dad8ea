package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const isoMillis = "2006-01-02T15:04:05.000Z07:00"

func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "Server is running",
		"timestamp": s.clock.Now().UTC().Format(isoMillis),
		"razorpay":  s.gatewaySvc.Configured(),
	})
}
