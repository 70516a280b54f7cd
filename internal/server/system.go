package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	invoicedomain "github.com/smallbiznis/tapcoin/internal/invoice/domain"
)

func (s *Server) Health(c *gin.Context) {
	dbOK := true
	if sqlDB, err := s.db.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
		dbOK = false
	}

	code, status := http.StatusOK, "ok"
	if !dbOK {
		code, status = http.StatusServiceUnavailable, "degraded"
	}
	c.JSON(code, gin.H{
		"status":          status,
		"db":              dbOK,
		"tron_configured": s.cfg.Tron.ReceiveAddress != "",
		"timestamp":       s.clock.Now().Unix(),
	})
}

func (s *Server) Version(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": s.cfg.AppName,
		"version": s.cfg.AppVersion,
		"ts":      s.clock.Now().Unix(),
	})
}

func (s *Server) ListPackages(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"data":     s.catalog.List(),
		"address":  s.cfg.Tron.ReceiveAddress,
		"network":  invoicedomain.Network,
		"currency": invoicedomain.Currency,
	})
}
