package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type StatusHandler struct{}

func NewStatusHandler() *StatusHandler {
	return &StatusHandler{}
}

func (h *StatusHandler) Index(c *gin.Context) {
	c.String(http.StatusOK, "Hello from the text relay!")
}

func (h *StatusHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *StatusHandler) Admin(c *gin.Context) {
	c.String(http.StatusOK, "Welcome to the admin panel.")
}
