package handler

import (
	"path/filepath"

	"github.com/gin-gonic/gin"
)

type PageHandler struct {
	webDir string
}

func NewPageHandler(webDir string) *PageHandler {
	return &PageHandler{webDir: webDir}
}

func (h *PageHandler) Login(c *gin.Context) {
	c.File(filepath.Join(h.webDir, "login.html"))
}

func (h *PageHandler) Dashboard(c *gin.Context) {
	c.File(filepath.Join(h.webDir, "dashboard.html"))
}
