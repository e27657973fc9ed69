package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ai-photo-kiosk/internal/models"
)

func Health(c *gin.Context) {
	c.JSON(http.StatusOK, models.HealthResponse{Status: "ok"})
}
