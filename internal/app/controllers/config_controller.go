package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/luoxh/trainsys/internal/app/models"
)

// ConfigController serves client configuration data
type ConfigController struct{}

// NewConfigController creates a new ConfigController
func NewConfigController() *ConfigController {
	return &ConfigController{}
}

// JobCategories lists both tracks' category catalogs with their exam
// projects, for the enrollment form selectors.
func (c *ConfigController) JobCategories(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"special_operation": models.OperationJobCategories,
		"special_equipment": models.EquipmentJobCategories,
	})
}
