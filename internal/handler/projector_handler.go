// internal/handler/projector_handler.go
package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"projector-service/internal/catalog"
	"projector-service/internal/model"
	"projector-service/internal/service"
	"projector-service/internal/utils"
)

// ProjectorHandler handles projector-related HTTP requests
type ProjectorHandler struct {
	projectorService *service.ProjectorService
	catalog          *catalog.Catalog
	logger           *utils.ServiceLogger
}

// NewProjectorHandler creates a new projector handler
func NewProjectorHandler(projectorService *service.ProjectorService, cat *catalog.Catalog, logger *zap.Logger) *ProjectorHandler {
	return &ProjectorHandler{
		projectorService: projectorService,
		catalog:          cat,
		logger:           utils.NewServiceLogger(logger, "projector-handler"),
	}
}

// RegisterRoutes registers projector-related routes
func (h *ProjectorHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/catalog", h.GetCatalog)

	projectors := router.Group("/projectors")
	{
		projectors.GET("", h.ListProjectors)

		projector := projectors.Group("/:id")
		{
			projector.GET("", h.GetProjector)
			projector.GET("/serial", h.GetSerialNumber)
			projector.PUT("/power", h.SetPower)
			projector.POST("/commands/:command", h.ExecuteCommand)
			projector.GET("/properties/:property", h.ReadProperty)
			projector.PUT("/properties/:property", h.WriteProperty)
			projector.POST("/properties/refresh", h.RefreshProperties)
			projector.GET("/raw/:code", h.GetRawProperty)
			projector.GET("/options/:option", h.ReadOption)
			projector.PUT("/options/:option", h.SelectOption)
			projector.POST("/functions/:function", h.RunFunction)
		}
	}
}

// PowerRequest switches a projector on or off
type PowerRequest struct {
	State string `json:"state" binding:"required"`
}

// PropertyRequest writes a human value
type PropertyRequest struct {
	Value *int `json:"value" binding:"required"`
}

// OptionRequest selects an option by label
type OptionRequest struct {
	Value string `json:"value" binding:"required"`
}

// FunctionRequest carries the argument of a complex function
type FunctionRequest struct {
	Value string `json:"value"`
}

// CatalogResponse lists everything a projector can be asked
type CatalogResponse struct {
	Properties []catalog.PropertyDescriptor `json:"properties"`
	Readouts   []catalog.PropertyDescriptor `json:"readouts"`
	Commands   []catalog.CommandDescriptor  `json:"commands"`
	Options    []catalog.OptionDescriptor   `json:"options"`
	Functions  []catalog.FunctionDescriptor `json:"functions"`
}

// GetCatalog returns the protocol catalog
// @Summary Protocol catalog
// @Description List config ranges, readouts, commands, options and functions
// @Tags Catalog
// @Produce json
// @Success 200 {object} utils.APIResponse{data=CatalogResponse}
// @Router /catalog [get]
func (h *ProjectorHandler) GetCatalog(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "Catalog retrieved successfully", &CatalogResponse{
		Properties: h.catalog.Properties,
		Readouts:   h.catalog.Readouts,
		Commands:   h.catalog.Commands,
		Options:    h.catalog.Options,
		Functions:  h.catalog.Functions,
	})
}

// ListProjectors lists configured projectors
// @Summary List projectors
// @Tags Projectors
// @Produce json
// @Success 200 {object} utils.APIResponse{data=[]driver.ProjectorInfo}
// @Router /projectors [get]
func (h *ProjectorHandler) ListProjectors(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "Projectors retrieved successfully", h.projectorService.ListProjectors())
}

// GetProjector returns the cached status of a projector
// @Summary Projector status
// @Description Cached power, busy state, session statistics and last polled values
// @Tags Projectors
// @Produce json
// @Param id path string true "Projector ID"
// @Success 200 {object} utils.APIResponse{data=model.ProjectorStatus}
// @Failure 404 {object} utils.APIResponse
// @Router /projectors/{id} [get]
func (h *ProjectorHandler) GetProjector(c *gin.Context) {
	status, err := h.projectorService.GetStatus(c.Param("id"))
	if err != nil {
		respondError(c, h.logger, "Projector not found", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Projector retrieved successfully", status)
}

// GetSerialNumber reads the serial number
// @Summary Serial number
// @Description Requires the projector to be on
// @Tags Projectors
// @Produce json
// @Param id path string true "Projector ID"
// @Success 200 {object} utils.APIResponse
// @Failure 503 {object} utils.APIResponse "Projector is not on"
// @Router /projectors/{id}/serial [get]
func (h *ProjectorHandler) GetSerialNumber(c *gin.Context) {
	serial, err := h.projectorService.GetSerialNumber(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, "Failed to read serial number", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Serial number retrieved successfully", gin.H{"serial_number": serial})
}

// SetPower switches the projector on or off
// @Summary Set power
// @Description ON is only sent from Standby and OFF only from On; other combinations are skipped
// @Tags Projectors
// @Accept json
// @Produce json
// @Param id path string true "Projector ID"
// @Param request body PowerRequest true "ON or OFF"
// @Success 200 {object} utils.APIResponse{data=model.ProjectorOperation}
// @Failure 409 {object} utils.APIResponse "Projector busy"
// @Router /projectors/{id}/power [put]
func (h *ProjectorHandler) SetPower(c *gin.Context) {
	var req PowerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var on bool
	switch strings.ToUpper(strings.TrimSpace(req.State)) {
	case "ON":
		on = true
	case "OFF":
	default:
		utils.ValidationErrorResponse(c, map[string]string{"state": "must be ON or OFF"})
		return
	}

	op, err := h.projectorService.SetPower(c.Request.Context(), c.Param("id"), on)
	if err != nil {
		respondError(c, h.logger, "Failed to set power", err)
		return
	}
	h.respondOperation(c, op)
}

// ExecuteCommand sends a key command
// @Summary Execute command
// @Tags Projectors
// @Produce json
// @Param id path string true "Projector ID"
// @Param command path string true "Command ID"
// @Success 200 {object} utils.APIResponse{data=model.ProjectorOperation}
// @Failure 404 {object} utils.APIResponse "Unknown command"
// @Router /projectors/{id}/commands/{command} [post]
func (h *ProjectorHandler) ExecuteCommand(c *gin.Context) {
	op, err := h.projectorService.ExecuteCommand(c.Request.Context(), c.Param("id"), c.Param("command"))
	if err != nil {
		respondError(c, h.logger, "Failed to execute command", err)
		return
	}
	h.respondOperation(c, op)
}

// ReadProperty reads a config range or readout
// @Summary Read property
// @Tags Properties
// @Produce json
// @Param id path string true "Projector ID"
// @Param property path string true "Property ID"
// @Success 200 {object} utils.APIResponse
// @Router /projectors/{id}/properties/{property} [get]
func (h *ProjectorHandler) ReadProperty(c *gin.Context) {
	property := c.Param("property")
	value, err := h.projectorService.ReadConfigValue(c.Request.Context(), c.Param("id"), property)
	if err != nil {
		respondError(c, h.logger, "Failed to read property", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Property retrieved successfully", gin.H{
		"property": property,
		"value":    value,
	})
}

// WriteProperty writes a config range
// @Summary Write property
// @Tags Properties
// @Accept json
// @Produce json
// @Param id path string true "Projector ID"
// @Param property path string true "Property ID"
// @Param request body PropertyRequest true "Human value"
// @Success 200 {object} utils.APIResponse{data=model.ProjectorOperation}
// @Failure 400 {object} utils.APIResponse "Out of range or read-only"
// @Router /projectors/{id}/properties/{property} [put]
func (h *ProjectorHandler) WriteProperty(c *gin.Context) {
	var req PropertyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ValidationErrorResponse(c, map[string]string{"value": "an integer value is required"})
		return
	}

	op, err := h.projectorService.SetConfigValue(c.Request.Context(), c.Param("id"), c.Param("property"), *req.Value)
	if err != nil {
		respondError(c, h.logger, "Failed to write property", err)
		return
	}
	h.respondOperation(c, op)
}

// RefreshProperties reads every property of a projector
// @Summary Refresh all properties
// @Tags Properties
// @Produce json
// @Param id path string true "Projector ID"
// @Success 200 {object} utils.APIResponse{data=model.PropertySnapshot}
// @Router /projectors/{id}/properties/refresh [post]
func (h *ProjectorHandler) RefreshProperties(c *gin.Context) {
	snapshot, err := h.projectorService.RefreshProperties(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, "Failed to refresh properties", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Properties refreshed successfully", snapshot)
}

// GetRawProperty reads an arbitrary protocol code
// @Summary Raw property
// @Tags Properties
// @Produce json
// @Param id path string true "Projector ID"
// @Param code path string true "Protocol code"
// @Success 200 {object} utils.APIResponse
// @Failure 502 {object} utils.APIResponse "No matching response"
// @Router /projectors/{id}/raw/{code} [get]
func (h *ProjectorHandler) GetRawProperty(c *gin.Context) {
	code := strings.ToUpper(c.Param("code"))
	value, err := h.projectorService.GetProperty(c.Request.Context(), c.Param("id"), code)
	if err != nil {
		respondError(c, h.logger, "Failed to read property", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Property retrieved successfully", gin.H{
		"code":  code,
		"value": value,
	})
}

// ReadOption reads an option label
// @Summary Read option
// @Tags Options
// @Produce json
// @Param id path string true "Projector ID"
// @Param option path string true "Option ID"
// @Success 200 {object} utils.APIResponse{data=service.OptionValue}
// @Router /projectors/{id}/options/{option} [get]
func (h *ProjectorHandler) ReadOption(c *gin.Context) {
	value, err := h.projectorService.ReadOption(c.Request.Context(), c.Param("id"), c.Param("option"))
	if err != nil {
		respondError(c, h.logger, "Failed to read option", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Option retrieved successfully", value)
}

// SelectOption selects an option value by label
// @Summary Select option
// @Tags Options
// @Accept json
// @Produce json
// @Param id path string true "Projector ID"
// @Param option path string true "Option ID"
// @Param request body OptionRequest true "Choice label"
// @Success 200 {object} utils.APIResponse{data=model.ProjectorOperation}
// @Router /projectors/{id}/options/{option} [put]
func (h *ProjectorHandler) SelectOption(c *gin.Context) {
	var req OptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ValidationErrorResponse(c, map[string]string{"value": "an option label is required"})
		return
	}

	op, err := h.projectorService.SelectOption(c.Request.Context(), c.Param("id"), c.Param("option"), req.Value)
	if err != nil {
		respondError(c, h.logger, "Failed to select option", err)
		return
	}
	h.respondOperation(c, op)
}

// RunFunction runs a complex function
// @Summary Run function
// @Tags Functions
// @Accept json
// @Produce json
// @Param id path string true "Projector ID"
// @Param function path string true "Function ID"
// @Param request body FunctionRequest false "Function argument"
// @Success 200 {object} utils.APIResponse{data=model.ProjectorOperation}
// @Router /projectors/{id}/functions/{function} [post]
func (h *ProjectorHandler) RunFunction(c *gin.Context) {
	var req FunctionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}

	op, err := h.projectorService.RunFunction(c.Request.Context(), c.Param("id"), c.Param("function"), req.Value)
	if err != nil {
		respondError(c, h.logger, "Failed to run function", err)
		return
	}
	h.respondOperation(c, op)
}

func (h *ProjectorHandler) respondOperation(c *gin.Context, op *model.ProjectorOperation) {
	message := "Operation completed successfully"
	if op.Status == model.OperationStatusSkipped {
		message = "Operation skipped for current power state"
	}
	utils.SuccessResponse(c, http.StatusOK, message, op)
}
