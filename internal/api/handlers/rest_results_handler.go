package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lepss/rent-simulator/internal/services"
	"github.com/lepss/rent-simulator/internal/utils"
)

// RestResultsHandler serves the cached aggregate snapshot of a simulation.
type RestResultsHandler struct {
	resultsService services.IResultsService
}

// NewRestResultsHandler creates a new RestResultsHandler.
func NewRestResultsHandler(resultsService services.IResultsService) *RestResultsHandler {
	return &RestResultsHandler{resultsService: resultsService}
}

// GetResults handles GET /v1/simulation/:id/results
func (h *RestResultsHandler) GetResults(c *gin.Context) {
	simID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid simulation ID format"})
		return
	}

	results, err := h.resultsService.GetResults(c.Request.Context(), simID, sessionID(c))
	if err != nil {
		respondSimulationError(c, err, "retrieve results")
		return
	}
	c.JSON(http.StatusOK, results)
}
