package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/lepss/rent-simulator/internal/api/middleware"
	"github.com/lepss/rent-simulator/internal/models"
	"github.com/lepss/rent-simulator/internal/services"
	"github.com/lepss/rent-simulator/internal/tasks"
	"github.com/lepss/rent-simulator/internal/utils"
)

// IAsynqClient defines the interface for the Asynq client methods used by the handler.
// This allows easier mocking than using the concrete asynq.Client.
type IAsynqClient interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// RestSimulationHandler handles REST requests for simulations.
type RestSimulationHandler struct {
	simulationService services.ISimulationService
	taskClient        IAsynqClient
}

// NewRestSimulationHandler creates a new RestSimulationHandler.
func NewRestSimulationHandler(simulationService services.ISimulationService, taskClient IAsynqClient) *RestSimulationHandler {
	return &RestSimulationHandler{
		simulationService: simulationService,
		taskClient:        taskClient,
	}
}

// sessionID extracts the authenticated session subject set by AuthMiddleware.
func sessionID(c *gin.Context) string {
	return c.GetString(middleware.ContextKeySessionID)
}

// simulationID parses the :id path parameter.
func simulationID(c *gin.Context) (utils.SixID, bool) {
	simID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid simulation ID format"})
		return utils.SixID{}, false
	}
	return simID, true
}

// --- Request DTOs ---
// Derived fields (agency-inclusive price, lot VAT, expenditure HT, loan
// principal and the like) are deliberately absent: they are recomputed
// server-side on every write and never accepted as input.

type simulationNameRequest struct {
	Name string `json:"name" binding:"required,max=200"`
}

type purchaseRequest struct {
	NetSellerPrice  float64          `json:"net_seller_price" binding:"min=0"`
	AgencyFee       float64          `json:"agency_fee" binding:"min=0"`
	ChargedTo       models.ChargedTo `json:"charged_to" binding:"omitempty,oneof=buyer seller"`
	AcquisitionFee  float64          `json:"acquisition_fee" binding:"min=0"`
	AcquisitionRate float64          `json:"acquisition_rate" binding:"min=0,max=100"`
	LegalFee        float64          `json:"legal_fee" binding:"min=0"`
}

type lotRequest struct {
	Name      string           `json:"name" binding:"max=200"`
	SalePrice float64          `json:"sale_price" binding:"min=0"`
	Surface   float64          `json:"surface" binding:"min=0"`
	Regime    models.VATRegime `json:"vat_regime" binding:"omitempty,oneof=exempt margin integral"`
	Weighting float64          `json:"weighting" binding:"min=0"`
}

type lotsRequest struct {
	Lots []lotRequest `json:"lots" binding:"required,max=100,dive"`
}

type expenditureRequest struct {
	Name              string  `json:"name" binding:"max=200"`
	TaxInclusivePrice float64 `json:"tax_inclusive_price" binding:"min=0"`
	VATRate           float64 `json:"vat_rate" binding:"min=0,max=100"`
	Quantity          int     `json:"quantity" binding:"min=0"`
	LotIDs            []int   `json:"lots_index"`
}

type expendituresRequest struct {
	Expenditures []expenditureRequest `json:"expenditures" binding:"required,max=500,dive"`
}

type financingRequest struct {
	DownPayment              float64 `json:"down_payment" binding:"min=0"`
	InterestRate             float64 `json:"interest_rate" binding:"min=0,max=100"`
	LoanDurationMonths       int     `json:"loan_duration_months" binding:"min=0"`
	CommitmentRate           float64 `json:"commitment_rate" binding:"min=0,max=100"`
	CommitmentDurationMonths int     `json:"commitment_duration_months" binding:"min=0"`
	MortgageRate             float64 `json:"mortgage_rate" binding:"min=0,max=100"`
	FilingFee                float64 `json:"filing_fee" binding:"min=0"`
}

type reportRequest struct {
	To string `json:"to" binding:"required,email"`
}

// respondSimulationError maps service errors onto HTTP statuses.
func respondSimulationError(c *gin.Context, err error, action string) {
	if errors.Is(err, mongo.ErrNoDocuments) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Simulation not found"})
		return
	}
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to " + action})
}

// CreateSimulation handles POST /v1/simulation
func (h *RestSimulationHandler) CreateSimulation(c *gin.Context) {
	var req simulationNameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	sim, err := h.simulationService.Create(c.Request.Context(), sessionID(c), req.Name)
	if err != nil {
		respondSimulationError(c, err, "create simulation")
		return
	}
	c.JSON(http.StatusCreated, sim)
}

// ListSimulations handles GET /v1/simulation
func (h *RestSimulationHandler) ListSimulations(c *gin.Context) {
	sims, err := h.simulationService.FindByOwner(c.Request.Context(), sessionID(c))
	if err != nil {
		respondSimulationError(c, err, "list simulations")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": sims})
}

// GetSimulation handles GET /v1/simulation/:id
func (h *RestSimulationHandler) GetSimulation(c *gin.Context) {
	simID, ok := simulationID(c)
	if !ok {
		return
	}

	sim, err := h.simulationService.FindByID(c.Request.Context(), simID, sessionID(c))
	if err != nil {
		respondSimulationError(c, err, "retrieve simulation")
		return
	}
	c.JSON(http.StatusOK, sim)
}

// RenameSimulation handles PUT /v1/simulation/:id/name
func (h *RestSimulationHandler) RenameSimulation(c *gin.Context) {
	simID, ok := simulationID(c)
	if !ok {
		return
	}

	var req simulationNameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	sim, err := h.simulationService.Rename(c.Request.Context(), simID, sessionID(c), req.Name)
	if err != nil {
		respondSimulationError(c, err, "rename simulation")
		return
	}
	c.JSON(http.StatusOK, sim)
}

// DeleteSimulation handles DELETE /v1/simulation/:id
func (h *RestSimulationHandler) DeleteSimulation(c *gin.Context) {
	simID, ok := simulationID(c)
	if !ok {
		return
	}

	if err := h.simulationService.Delete(c.Request.Context(), simID, sessionID(c)); err != nil {
		respondSimulationError(c, err, "delete simulation")
		return
	}
	c.Status(http.StatusNoContent)
}

// SetPurchase handles PUT /v1/simulation/:id/purchase
func (h *RestSimulationHandler) SetPurchase(c *gin.Context) {
	simID, ok := simulationID(c)
	if !ok {
		return
	}

	var req purchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	chargedTo := req.ChargedTo
	if chargedTo == "" {
		chargedTo = models.ChargedToSeller
	}
	purchase := &models.Purchase{
		NetSellerPrice:  req.NetSellerPrice,
		AgencyFee:       req.AgencyFee,
		ChargedTo:       chargedTo,
		AcquisitionFee:  req.AcquisitionFee,
		AcquisitionRate: req.AcquisitionRate,
		LegalFee:        req.LegalFee,
	}

	sim, err := h.simulationService.SetPurchase(c.Request.Context(), simID, sessionID(c), purchase)
	if err != nil {
		respondSimulationError(c, err, "update purchase")
		return
	}
	c.JSON(http.StatusOK, sim)
}

// SetLots handles PUT /v1/simulation/:id/lots
func (h *RestSimulationHandler) SetLots(c *gin.Context) {
	simID, ok := simulationID(c)
	if !ok {
		return
	}

	var req lotsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	lots := make([]models.Lot, 0, len(req.Lots))
	for _, l := range req.Lots {
		regime := l.Regime
		if regime == "" {
			regime = models.VATExempt
		}
		lots = append(lots, models.Lot{
			Name:      l.Name,
			SalePrice: l.SalePrice,
			Surface:   l.Surface,
			Regime:    regime,
			Weighting: l.Weighting,
		})
	}

	sim, err := h.simulationService.SetLots(c.Request.Context(), simID, sessionID(c), lots)
	if err != nil {
		respondSimulationError(c, err, "update lots")
		return
	}
	c.JSON(http.StatusOK, sim)
}

// SetExpenditures handles PUT /v1/simulation/:id/expenditures
func (h *RestSimulationHandler) SetExpenditures(c *gin.Context) {
	simID, ok := simulationID(c)
	if !ok {
		return
	}

	var req expendituresRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	exps := make([]models.Expenditure, 0, len(req.Expenditures))
	for _, e := range req.Expenditures {
		exps = append(exps, models.Expenditure{
			Name:              e.Name,
			TaxInclusivePrice: e.TaxInclusivePrice,
			VATRate:           e.VATRate,
			Quantity:          e.Quantity,
			LotIDs:            e.LotIDs,
		})
	}

	sim, err := h.simulationService.SetExpenditures(c.Request.Context(), simID, sessionID(c), exps)
	if err != nil {
		respondSimulationError(c, err, "update expenditures")
		return
	}
	c.JSON(http.StatusOK, sim)
}

// SetFinancing handles PUT /v1/simulation/:id/financing
func (h *RestSimulationHandler) SetFinancing(c *gin.Context) {
	simID, ok := simulationID(c)
	if !ok {
		return
	}

	var req financingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	financing := &models.Financing{
		DownPayment:              req.DownPayment,
		InterestRate:             req.InterestRate,
		LoanDurationMonths:       req.LoanDurationMonths,
		CommitmentRate:           req.CommitmentRate,
		CommitmentDurationMonths: req.CommitmentDurationMonths,
		MortgageRate:             req.MortgageRate,
		FilingFee:                req.FilingFee,
	}

	sim, err := h.simulationService.SetFinancing(c.Request.Context(), simID, sessionID(c), financing)
	if err != nil {
		respondSimulationError(c, err, "update financing")
		return
	}
	c.JSON(http.StatusOK, sim)
}

// ExportSimulation handles GET /v1/simulation/:id/export
func (h *RestSimulationHandler) ExportSimulation(c *gin.Context) {
	simID, ok := simulationID(c)
	if !ok {
		return
	}

	export, err := h.simulationService.Export(c.Request.Context(), simID, sessionID(c))
	if err != nil {
		respondSimulationError(c, err, "export simulation")
		return
	}
	c.Header("Content-Disposition", `attachment; filename="simulation-`+simID.String()+`.json"`)
	c.JSON(http.StatusOK, export)
}

// ImportSimulation handles POST /v1/simulation/import
func (h *RestSimulationHandler) ImportSimulation(c *gin.Context) {
	var export models.SimulationExport
	if err := c.ShouldBindJSON(&export); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid import document: " + err.Error()})
		return
	}

	sim, err := h.simulationService.Import(c.Request.Context(), sessionID(c), &export)
	if err != nil {
		respondSimulationError(c, err, "import simulation")
		return
	}
	c.JSON(http.StatusCreated, sim)
}

// ArchiveSimulation handles POST /v1/simulation/:id/archive
// The snapshot upload runs as a background task; the endpoint only verifies
// the simulation exists before enqueueing.
func (h *RestSimulationHandler) ArchiveSimulation(c *gin.Context) {
	simID, ok := simulationID(c)
	if !ok {
		return
	}
	owner := sessionID(c)
	ctx := c.Request.Context()

	if _, err := h.simulationService.FindByID(ctx, simID, owner); err != nil {
		respondSimulationError(c, err, "archive simulation")
		return
	}

	payloadBytes, err := json.Marshal(tasks.ArchiveTaskPayload{
		SimulationID: simID.String(),
		OwnerID:      owner,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to archive simulation"})
		return
	}

	task := asynq.NewTask(tasks.TypeSimulationArchive, payloadBytes, asynq.Queue("low"))
	taskInfo, err := h.taskClient.EnqueueContext(ctx, task)
	if err != nil {
		log.Printf("Failed to enqueue archive task for simulation %s: %v", simID.String(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to schedule archive"})
		return
	}

	log.Printf("Enqueued archive task ID %s for simulation %s", taskInfo.ID, simID.String())
	c.JSON(http.StatusAccepted, gin.H{"status": "archive scheduled"})
}

// TriggerCleanup handles POST /v1/admin/cleanup
// Enqueues an immediate purge of stale soft-deleted simulations, same task the
// periodic ticker schedules.
func (h *RestSimulationHandler) TriggerCleanup(c *gin.Context) {
	task := asynq.NewTask(tasks.TypeSimulationCleanup, nil, asynq.Queue("low"))
	taskInfo, err := h.taskClient.EnqueueContext(c.Request.Context(), task)
	if err != nil {
		log.Printf("Failed to enqueue cleanup task: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to schedule cleanup"})
		return
	}

	log.Printf("Enqueued cleanup task ID %s", taskInfo.ID)
	c.JSON(http.StatusAccepted, gin.H{"status": "cleanup scheduled"})
}

// ReportSimulation handles POST /v1/simulation/:id/report
func (h *RestSimulationHandler) ReportSimulation(c *gin.Context) {
	simID, ok := simulationID(c)
	if !ok {
		return
	}

	var req reportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	owner := sessionID(c)
	ctx := c.Request.Context()

	if _, err := h.simulationService.FindByID(ctx, simID, owner); err != nil {
		respondSimulationError(c, err, "report simulation")
		return
	}

	payloadBytes, err := json.Marshal(tasks.ReportTaskPayload{
		SimulationID: simID.String(),
		OwnerID:      owner,
		To:           req.To,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to report simulation"})
		return
	}

	task := asynq.NewTask(tasks.TypeSimulationReport, payloadBytes)
	taskInfo, err := h.taskClient.EnqueueContext(ctx, task)
	if err != nil {
		log.Printf("Failed to enqueue report task for simulation %s: %v", simID.String(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to schedule report"})
		return
	}

	log.Printf("Enqueued report task ID %s for simulation %s (to %s)", taskInfo.ID, simID.String(), req.To)
	c.JSON(http.StatusAccepted, gin.H{"status": "report scheduled"})
}
