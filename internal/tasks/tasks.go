package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/lepss/rent-simulator/internal/config"
	"github.com/lepss/rent-simulator/internal/email"
	"github.com/lepss/rent-simulator/internal/models"
	"github.com/lepss/rent-simulator/internal/services"
	"github.com/lepss/rent-simulator/internal/storage"
	"github.com/lepss/rent-simulator/internal/utils"
)

// TaskType defines the type of a background task.
const (
	TypeSimulationArchive = "simulation:archive"
	TypeSimulationReport  = "simulation:report"
	TypeSimulationCleanup = "simulation:cleanup"
)

// --- Task Client (Enqueuing tasks) ---

func NewClient(rdb *redis.Client) *asynq.Client {
	clientOpt := asynq.RedisClientOpt{
		Addr: rdb.Options().Addr,
	}
	return asynq.NewClient(clientOpt)
}

// --- Task Server (Processing tasks) ---

// TaskProcessor handles the processing of tasks.
// It holds dependencies needed by task handlers.
type TaskProcessor struct {
	cfg               *config.Config
	emailSender       email.Sender
	archiveStorage    storage.IArchiveStorage
	simulationService services.ISimulationService
	configService     services.IConfigService
}

func NewTaskProcessor(
	cfg *config.Config,
	emailSender email.Sender,
	archiveStorage storage.IArchiveStorage,
	simulationService services.ISimulationService,
	configService services.IConfigService,
) *TaskProcessor {
	return &TaskProcessor{
		cfg:               cfg,
		emailSender:       emailSender,
		archiveStorage:    archiveStorage,
		simulationService: simulationService,
		configService:     configService,
	}
}

// SetupServer configures an Asynq server instance and its handler mux.
// The caller is responsible for running the server (so it can be started in a
// goroutine and shut down gracefully). Returns nil in API-only mode.
func SetupServer(rdb *redis.Client, processor *TaskProcessor, isBgWorker bool) (*asynq.Server, *asynq.ServeMux) {
	serverOpt := asynq.RedisClientOpt{
		Addr: rdb.Options().Addr,
	}

	srv := asynq.NewServer(
		serverOpt,
		asynq.Config{
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Printf("[Asynq Error] Task Type: %s, Payload: %s, Error: %v", task.Type(), string(task.Payload()), err)
			}),
		},
	)

	mux := asynq.NewServeMux()

	if isBgWorker {
		mux.HandleFunc(TypeSimulationArchive, processor.HandleSimulationArchiveTask)
		mux.HandleFunc(TypeSimulationReport, processor.HandleSimulationReportTask)
		mux.HandleFunc(TypeSimulationCleanup, processor.HandleSimulationCleanupTask)
		log.Println("Registered background task handlers (archive, report, cleanup).")
	} else {
		// API mode doesn't run a task server, but can still enqueue tasks
		log.Println("Running in API mode, no task server started.")
		return nil, nil
	}

	return srv, mux
}

// --- Task Handlers ---

// ArchiveTaskPayload identifies a simulation to snapshot into S3.
type ArchiveTaskPayload struct {
	SimulationID string `json:"simulation_id"`
	OwnerID      string `json:"owner_id"`
}

func (p *TaskProcessor) HandleSimulationArchiveTask(ctx context.Context, t *asynq.Task) error {
	var payload ArchiveTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal archive task payload: %v: %w", err, asynq.SkipRetry)
	}

	simID, err := utils.ParseSixID(payload.SimulationID)
	if err != nil {
		log.Printf("Invalid SimulationID in archive task payload: %s", payload.SimulationID)
		return fmt.Errorf("invalid simulation ID in payload: %w", asynq.SkipRetry)
	}

	export, err := p.simulationService.Export(ctx, simID, payload.OwnerID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			// Deleted since the task was enqueued; nothing to archive
			log.Printf("Simulation %s no longer exists, skipping archive.", payload.SimulationID)
			return fmt.Errorf("simulation not found: %w", asynq.SkipRetry)
		}
		return fmt.Errorf("failed to load simulation %s for archive: %w", payload.SimulationID, err)
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal archive for simulation %s: %v: %w", payload.SimulationID, err, asynq.SkipRetry)
	}

	key, err := p.archiveStorage.UploadArchive(ctx, payload.OwnerID, payload.SimulationID, data)
	if err != nil {
		return fmt.Errorf("failed to upload archive for simulation %s: %w", payload.SimulationID, err)
	}

	log.Printf("Archived simulation %s to %s", payload.SimulationID, key)
	return nil
}

// ReportTaskPayload identifies a simulation whose report should be emailed.
type ReportTaskPayload struct {
	SimulationID string `json:"simulation_id"`
	OwnerID      string `json:"owner_id"`
	To           string `json:"to"`
}

func (p *TaskProcessor) HandleSimulationReportTask(ctx context.Context, t *asynq.Task) error {
	var payload ReportTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal report task payload: %v: %w", err, asynq.SkipRetry)
	}

	simID, err := utils.ParseSixID(payload.SimulationID)
	if err != nil {
		log.Printf("Invalid SimulationID in report task payload: %s", payload.SimulationID)
		return fmt.Errorf("invalid simulation ID in payload: %w", asynq.SkipRetry)
	}

	sim, err := p.simulationService.FindByID(ctx, simID, payload.OwnerID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			log.Printf("Simulation %s no longer exists, skipping report.", payload.SimulationID)
			return fmt.Errorf("simulation not found: %w", asynq.SkipRetry)
		}
		return fmt.Errorf("failed to load simulation %s for report: %w", payload.SimulationID, err)
	}

	appName := p.cfg.AppName
	if p.configService != nil {
		appName = p.configService.GetString(ctx, "APP_NAME", appName)
	}

	subject := fmt.Sprintf("%s Profitability Report: %s", appName, sim.Name)
	body := RenderReport(sim)

	fromAddress := p.cfg.SmtpFromAddress
	if fromAddress == "" {
		fromAddress = "noreply@example.com"
		log.Printf("Warning: SmtpFromAddress not configured, using fallback %s for report to %s", fromAddress, payload.To)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("To: %s\r\n", payload.To))
	sb.WriteString(fmt.Sprintf("From: %s\r\n", fromAddress))
	sb.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	sb.WriteString("Date: " + time.Now().Format(time.RFC1123Z) + "\r\n")
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(body)
	sb.WriteString("\r\n")

	if err := p.emailSender.Send(ctx, []string{payload.To}, subject, []byte(sb.String())); err != nil {
		log.Printf("Report email sending failed (will retry): %v", err)
		return err
	}

	log.Printf("Report for simulation %s sent to %s", payload.SimulationID, payload.To)
	return nil
}

func (p *TaskProcessor) HandleSimulationCleanupTask(ctx context.Context, t *asynq.Task) error {
	age := p.cfg.StaleSimulationAge
	if p.configService != nil {
		age = p.configService.GetDuration(ctx, "STALE_SIMULATION_AGE", age)
	}

	purged, err := p.simulationService.PurgeStale(ctx, age)
	if err != nil {
		return fmt.Errorf("cleanup task failed: %w", err)
	}

	log.Printf("Cleanup task purged %d stale simulations.", purged)
	return nil
}

// RenderReport renders the plain-text body of a profitability report email.
func RenderReport(sim *models.Simulation) string {
	r := sim.Results

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Simulation: %s\n", sim.Name))
	sb.WriteString(fmt.Sprintf("Last updated: %s\n\n", sim.UpdatedAt.Format("2006-01-02 15:04 MST")))

	sb.WriteString("Costs\n")
	sb.WriteString(fmt.Sprintf("  Purchase:      %12.2f\n", r.TotalPurchaseCost))
	sb.WriteString(fmt.Sprintf("  Expenditures:  %12.2f\n", r.TotalExpenditures))
	sb.WriteString(fmt.Sprintf("  Financing:     %12.2f\n", r.TotalFinancingCost))
	sb.WriteString(fmt.Sprintf("  Total:         %12.2f\n\n", r.TotalCost))

	sb.WriteString("Sales\n")
	sb.WriteString(fmt.Sprintf("  Total sales:   %12.2f\n", r.TotalSales))
	for _, lot := range sim.Lots {
		sb.WriteString(fmt.Sprintf("    [%d] %-20s %12.2f\n", lot.ID, lot.Name, lot.SalePrice))
	}
	sb.WriteString("\n")

	sb.WriteString("VAT\n")
	sb.WriteString(fmt.Sprintf("  Collected:     %12.2f\n", r.CollectedVAT))
	for _, line := range r.VATByLot {
		sb.WriteString(fmt.Sprintf("    [%d] collected %10.2f  deductible %10.2f  net %10.2f\n",
			line.LotID, line.Collected, line.Deductible, line.Net))
	}
	sb.WriteString(fmt.Sprintf("  Total due:     %12.2f\n\n", r.TotalVAT))

	sb.WriteString("Outcome\n")
	sb.WriteString(fmt.Sprintf("  Margin:        %12.2f\n", r.Margin))
	sb.WriteString(fmt.Sprintf("  After VAT:     %12.2f\n", r.VATNetMargin))
	sb.WriteString(fmt.Sprintf("  Profitability: %11.2f%%\n", r.Profitability))

	return sb.String()
}
