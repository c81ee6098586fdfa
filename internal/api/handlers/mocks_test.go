package handlers_test

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/mock"

	"github.com/lepss/rent-simulator/internal/models"
	"github.com/lepss/rent-simulator/internal/utils"
)

// --- Mocks ---

// MockSimulationService implements services.ISimulationService
type MockSimulationService struct {
	mock.Mock
}

func (m *MockSimulationService) Create(ctx context.Context, ownerID, name string) (*models.Simulation, error) {
	args := m.Called(ctx, ownerID, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Simulation), args.Error(1)
}
func (m *MockSimulationService) FindByID(ctx context.Context, simID utils.SixID, ownerID string) (*models.Simulation, error) {
	args := m.Called(ctx, simID, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Simulation), args.Error(1)
}
func (m *MockSimulationService) FindByOwner(ctx context.Context, ownerID string) ([]models.Simulation, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Simulation), args.Error(1)
}
func (m *MockSimulationService) Rename(ctx context.Context, simID utils.SixID, ownerID, name string) (*models.Simulation, error) {
	args := m.Called(ctx, simID, ownerID, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Simulation), args.Error(1)
}
func (m *MockSimulationService) SetPurchase(ctx context.Context, simID utils.SixID, ownerID string, purchase *models.Purchase) (*models.Simulation, error) {
	args := m.Called(ctx, simID, ownerID, purchase)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Simulation), args.Error(1)
}
func (m *MockSimulationService) SetLots(ctx context.Context, simID utils.SixID, ownerID string, lots []models.Lot) (*models.Simulation, error) {
	args := m.Called(ctx, simID, ownerID, lots)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Simulation), args.Error(1)
}
func (m *MockSimulationService) SetExpenditures(ctx context.Context, simID utils.SixID, ownerID string, exps []models.Expenditure) (*models.Simulation, error) {
	args := m.Called(ctx, simID, ownerID, exps)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Simulation), args.Error(1)
}
func (m *MockSimulationService) SetFinancing(ctx context.Context, simID utils.SixID, ownerID string, financing *models.Financing) (*models.Simulation, error) {
	args := m.Called(ctx, simID, ownerID, financing)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Simulation), args.Error(1)
}
func (m *MockSimulationService) Delete(ctx context.Context, simID utils.SixID, ownerID string) error {
	args := m.Called(ctx, simID, ownerID)
	return args.Error(0)
}
func (m *MockSimulationService) Export(ctx context.Context, simID utils.SixID, ownerID string) (*models.SimulationExport, error) {
	args := m.Called(ctx, simID, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SimulationExport), args.Error(1)
}
func (m *MockSimulationService) Import(ctx context.Context, ownerID string, export *models.SimulationExport) (*models.Simulation, error) {
	args := m.Called(ctx, ownerID, export)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Simulation), args.Error(1)
}
func (m *MockSimulationService) PurgeStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	args := m.Called(ctx, olderThan)
	return args.Get(0).(int64), args.Error(1)
}

// MockResultsService implements services.IResultsService
type MockResultsService struct {
	mock.Mock
}

func (m *MockResultsService) GetResults(ctx context.Context, simID utils.SixID, ownerID string) (*models.Results, error) {
	args := m.Called(ctx, simID, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Results), args.Error(1)
}

// MockConfigService implements services.IConfigService
type MockConfigService struct {
	mock.Mock
}

func (m *MockConfigService) GetAllPublic(ctx context.Context) (map[string]interface{}, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]interface{}), args.Error(1)
}
func (m *MockConfigService) Get(ctx context.Context, key string) (interface{}, error) {
	args := m.Called(ctx, key)
	return args.Get(0), args.Error(1)
}
func (m *MockConfigService) GetInt(ctx context.Context, key string, defaultValue int) int {
	args := m.Called(ctx, key, defaultValue)
	if err := args.Error(1); err != nil {
		return defaultValue
	}
	return args.Int(0)
}
func (m *MockConfigService) GetString(ctx context.Context, key string, defaultValue string) string {
	args := m.Called(ctx, key, defaultValue)
	if err := args.Error(1); err != nil {
		return defaultValue
	}
	return args.String(0)
}
func (m *MockConfigService) GetBool(ctx context.Context, key string, defaultValue bool) bool {
	args := m.Called(ctx, key, defaultValue)
	if err := args.Error(1); err != nil {
		return defaultValue
	}
	return args.Bool(0)
}
func (m *MockConfigService) GetFloat64(ctx context.Context, key string, defaultValue float64) float64 {
	args := m.Called(ctx, key, defaultValue)
	if err := args.Error(1); err != nil {
		return defaultValue
	}
	if fVal, ok := args.Get(0).(float64); ok {
		return fVal
	}
	return float64(args.Int(0))
}
func (m *MockConfigService) GetDuration(ctx context.Context, key string, defaultValue time.Duration) time.Duration {
	args := m.Called(ctx, key, defaultValue)
	if err := args.Error(1); err != nil {
		return defaultValue
	}
	return args.Get(0).(time.Duration)
}
func (m *MockConfigService) Load(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
func (m *MockConfigService) SubscribeToChanges(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
func (m *MockConfigService) SetConfigValue(ctx context.Context, key string, value interface{}, isPublic bool) error {
	args := m.Called(ctx, key, value, isPublic)
	return args.Error(0)
}

// MockAsynqClient implements handlers.IAsynqClient
type MockAsynqClient struct {
	mock.Mock
}

func (m *MockAsynqClient) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	args := m.Called(ctx, task, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*asynq.TaskInfo), args.Error(1)
}
