package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/lepss/rent-simulator/internal/config"
	"github.com/lepss/rent-simulator/internal/db"
	"github.com/lepss/rent-simulator/internal/engine"
	"github.com/lepss/rent-simulator/internal/models"
	"github.com/lepss/rent-simulator/internal/utils"
)

// ISimulationService defines the interface for simulation-related operations.
type ISimulationService interface {
	Create(ctx context.Context, ownerID, name string) (*models.Simulation, error)
	FindByID(ctx context.Context, simID utils.SixID, ownerID string) (*models.Simulation, error)
	FindByOwner(ctx context.Context, ownerID string) ([]models.Simulation, error)
	Rename(ctx context.Context, simID utils.SixID, ownerID, name string) (*models.Simulation, error)
	SetPurchase(ctx context.Context, simID utils.SixID, ownerID string, purchase *models.Purchase) (*models.Simulation, error)
	SetLots(ctx context.Context, simID utils.SixID, ownerID string, lots []models.Lot) (*models.Simulation, error)
	SetExpenditures(ctx context.Context, simID utils.SixID, ownerID string, exps []models.Expenditure) (*models.Simulation, error)
	SetFinancing(ctx context.Context, simID utils.SixID, ownerID string, financing *models.Financing) (*models.Simulation, error)
	Delete(ctx context.Context, simID utils.SixID, ownerID string) error
	Export(ctx context.Context, simID utils.SixID, ownerID string) (*models.SimulationExport, error)
	Import(ctx context.Context, ownerID string, export *models.SimulationExport) (*models.Simulation, error)
	PurgeStale(ctx context.Context, olderThan time.Duration) (int64, error)
}

const simulationsCollection = "simulations"

// resultsCacheKey names the cached aggregate snapshot of one simulation.
// Scoped by owner so a hit can never leak another session's simulation.
func resultsCacheKey(ownerID string, simID utils.SixID) string {
	return fmt.Sprintf("results:%s:%s", ownerID, simID.String())
}

// simulationService implements ISimulationService.
type simulationService struct {
	db        *mongo.Database
	cfg       *config.Config
	configSvc IConfigService
	rdb       *redis.Client
}

// NewSimulationService creates a new SimulationService. rdb may be nil; the
// results cache is then simply never populated.
func NewSimulationService(db *mongo.Database, cfg *config.Config, configSvc IConfigService, rdb *redis.Client) ISimulationService {
	return &simulationService{db: db, cfg: cfg, configSvc: configSvc, rdb: rdb}
}

// resultsCacheTTL resolves the cache TTL, preferring DB-backed config.
func (s *simulationService) resultsCacheTTL(ctx context.Context) time.Duration {
	ttl := s.cfg.GetCacheTTL
	if s.configSvc != nil {
		ttl = s.configSvc.GetDuration(ctx, "GET_CACHE_TTL", ttl)
	}
	return ttl
}

// cacheResults overwrites the owner's cached snapshot after a successful
// write, so a following read is served from Redis without touching Mongo.
func (s *simulationService) cacheResults(ctx context.Context, sim *models.Simulation) {
	if s.rdb == nil {
		return
	}
	data, err := json.Marshal(sim.Results)
	if err != nil {
		return
	}
	key := resultsCacheKey(sim.OwnerID, sim.ID)
	if err := s.rdb.Set(ctx, key, data, s.resultsCacheTTL(ctx)).Err(); err != nil {
		log.Printf("Warning: Redis SET failed for key '%s': %v", key, err)
	}
}

// dropCachedResults removes the snapshot on delete. Without this a deleted
// simulation would keep answering from cache until the TTL expired.
func (s *simulationService) dropCachedResults(ctx context.Context, ownerID string, simID utils.SixID) {
	if s.rdb == nil {
		return
	}
	key := resultsCacheKey(ownerID, simID)
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		log.Printf("Warning: Redis DEL failed for key '%s': %v", key, err)
	}
}

// rates resolves the computation rates, preferring DB-backed config over .env defaults.
func (s *simulationService) rates(ctx context.Context) (standardVAT, defaultAcquisition float64) {
	standardVAT = s.cfg.StandardVATRate
	defaultAcquisition = s.cfg.DefaultAcquisitionRate
	if s.configSvc != nil {
		standardVAT = s.configSvc.GetFloat64(ctx, "STANDARD_VAT_RATE", standardVAT)
		defaultAcquisition = s.configSvc.GetFloat64(ctx, "DEFAULT_ACQUISITION_RATE", defaultAcquisition)
	}
	return standardVAT, defaultAcquisition
}

// recompute renormalizes all four records in dependency order and refreshes
// the aggregate snapshot. Mutates sim in place.
func (s *simulationService) recompute(ctx context.Context, sim *models.Simulation) {
	standardVAT, defaultAcquisition := s.rates(ctx)

	sim.Purchase = engine.NormalizePurchase(sim.Purchase, defaultAcquisition)
	sim.Lots = engine.NormalizeLots(sim.Lots, sim.Purchase, standardVAT)
	sim.Expenditures = engine.NormalizeExpenditures(sim.Expenditures, sim.Lots)
	financingBase := engine.TotalPurchaseCost(sim.Purchase) + engine.TotalExpenditures(sim.Expenditures)
	sim.Financing = engine.NormalizeFinancing(sim.Financing, financingBase)

	sim.Results = engine.Compute(engine.Snapshot{
		Purchase:     sim.Purchase,
		Lots:         sim.Lots,
		Expenditures: sim.Expenditures,
		Financing:    sim.Financing,
	})
}

// Create creates a new empty simulation for the owner.
func (s *simulationService) Create(ctx context.Context, ownerID, name string) (*models.Simulation, error) {
	collection := s.db.Collection(simulationsCollection)
	now := time.Now().UTC()

	var newSim *models.Simulation

	operation := func() error {
		newSim = &models.Simulation{
			ID:           utils.NewSixID(),
			OwnerID:      ownerID,
			Name:         name,
			Lots:         []models.Lot{},
			Expenditures: []models.Expenditure{},
			Deleted:      false,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		s.recompute(ctx, newSim)
		_, insertErr := collection.InsertOne(ctx, newSim)
		return insertErr
	}

	if err := db.Try(operation); err != nil {
		simIDStr := "<unknown>"
		if newSim != nil {
			simIDStr = newSim.ID.String()
		}
		return nil, fmt.Errorf("failed to insert new simulation for owner %s (last attempted ID: %s) after multiple retries: %w",
			ownerID, simIDStr, err)
	}

	s.cacheResults(ctx, newSim)
	return newSim, nil
}

// FindByID finds a non-deleted simulation by its ID, checking ownership.
func (s *simulationService) FindByID(ctx context.Context, simID utils.SixID, ownerID string) (*models.Simulation, error) {
	var sim models.Simulation
	collection := s.db.Collection(simulationsCollection)
	filter := bson.M{
		"_id":      simID,
		"owner_id": ownerID,
		"deleted":  false,
	}

	err := collection.FindOne(ctx, filter).Decode(&sim)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding simulation by ID %s: %w", simID.String(), err)
	}
	return &sim, nil
}

// FindByOwner lists the owner's non-deleted simulations, most recently updated first.
func (s *simulationService) FindByOwner(ctx context.Context, ownerID string) ([]models.Simulation, error) {
	collection := s.db.Collection(simulationsCollection)
	filter := bson.M{"owner_id": ownerID, "deleted": false}
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}})

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing simulations for owner %s: %w", ownerID, err)
	}
	defer cursor.Close(ctx)

	sims := []models.Simulation{}
	if err := cursor.All(ctx, &sims); err != nil {
		return nil, fmt.Errorf("error decoding simulations for owner %s: %w", ownerID, err)
	}
	return sims, nil
}

// Rename updates the display name of a simulation.
func (s *simulationService) Rename(ctx context.Context, simID utils.SixID, ownerID, name string) (*models.Simulation, error) {
	collection := s.db.Collection(simulationsCollection)
	filter := bson.M{"_id": simID, "owner_id": ownerID, "deleted": false}
	update := bson.M{"$set": bson.M{
		"name":       name,
		"updated_at": time.Now().UTC(),
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated models.Simulation
	err := collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("failed to rename simulation %s: %w", simID.String(), err)
	}
	return &updated, nil
}

// applyAndSave loads the simulation, lets apply mutate its input records,
// renormalizes everything and persists the result. The whole document is
// rewritten so the stored derived fields can never drift from the inputs.
func (s *simulationService) applyAndSave(ctx context.Context, simID utils.SixID, ownerID string, apply func(*models.Simulation)) (*models.Simulation, error) {
	sim, err := s.FindByID(ctx, simID, ownerID)
	if err != nil {
		return nil, err
	}

	apply(sim)
	s.recompute(ctx, sim)
	sim.UpdatedAt = time.Now().UTC()

	collection := s.db.Collection(simulationsCollection)
	filter := bson.M{"_id": simID, "owner_id": ownerID, "deleted": false}
	update := bson.M{"$set": bson.M{
		"purchase":     sim.Purchase,
		"lots":         sim.Lots,
		"expenditures": sim.Expenditures,
		"financing":    sim.Financing,
		"results":      sim.Results,
		"updated_at":   sim.UpdatedAt,
	}}

	result, err := collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return nil, fmt.Errorf("failed to update simulation %s: %w", simID.String(), err)
	}
	if result.MatchedCount == 0 {
		// Deleted between read and write
		return nil, mongo.ErrNoDocuments
	}

	s.cacheResults(ctx, sim)
	return sim, nil
}

// SetPurchase replaces the purchase record and recomputes downstream fields.
func (s *simulationService) SetPurchase(ctx context.Context, simID utils.SixID, ownerID string, purchase *models.Purchase) (*models.Simulation, error) {
	return s.applyAndSave(ctx, simID, ownerID, func(sim *models.Simulation) {
		sim.Purchase = purchase
	})
}

// SetLots replaces the lot list and recomputes downstream fields.
func (s *simulationService) SetLots(ctx context.Context, simID utils.SixID, ownerID string, lots []models.Lot) (*models.Simulation, error) {
	return s.applyAndSave(ctx, simID, ownerID, func(sim *models.Simulation) {
		if lots == nil {
			lots = []models.Lot{}
		}
		sim.Lots = lots
	})
}

// SetExpenditures replaces the expenditure list and recomputes downstream fields.
func (s *simulationService) SetExpenditures(ctx context.Context, simID utils.SixID, ownerID string, exps []models.Expenditure) (*models.Simulation, error) {
	return s.applyAndSave(ctx, simID, ownerID, func(sim *models.Simulation) {
		if exps == nil {
			exps = []models.Expenditure{}
		}
		sim.Expenditures = exps
	})
}

// SetFinancing replaces the financing record and recomputes downstream fields.
func (s *simulationService) SetFinancing(ctx context.Context, simID utils.SixID, ownerID string, financing *models.Financing) (*models.Simulation, error) {
	return s.applyAndSave(ctx, simID, ownerID, func(sim *models.Simulation) {
		sim.Financing = financing
	})
}

// Delete soft-deletes a simulation.
func (s *simulationService) Delete(ctx context.Context, simID utils.SixID, ownerID string) error {
	collection := s.db.Collection(simulationsCollection)
	filter := bson.M{"_id": simID, "owner_id": ownerID, "deleted": false}
	update := bson.M{"$set": bson.M{
		"deleted":    true,
		"updated_at": time.Now().UTC(),
	}}

	result, err := collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("db error deleting simulation %s: %w", simID.String(), err)
	}
	if result.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}

	s.dropCachedResults(ctx, ownerID, simID)
	return nil
}

// Export returns the flat exchange document for a simulation.
func (s *simulationService) Export(ctx context.Context, simID utils.SixID, ownerID string) (*models.SimulationExport, error) {
	sim, err := s.FindByID(ctx, simID, ownerID)
	if err != nil {
		return nil, err
	}
	return &models.SimulationExport{
		Name:         sim.Name,
		Purchase:     sim.Purchase,
		Lots:         sim.Lots,
		Expenditures: sim.Expenditures,
		Financing:    sim.Financing,
		Results:      sim.Results,
	}, nil
}

// Import creates a new simulation from an exchange document. The embedded
// Results snapshot is discarded and recomputed from the raw records, so a
// tampered or stale export can never smuggle in inconsistent aggregates.
func (s *simulationService) Import(ctx context.Context, ownerID string, export *models.SimulationExport) (*models.Simulation, error) {
	if export == nil {
		return nil, fmt.Errorf("nothing to import")
	}

	collection := s.db.Collection(simulationsCollection)
	now := time.Now().UTC()

	var newSim *models.Simulation

	operation := func() error {
		newSim = &models.Simulation{
			ID:           utils.NewSixID(),
			OwnerID:      ownerID,
			Name:         export.Name,
			Purchase:     export.Purchase,
			Lots:         export.Lots,
			Expenditures: export.Expenditures,
			Financing:    export.Financing,
			Deleted:      false,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if newSim.Lots == nil {
			newSim.Lots = []models.Lot{}
		}
		if newSim.Expenditures == nil {
			newSim.Expenditures = []models.Expenditure{}
		}
		s.recompute(ctx, newSim)
		_, insertErr := collection.InsertOne(ctx, newSim)
		return insertErr
	}

	if err := db.Try(operation); err != nil {
		return nil, fmt.Errorf("failed to import simulation for owner %s after multiple retries: %w", ownerID, err)
	}

	s.cacheResults(ctx, newSim)
	return newSim, nil
}

// PurgeStale hard-deletes soft-deleted simulations that haven't been touched
// for olderThan. Returns the number of documents removed.
func (s *simulationService) PurgeStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	collection := s.db.Collection(simulationsCollection)
	cutoff := time.Now().UTC().Add(-olderThan)
	filter := bson.M{
		"deleted":    true,
		"updated_at": bson.M{"$lt": cutoff},
	}

	result, err := collection.DeleteMany(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to purge stale simulations: %w", err)
	}
	if result.DeletedCount > 0 {
		log.Printf("Purged %d stale simulations (deleted before %s)", result.DeletedCount, cutoff.Format(time.RFC3339))
	}
	return result.DeletedCount, nil
}
