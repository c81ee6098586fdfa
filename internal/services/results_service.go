package services

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"

	"github.com/lepss/rent-simulator/internal/config"
	"github.com/lepss/rent-simulator/internal/models"
	"github.com/lepss/rent-simulator/internal/utils"
)

// IResultsService serves the aggregate snapshot of a simulation, fronted by a
// short-TTL Redis cache.
type IResultsService interface {
	GetResults(ctx context.Context, simID utils.SixID, ownerID string) (*models.Results, error)
}

// resultsService implements IResultsService.
type resultsService struct {
	simSvc    ISimulationService
	rdb       *redis.Client
	cfg       *config.Config
	configSvc IConfigService
}

// NewResultsService creates a new ResultsService.
func NewResultsService(simSvc ISimulationService, rdb *redis.Client, cfg *config.Config, configSvc IConfigService) IResultsService {
	return &resultsService{simSvc: simSvc, rdb: rdb, cfg: cfg, configSvc: configSvc}
}

// GetResults returns the Results snapshot for a simulation. The cache is
// checked first and a hit never touches Mongo; the simulation service
// overwrites the key on every write and drops it on delete, so entries are
// stale only for the TTL window after an out-of-band change. The key is
// owner-scoped, so a foreign session misses and falls through to the
// ownership check in FindByID.
func (s *resultsService) GetResults(ctx context.Context, simID utils.SixID, ownerID string) (*models.Results, error) {
	key := resultsCacheKey(ownerID, simID)

	if s.rdb != nil {
		cached, err := s.rdb.Get(ctx, key).Bytes()
		if err == nil {
			var results models.Results
			if jsonErr := json.Unmarshal(cached, &results); jsonErr == nil {
				return &results, nil
			}
			log.Printf("Warning: Failed to decode cached results for key '%s', rereading.", key)
		} else if err != redis.Nil {
			log.Printf("Warning: Redis GET failed for key '%s': %v", key, err)
		}
	}

	sim, err := s.simSvc.FindByID(ctx, simID, ownerID)
	if err != nil {
		return nil, err
	}

	if s.rdb != nil {
		ttl := s.cfg.GetCacheTTL
		if s.configSvc != nil {
			ttl = s.configSvc.GetDuration(ctx, "GET_CACHE_TTL", ttl)
		}
		if data, jsonErr := json.Marshal(sim.Results); jsonErr == nil {
			if setErr := s.rdb.Set(ctx, key, data, ttl).Err(); setErr != nil {
				log.Printf("Warning: Redis SET failed for key '%s': %v", key, setErr)
			}
		}
	}

	return &sim.Results, nil
}
