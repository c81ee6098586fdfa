package services

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/lepss/rent-simulator/internal/config"
	"github.com/lepss/rent-simulator/internal/utils"
)

func setupTestDBConfig(t *testing.T, dbName string) *mongo.Database {
	return utils.SetupTestDB(t, dbName, "configuration")
}

func setupRedis(t *testing.T) *redis.Client {
	rdb := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	ctx := context.Background()
	err := rdb.FlushAll(ctx).Err()
	require.NoError(t, err, "Failed to flush Redis")
	return rdb
}

func TestConfigService_Basic(t *testing.T) {
	db := setupTestDBConfig(t, "testdb_config_service_basic")
	cfg := &config.Config{AppName: "TestApp", StandardVATRate: 20, DefaultAcquisitionRate: 3}
	rdb := setupRedis(t)
	svc := NewConfigService(db, cfg, rdb)
	ctx := context.Background()

	// Wait for initial load
	time.Sleep(100 * time.Millisecond)

	// Set and get config value
	err := svc.SetConfigValue(ctx, "foo", "bar", true)
	assert.NoError(t, err)
	time.Sleep(100 * time.Millisecond) // Wait for cache sync

	val, err := svc.Get(ctx, "foo")
	assert.NoError(t, err)
	assert.Equal(t, "bar", val)

	// Get non-existent key
	_, err = svc.Get(ctx, "does_not_exist")
	assert.Error(t, err)

	// Public config carries DB values plus the .env computation defaults
	pub, err := svc.GetAllPublic(ctx)
	assert.NoError(t, err)
	assert.Equal(t, "bar", pub["foo"])
	assert.Equal(t, "TestApp", pub["APP_NAME"])
	assert.Equal(t, 20.0, pub["STANDARD_VAT_RATE"])
	assert.Equal(t, 3.0, pub["DEFAULT_ACQUISITION_RATE"])

	// Type helpers
	assert.Equal(t, "bar", svc.GetString(ctx, "foo", "baz"))
	assert.Equal(t, 42, svc.GetInt(ctx, "notfound", 42))
	assert.Equal(t, false, svc.GetBool(ctx, "notfound", false))
	assert.Equal(t, 3.14, svc.GetFloat64(ctx, "notfound", 3.14))
	assert.Equal(t, 5*time.Second, svc.GetDuration(ctx, "notfound", 5*time.Second))
}

func TestConfigService_RateOverrides(t *testing.T) {
	db := setupTestDBConfig(t, "testdb_config_service_rates")
	cfg := &config.Config{StandardVATRate: 20, DefaultAcquisitionRate: 3}
	rdb := setupRedis(t)
	svc := NewConfigService(db, cfg, rdb)
	ctx := context.Background()

	time.Sleep(100 * time.Millisecond)

	// .env defaults apply until the DB overrides them
	assert.Equal(t, 20.0, svc.GetFloat64(ctx, "STANDARD_VAT_RATE", cfg.StandardVATRate))

	err := svc.SetConfigValue(ctx, "STANDARD_VAT_RATE", 5.5, true)
	assert.NoError(t, err)
	time.Sleep(100 * time.Millisecond) // Wait for cache sync

	assert.Equal(t, 5.5, svc.GetFloat64(ctx, "STANDARD_VAT_RATE", cfg.StandardVATRate))
}

func TestConfigService_TypeCoercion(t *testing.T) {
	db := setupTestDBConfig(t, "testdb_config_service_coercion")
	cfg := &config.Config{}
	rdb := setupRedis(t)
	svc := NewConfigService(db, cfg, rdb)
	ctx := context.Background()

	time.Sleep(100 * time.Millisecond)

	err := svc.SetConfigValue(ctx, "int_key", 42, false)
	assert.NoError(t, err)
	err = svc.SetConfigValue(ctx, "bool_key", true, false)
	assert.NoError(t, err)
	err = svc.SetConfigValue(ctx, "duration_key", int64(60), false)
	assert.NoError(t, err)
	time.Sleep(100 * time.Millisecond) // Wait for cache sync

	assert.Equal(t, 42, svc.GetInt(ctx, "int_key", 0))
	assert.Equal(t, 42.0, svc.GetFloat64(ctx, "int_key", 0))
	assert.True(t, svc.GetBool(ctx, "bool_key", false))
	assert.Equal(t, 60*time.Second, svc.GetDuration(ctx, "duration_key", 0))

	// Private keys never leak through GetAllPublic
	pub, err := svc.GetAllPublic(ctx)
	assert.NoError(t, err)
	_, exists := pub["int_key"]
	assert.False(t, exists)
}
