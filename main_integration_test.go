package main_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/exec"
	"syscall"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/lepss/rent-simulator/internal/models"
)

const (
	testAppBinary         = "./rentsim_test_app" // Name for the test binary
	testAppPort           = "8089"               // Port for the test server
	testServiceApiPortApi = "8091"               // Port for Service API run by API process
	testServiceApiPortBg  = "8092"               // Port for Service API run by BG process
	testAppURL            = "http://localhost:" + testAppPort
	testServiceApiURL     = "http://localhost:" + testServiceApiPortApi
	testBgServiceApiURL   = "http://localhost:" + testServiceApiPortBg
	startupTimeout        = 15 * time.Second
	pingEndpoint          = testAppURL + "/v1/ping"
	testAdminAPIKey       = "integration-admin-key"
)

// TestMain manages the setup and teardown of the integration test environment.
func TestMain(m *testing.M) {
	defer func() {
		log.Println("Integration Test Teardown: Cleaning up test binary...")
		_ = os.Remove(testAppBinary)
	}()

	log.Println("Integration Test Setup: Building application...")
	godotenv.Load()
	buildCmd := exec.Command("go", "build", "-o", testAppBinary, ".")
	buildOutput, err := buildCmd.CombinedOutput()
	if err != nil {
		log.Printf("Failed to build application: %v\nOutput:\n%s", err, string(buildOutput))
		os.Exit(1)
	}
	log.Printf("Integration Test Setup: Build successful: %s", testAppBinary)

	adminKeyHash, err := bcrypt.GenerateFromPassword([]byte(testAdminAPIKey), bcrypt.MinCost)
	if err != nil {
		log.Printf("Failed to hash admin API key: %v", err)
		os.Exit(1)
	}

	commonEnv := []string{
		"JWT_SECRET=integration-test-secret",
		"GIN_MODE=release",
		"MOCK_SERVICES=true",
		"REDIS_ADDR=localhost:6379",
		"SMTP_FROM_ADDRESS=test@example.com", // Needed by RedisSender
		"ADMIN_API_KEY_HASH=" + string(adminKeyHash),
	}

	// --- Start API Process ---
	apiCmd := exec.Command(testAppBinary, "-m", "api")
	apiCmd.Env = append(append(os.Environ(), commonEnv...),
		"API_PORT="+testAppPort,
		"SERVICE_API_PORT="+testServiceApiPortApi,
		"RATE_LIMIT_SOFT_BUCKET_SIZE=100",
		"RATE_LIMIT_SOFT_REFILL_RATE=100",
		"RATE_LIMIT_HARD_BUCKET_SIZE=200",
		"RATE_LIMIT_HARD_REFILL_RATE=200",
	)
	apiCmd.Stderr = os.Stderr
	apiCmd.Stdout = os.Stdout

	log.Println("Integration Test Setup: Starting API process...")
	err = apiCmd.Start()
	if err != nil {
		log.Printf("Failed to start API process: %v", err)
		os.Exit(1)
	}
	log.Printf("Integration Test Setup: API process started (PID: %d)...", apiCmd.Process.Pid)

	// --- Start Background Worker Process ---
	bgCmd := exec.Command(testAppBinary, "-m", "bg")
	bgCmd.Env = append(append(os.Environ(), commonEnv...),
		"SERVICE_API_PORT="+testServiceApiPortBg,
	)
	bgCmd.Stderr = os.Stderr
	bgCmd.Stdout = os.Stdout

	log.Println("Integration Test Setup: Starting Background Worker process...")
	err = bgCmd.Start()
	if err != nil {
		_ = apiCmd.Process.Kill()
		log.Printf("Failed to start Background Worker process: %v", err)
		os.Exit(1)
	}
	log.Printf("Integration Test Setup: Background Worker process started (PID: %d)...", bgCmd.Process.Pid)

	defer func() {
		log.Println("Integration Test Teardown: Shutting down application processes...")
		log.Println("Sending SIGTERM to Background Worker...")
		if processErr := bgCmd.Process.Signal(syscall.SIGTERM); processErr != nil {
			log.Printf("Integration Test Teardown: Failed to send SIGTERM to BG Worker: %v. Killing.", processErr)
			_ = bgCmd.Process.Kill()
		} else {
			_, waitErr := bgCmd.Process.Wait()
			if waitErr != nil && waitErr.Error() != "signal: killed" && waitErr.Error() != "exit status 1" {
				log.Printf("Integration Test Teardown: Error waiting for BG Worker exit: %v", waitErr)
			}
		}
		log.Println("Sending SIGTERM to API Process...")
		if processErr := apiCmd.Process.Signal(syscall.SIGTERM); processErr != nil {
			log.Printf("Integration Test Teardown: Failed to send SIGTERM to API Process: %v. Killing.", processErr)
			_ = apiCmd.Process.Kill()
		} else {
			_, waitErr := apiCmd.Process.Wait()
			if waitErr != nil && waitErr.Error() != "signal: killed" && waitErr.Error() != "exit status 1" {
				log.Printf("Integration Test Teardown: Error waiting for API Process exit: %v", waitErr)
			}
		}
		log.Println("Integration Test Teardown: Application processes stopped.")
	}()

	// Wait for the API application to be ready by polling the ping endpoint
	log.Printf("Integration Test Setup: Waiting for API application to become ready at %s...", pingEndpoint)
	startTime := time.Now()
	ready := false
	for time.Since(startTime) < startupTimeout {
		resp, err := http.Get(pingEndpoint)
		if err == nil && resp.StatusCode == http.StatusOK {
			bodyBytes, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			if string(bodyBytes) == "pong" {
				log.Println("Integration Test Setup: Application is ready!")
				ready = true
				break
			}
		}
		if resp != nil {
			resp.Body.Close()
		}
		time.Sleep(200 * time.Millisecond)
	}

	if !ready {
		log.Printf("Application failed to start within %v", startupTimeout)
		os.Exit(1)
	}

	log.Println("Integration Test Setup: Pausing briefly for background worker startup...")
	time.Sleep(2 * time.Second)

	log.Println("Integration Test Setup: Running tests...")
	exitCode := m.Run()
	log.Printf("Integration Test Teardown: Tests finished with exit code %d.", exitCode)
	// Let TestMain return normally so deferred teardown runs.
}

// --- Helpers ---

// createSession mints an anonymous session and returns its bearer token.
func createSession(t *testing.T) string {
	t.Helper()
	resp, err := http.Post(testAppURL+"/v1/session", "application/json", nil)
	require.NoError(t, err, "session request failed")
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode, "session status code")

	var body struct {
		SessionID string `json:"session_id"`
		Token     string `json:"token"`
		ExpiresIn int    `json:"expires_in"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.NotEmpty(t, body.Token, "session token should not be empty")
	return body.Token
}

// doJSON performs an authenticated JSON request and decodes the response body.
func doJSON(t *testing.T, method, path, token string, payload interface{}, out interface{}) *http.Response {
	t.Helper()
	var bodyReader io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err, "Failed to marshal request payload")
		bodyReader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, testAppURL+path, bodyReader)
	require.NoError(t, err, "Failed to create HTTP request")
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err, "Request to %s failed", path)

	respBytes, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, readErr, "Failed to read response body")
	if out != nil && len(respBytes) > 0 {
		require.NoError(t, json.Unmarshal(respBytes, out), "Failed to unmarshal response from %s: %s", path, string(respBytes))
	}
	return resp
}

// getEmailFromServiceAPI polls the BG worker's service API for a captured mock email.
func getEmailFromServiceAPI(t *testing.T, mailType, emailAddr string) map[string]interface{} {
	t.Helper()
	payload := map[string]interface{}{
		"method":    "getTestEmail",
		"arguments": []string{mailType, emailAddr},
	}
	raw, err := json.Marshal(payload)
	require.NoError(t, err)

	resp, err := http.Post(testBgServiceApiURL+"/api", "application/json", bytes.NewReader(raw))
	require.NoError(t, err, "Service API getTestEmail request failed")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode, "Service API getTestEmail status code")

	var body struct {
		Success bool                   `json:"success"`
		Data    map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.True(t, body.Success, "Service API getTestEmail success field")
	return body.Data
}

// setupWorkedExample creates a simulation and fills in all four input records.
// The numbers are chosen so every derived figure is exactly representable.
func setupWorkedExample(t *testing.T, token string) string {
	t.Helper()
	var sim models.Simulation
	resp := doJSON(t, "POST", "/v1/simulation", token, map[string]string{"name": "Rue des Lilas"}, &sim)
	require.Equal(t, http.StatusCreated, resp.StatusCode, "create simulation status code")
	simID := sim.ID.String()
	require.Len(t, simID, 10, "simulation ID should be a 10-char identifier")

	resp = doJSON(t, "PUT", "/v1/simulation/"+simID+"/purchase", token, map[string]interface{}{
		"net_seller_price": 100000,
		"agency_fee":       5000,
		"charged_to":       "buyer",
		"legal_fee":        1850,
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, "set purchase status code")

	resp = doJSON(t, "PUT", "/v1/simulation/"+simID+"/lots", token, map[string]interface{}{
		"lots": []map[string]interface{}{
			{"name": "Ground floor", "sale_price": 80000, "surface": 40, "weighting": 25},
			{"name": "First floor", "sale_price": 120000, "surface": 60, "weighting": 75},
		},
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, "set lots status code")

	resp = doJSON(t, "PUT", "/v1/simulation/"+simID+"/expenditures", token, map[string]interface{}{
		"expenditures": []map[string]interface{}{
			{"name": "Roofing", "tax_inclusive_price": 1200, "vat_rate": 20, "quantity": 2, "lots_index": []int{0, 1}},
		},
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, "set expenditures status code")

	resp = doJSON(t, "PUT", "/v1/simulation/"+simID+"/financing", token, map[string]interface{}{
		"down_payment":               12400,
		"interest_rate":              3,
		"loan_duration_months":       12,
		"commitment_rate":            1,
		"commitment_duration_months": 6,
		"mortgage_rate":              1,
		"filing_fee":                 500,
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, "set financing status code")

	return simID
}

// --- Tests ---

func TestIntegration_Ping(t *testing.T) {
	resp, err := http.Get(pingEndpoint)
	assert.NoError(t, err, "Request to %s should not fail", pingEndpoint)
	if err != nil {
		t.FailNow()
	}
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode, "Expected status code OK (200)")

	bodyBytes, err := io.ReadAll(resp.Body)
	assert.NoError(t, err, "Should be able to read response body")
	assert.Equal(t, "pong", string(bodyBytes), "Response body should be 'pong'")
}

func TestIntegration_SimulationRequiresSession(t *testing.T) {
	resp := doJSON(t, "POST", "/v1/simulation", "", map[string]string{"name": "No auth"}, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "Unauthenticated create should be rejected")
}

func TestIntegration_SimulationLifecycle(t *testing.T) {
	token := createSession(t)
	simID := setupWorkedExample(t, token)

	// Fetch the recomputed results and verify the worked example end to end.
	var results models.Results
	resp := doJSON(t, "GET", "/v1/simulation/"+simID+"/results", token, nil, &results)
	require.Equal(t, http.StatusOK, resp.StatusCode, "get results status code")

	assert.Equal(t, 110000.0, results.TotalPurchaseCost)
	assert.Equal(t, 200000.0, results.TotalSales)
	assert.Equal(t, 2400.0, results.TotalExpenditures)
	assert.Equal(t, 5000.0, results.TotalFinancingCost)
	assert.Equal(t, 117400.0, results.TotalCost)
	assert.Equal(t, 0.0, results.TotalVAT, "fully exempt lots should owe no net VAT")
	assert.Equal(t, 82600.0, results.Margin)
	assert.Equal(t, 41.3, results.Profitability)

	// Listing shows the simulation under this session only.
	var listBody struct {
		Data []models.Simulation `json:"data"`
	}
	resp = doJSON(t, "GET", "/v1/simulation", token, nil, &listBody)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	found := false
	for _, s := range listBody.Data {
		if s.ID.String() == simID {
			found = true
		}
	}
	assert.True(t, found, "created simulation should be listed for its session")

	otherToken := createSession(t)
	resp = doJSON(t, "GET", "/v1/simulation/"+simID, otherToken, nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "foreign session must not see the simulation")

	// Rename, then delete.
	resp = doJSON(t, "PUT", "/v1/simulation/"+simID+"/name", token, map[string]string{"name": "Rue des Lilas (v2)"}, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, "DELETE", "/v1/simulation/"+simID, token, nil, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, "GET", "/v1/simulation/"+simID, token, nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "deleted simulation should be gone")
}

func TestIntegration_ExportImportRoundTrip(t *testing.T) {
	token := createSession(t)
	simID := setupWorkedExample(t, token)

	var export models.SimulationExport
	resp := doJSON(t, "GET", "/v1/simulation/"+simID+"/export", token, nil, &export)
	require.Equal(t, http.StatusOK, resp.StatusCode, "export status code")
	require.Len(t, export.Lots, 2)
	assert.Equal(t, 117400.0, export.Results.TotalCost)

	// Tamper with the embedded results; import must recompute, not trust them.
	export.Results.Margin = 999999

	var imported models.Simulation
	resp = doJSON(t, "POST", "/v1/simulation/import", token, &export, &imported)
	require.Equal(t, http.StatusCreated, resp.StatusCode, "import status code")
	assert.NotEqual(t, simID, imported.ID.String(), "import must mint a fresh simulation")
	assert.Equal(t, 82600.0, imported.Results.Margin, "import must recompute tampered results")
}

func TestIntegration_ReportEmail(t *testing.T) {
	token := createSession(t)
	simID := setupWorkedExample(t, token)

	recipient := fmt.Sprintf("investor_%d@example.com", time.Now().UnixNano())
	resp := doJSON(t, "POST", "/v1/simulation/"+simID+"/report", token, map[string]string{"to": recipient}, nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode, "report enqueue status code")

	// The BG worker processes the task and the RedisSender captures the email.
	emailData := getEmailFromServiceAPI(t, "report", recipient)
	subject, _ := emailData["subject"].(string)
	assert.Contains(t, subject, "Profitability Report", "report email subject")
	body, _ := emailData["body"].(string)
	assert.Contains(t, body, "117400.00", "report email should contain the total cost")
	assert.Contains(t, body, "41.30%", "report email should contain the profitability")
}

func TestIntegration_AdminConfigUpdate(t *testing.T) {
	payload := map[string]interface{}{"key": "APP_NAME", "value": "RentSimulator", "public": true}
	raw, err := json.Marshal(payload)
	require.NoError(t, err)

	// Without the admin key the endpoint pretends not to exist.
	req, err := http.NewRequest("PUT", testAppURL+"/v1/admin/config", bytes.NewReader(raw))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode, "missing admin key should be rejected")

	// With the key, the update lands and shows up in the public config.
	req, err = http.NewRequest("PUT", testAppURL+"/v1/admin/config", bytes.NewReader(raw))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Admin-Key", testAdminAPIKey)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode, "admin config update status code")

	cfgResp, err := http.Get(testAppURL + "/v1/config")
	require.NoError(t, err)
	defer cfgResp.Body.Close()
	var publicCfg map[string]interface{}
	require.NoError(t, json.NewDecoder(cfgResp.Body).Decode(&publicCfg))
	assert.Equal(t, "RentSimulator", publicCfg["APP_NAME"])
}
