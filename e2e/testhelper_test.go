package e2e

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/pixelpress/api/internal/client"
	"github.com/pixelpress/api/internal/config"
	"github.com/pixelpress/api/internal/handler"
	"github.com/pixelpress/api/internal/middleware"
	"github.com/pixelpress/api/internal/registry"
	"github.com/pixelpress/api/internal/scheduler"
	"github.com/pixelpress/api/internal/service"
	"github.com/pixelpress/api/internal/settings"
)

// testApp holds all components needed for testing
type testApp struct {
	app   *fiber.App
	sched *scheduler.Scheduler
}

// setupApp creates a Fiber app identical to main.go but with an unconfigured
// compression client, so every job settles through the mock compressor. The
// rate limiter is failure-open, so these tests do not need a running Redis.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	// Redis (localhost — optional; limiter degrades gracefully without it)
	redisClient := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // use DB 15 for tests to avoid collision
	})

	validate := validator.New()

	// Unconfigured → mock compressor
	compressClient := client.NewCompressClient(&config.CompressorConfig{Timeout: 5})

	reg := registry.New()
	settingsStore := settings.NewStore()
	sched := scheduler.New(reg, settingsStore, compressClient, nil, 3)

	jobService := service.NewJobService(reg, sched)
	jobHandler := handler.NewJobHandler(jobService, sched)
	downloadHandler := handler.NewDownloadHandler(jobService)
	settingsHandler := handler.NewSettingsHandler(settingsStore, validate)

	rateLimiter := middleware.NewRateLimiter(redisClient)

	app := fiber.New(fiber.Config{
		BodyLimit: 50 * 1024 * 1024,
	})

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"timestamp": time.Now().Unix()})
	})
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"queue": fiber.Map{
				"maxConcurrent": sched.MaxConcurrent(),
				"active":        sched.ActiveCount(),
				"pending":       sched.PendingCount(),
				"paused":        sched.IsPaused(),
			},
			"services": fiber.Map{
				"compressor": compressClient.IsConfigured(),
				"redis":      false,
			},
		})
	})

	api := app.Group("/api")

	// Use very high rate limits so tests don't get blocked
	jobs := api.Group("/jobs")
	jobs.Post("/", rateLimiter.EnqueueLimit(10000), jobHandler.Enqueue)
	jobs.Get("/", jobHandler.List)
	jobs.Delete("/", jobHandler.Clear)
	jobs.Get("/progress", jobHandler.Progress)
	jobs.Get("/download", downloadHandler.All)
	jobs.Get("/:jobId", jobHandler.Get)
	jobs.Delete("/:jobId", jobHandler.Remove)
	jobs.Post("/:jobId/cancel", jobHandler.Cancel)
	jobs.Post("/:jobId/rerun", jobHandler.Rerun)
	jobs.Get("/:jobId/download", downloadHandler.One)

	queue := api.Group("/queue")
	queue.Post("/pause", jobHandler.Pause)
	queue.Post("/resume", jobHandler.Resume)

	settingsGroup := api.Group("/settings")
	settingsGroup.Get("/", settingsHandler.Get)
	settingsGroup.Put("/", rateLimiter.SettingsLimit(10000), settingsHandler.Update)
	settingsGroup.Post("/preset/web", rateLimiter.SettingsLimit(10000), settingsHandler.WebPreset)

	return &testApp{app: app, sched: sched}
}

// createMultipartJobsRequest builds a multipart/form-data request with one
// fake image part per (filename, contentType) pair, each sized 1 KiB.
func createMultipartJobsRequest(t *testing.T, files map[string]string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	for name, contentType := range files {
		partHeader := make(textproto.MIMEHeader)
		partHeader.Set("Content-Disposition", `form-data; name="files"; filename="`+name+`"`)
		partHeader.Set("Content-Type", contentType)
		part, err := writer.CreatePart(partHeader)
		if err != nil {
			t.Fatalf("failed to create form file: %v", err)
		}
		// Fake JPEG magic bytes + padding
		_, _ = part.Write([]byte{0xFF, 0xD8, 0xFF, 0xE0})
		_, _ = part.Write(make([]byte, 1020))
	}

	writer.Close()

	req, err := http.NewRequest(http.MethodPost, "/api/jobs", &buf)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

// enqueueOne submits a single valid image and returns its job ID
func enqueueOne(t *testing.T, ta *testApp, name string) string {
	t.Helper()

	req := createMultipartJobsRequest(t, map[string]string{name: "image/jpeg"})
	resp, err := ta.app.Test(req, -1)
	if err != nil {
		t.Fatalf("enqueue request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusCreated)

	result := parseJSON(t, resp)
	jobs, ok := result["jobs"].([]interface{})
	if !ok || len(jobs) != 1 {
		t.Fatalf("expected 1 job in response, got %v", result["jobs"])
	}
	job := jobs[0].(map[string]interface{})
	id, _ := job["id"].(string)
	if id == "" {
		t.Fatal("job ID missing in enqueue response")
	}
	return id
}

// waitForJobStatus polls one job until it reaches the given status
func waitForJobStatus(t *testing.T, ta *testApp, id, status string) map[string]interface{} {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	var last map[string]interface{}
	for time.Now().Before(deadline) {
		resp, err := doRequest(ta.app, http.MethodGet, "/api/jobs/"+id, "")
		if err != nil {
			t.Fatalf("get job failed: %v", err)
		}
		last = parseJSON(t, resp)
		if last["status"] == status {
			return last
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s never reached %s (last: %v)", id, status, last)
	return nil
}

// doRequest is a helper to perform HTTP requests against the test app.
func doRequest(app *fiber.App, method, path, body string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, path, bodyReader)
	if err != nil {
		return nil, err
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	return app.Test(req, -1)
}

// readBody reads and returns the response body as bytes.
func readBody(t *testing.T, resp *http.Response) []byte {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return b
}

// parseJSON parses response body into a map.
func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result map[string]interface{}
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, body)
	}
	return result
}

// assertStatus checks the HTTP status code.
func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

// errorCode extracts the error.code field of the response envelope
func errorCode(t *testing.T, result map[string]interface{}) string {
	t.Helper()
	errObj, ok := result["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("no error object in response: %v", result)
	}
	code, _ := errObj["code"].(string)
	return code
}
