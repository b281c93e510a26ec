package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/courseforge/courseforge/pkg/architect"
	"github.com/courseforge/courseforge/pkg/auth"
	"github.com/courseforge/courseforge/pkg/catalog"
	"github.com/courseforge/courseforge/pkg/config"
	"github.com/courseforge/courseforge/pkg/database"
	"github.com/courseforge/courseforge/pkg/ingest"
	"github.com/courseforge/courseforge/pkg/llm"
	"github.com/courseforge/courseforge/pkg/models"
	"github.com/courseforge/courseforge/pkg/ratelimit"
)

const testCatalog = `
models:
  stub-model:
    provider: stub
    capabilities: [structured_output, long_context]
    max_context: 100000
    cost_per_1k: {input: 0.001, output: 0.002}
actions:
  course_structuring:
    description: generate outline
    requires: [structured_output]
  slide_analysis:
    description: describe slide
    requires: []
routing:
  course_structuring:
    default: [stub-model]
  slide_analysis:
    default: [stub-model]
`

// gatedProvider returns a fixed structure; an optional gate blocks the call
// until released, for overlap tests.
type gatedProvider struct {
	payload string
	gate    chan struct{}
}

func (p *gatedProvider) Name() string    { return "stub" }
func (p *gatedProvider) Enabled() bool   { return true }
func (p *gatedProvider) SetEnabled(bool) {}

func (p *gatedProvider) Complete(ctx context.Context, _ string, _ llm.Request) (*llm.Response, error) {
	if p.gate != nil {
		select {
		case <-p.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return &llm.Response{Content: p.payload}, nil
}

func (p *gatedProvider) CompleteStructured(ctx context.Context, modelID string, req llm.Request, out any) (*llm.Response, error) {
	resp, err := p.Complete(ctx, modelID, req)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(p.payload), out); err != nil {
		return nil, err
	}
	return resp, nil
}

type testRig struct {
	server   *Server
	db       *gorm.DB
	provider *gatedProvider
}

func structurePayload(t *testing.T) string {
	t.Helper()
	payload, err := json.Marshal(&architect.CourseStructure{
		Title: "Generated",
		Modules: []architect.Module{{
			Title: "M0", Order: 0,
			Lessons: []architect.Lesson{{
				Title: "L0", Order: 0,
				Exercises: []architect.Exercise{{Description: "do it", DifficultyLevel: 1}},
			}},
		}},
	})
	require.NoError(t, err)
	return string(payload)
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gdb, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(models.All()...))
	sqlDB, err := gdb.DB()
	require.NoError(t, err)

	registry, err := catalog.Parse([]byte(testCatalog))
	require.NoError(t, err)

	provider := &gatedProvider{payload: structurePayload(t)}
	router := llm.NewRouter(registry, map[string]llm.Provider{"stub": provider}, llm.WithRetryWait(0))

	promptPath := filepath.Join(t.TempDir(), "v1.yaml")
	writeTestPromptPack(t, promptPath)
	agent := architect.NewAgent(router, architect.WithPromptPath(promptPath))

	cfg := &config.Config{
		Environment: config.EnvTesting,
		PromptPath:  promptPath,
		CORS:        config.CORSConfig{AllowedOrigins: []string{"*"}},
	}

	limiter := ratelimit.NewSlidingWindow(0)
	t.Cleanup(limiter.Stop)

	dbClient := database.NewClientFromGorm(gdb, sqlDB)
	server := NewServer(cfg, registry, dbClient, nil, auth.NewService(gdb), limiter, agent, router, nil)

	return &testRig{server: server, db: gdb, provider: provider}
}

func writeTestPromptPack(t *testing.T, path string) {
	t.Helper()
	content := "version: \"1\"\nsystem_prompt: architect\nuser_prompt_template: \"context: {context}\"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func (r *testRig) seedTenant(t *testing.T, name string, scopes []models.Scope, limits ...int) (models.Tenant, string) {
	t.Helper()
	plaintext, err := auth.GenerateKey(config.EnvTesting)
	require.NoError(t, err)
	keyHash, keyPrefix := auth.KeyParts(plaintext)

	ratePrep, rateCheck := 100, 100
	if len(limits) == 2 {
		ratePrep, rateCheck = limits[0], limits[1]
	}

	tenant := models.Tenant{ID: uuid.NewString(), Name: name, Active: true, CreatedAt: time.Now()}
	require.NoError(t, r.db.Create(&tenant).Error)
	key := models.APIKey{
		ID:             uuid.NewString(),
		TenantID:       tenant.ID,
		KeyHash:        keyHash,
		KeyPrefix:      keyPrefix,
		Scopes:         scopes,
		RateLimitPrep:  ratePrep,
		RateLimitCheck: rateCheck,
		Active:         true,
		CreatedAt:      time.Now(),
	}
	require.NoError(t, r.db.Create(&key).Error)
	return tenant, plaintext
}

func (r *testRig) do(method, path, key string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set(auth.HeaderName, key)
	}
	w := httptest.NewRecorder()
	r.server.Handler().ServeHTTP(w, req)
	return w
}

func (r *testRig) createCourse(t *testing.T, key string) string {
	t.Helper()
	w := r.do(http.MethodPost, "/api/v1/courses", key, createCourseRequest{Title: "Course"})
	require.Equal(t, http.StatusCreated, w.Code)
	var resp courseResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.ID
}

func (r *testRig) seedReadyMaterial(t *testing.T, tenantID, courseID string) string {
	t.Helper()
	doc := ingest.Document{
		SourceType: ingest.SourceText,
		SourceURL:  "notes.md",
		Chunks:     []ingest.Chunk{{Type: ingest.ChunkParagraph, Text: "content"}},
	}
	payload, _ := json.Marshal(doc)
	material := models.SourceMaterial{
		ID:           uuid.NewString(),
		TenantID:     tenantID,
		CourseID:     courseID,
		SourceType:   string(ingest.SourceText),
		Status:       models.MaterialReady,
		DocumentJSON: string(payload),
		CreatedAt:    time.Now(),
	}
	require.NoError(t, r.db.Create(&material).Error)
	return material.ID
}

func TestAPI_HealthBypassesAuth(t *testing.T) {
	rig := newTestRig(t)
	w := rig.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"db"`)
}

func TestAPI_MissingKeyIs401(t *testing.T) {
	rig := newTestRig(t)
	w := rig.do(http.MethodPost, "/api/v1/courses", "", createCourseRequest{Title: "X"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "detail")
}

func TestAPI_CheckScopeCannotCreateCourses(t *testing.T) {
	rig := newTestRig(t)
	_, key := rig.seedTenant(t, "reader", []models.Scope{models.ScopeCheck})

	w := rig.do(http.MethodPost, "/api/v1/courses", key, createCourseRequest{Title: "X"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAPI_CreateAndFetchCourse(t *testing.T) {
	rig := newTestRig(t)
	_, key := rig.seedTenant(t, "acme", []models.Scope{models.ScopePrep, models.ScopeCheck})

	courseID := rig.createCourse(t, key)
	w := rig.do(http.MethodGet, "/api/v1/courses/"+courseID, key, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), courseID)
}

func TestAPI_ForeignTenantCourseIs404(t *testing.T) {
	rig := newTestRig(t)
	_, ownerKey := rig.seedTenant(t, "owner", []models.Scope{models.ScopePrep, models.ScopeCheck})
	_, intruderKey := rig.seedTenant(t, "intruder", []models.Scope{models.ScopePrep, models.ScopeCheck})

	courseID := rig.createCourse(t, ownerKey)

	w := rig.do(http.MethodGet, "/api/v1/courses/"+courseID, intruderKey, nil)
	// Not-found, not forbidden: existence must not leak.
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAPI_RateLimitExhaustionIs429(t *testing.T) {
	rig := newTestRig(t)
	_, key := rig.seedTenant(t, "limited", []models.Scope{models.ScopePrep}, 2, 2)

	for i := 0; i < 2; i++ {
		w := rig.do(http.MethodPost, "/api/v1/courses", key, createCourseRequest{Title: fmt.Sprintf("c%d", i)})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := rig.do(http.MethodPost, "/api/v1/courses", key, createCourseRequest{Title: "over"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	retryAfter := w.Header().Get("Retry-After")
	require.NotEmpty(t, retryAfter)
	assert.NotEqual(t, "0", retryAfter)
}

func TestAPI_SlideMappingStatuses(t *testing.T) {
	rig := newTestRig(t)
	_, key := rig.seedTenant(t, "acme", []models.Scope{models.ScopePrep})
	courseID := rig.createCourse(t, key)

	t.Run("all valid is 201", func(t *testing.T) {
		w := rig.do(http.MethodPost, "/api/v1/courses/"+courseID+"/slide-mapping", key, slideMappingRequest{
			Mappings: []slideMappingEntry{{SlideNumber: 1, VideoTimecode: "00:10:00"}},
		})
		assert.Equal(t, http.StatusCreated, w.Code)
	})

	t.Run("mixed is 207", func(t *testing.T) {
		w := rig.do(http.MethodPost, "/api/v1/courses/"+courseID+"/slide-mapping", key, slideMappingRequest{
			Mappings: []slideMappingEntry{
				{SlideNumber: 1, VideoTimecode: "00:10:00"},
				{SlideNumber: -1, VideoTimecode: "00:11:00"},
			},
		})
		assert.Equal(t, http.StatusMultiStatus, w.Code)
	})

	t.Run("all invalid is 422", func(t *testing.T) {
		w := rig.do(http.MethodPost, "/api/v1/courses/"+courseID+"/slide-mapping", key, slideMappingRequest{
			Mappings: []slideMappingEntry{{SlideNumber: 0, VideoTimecode: "bad"}},
		})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})
}

func TestAPI_GenerateWithoutMaterialIs422(t *testing.T) {
	rig := newTestRig(t)
	_, key := rig.seedTenant(t, "acme", []models.Scope{models.ScopePrep})
	courseID := rig.createCourse(t, key)

	w := rig.do(http.MethodPost, "/api/v1/courses/"+courseID+"/structure/generate", key, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestAPI_GenerateLifecycle(t *testing.T) {
	rig := newTestRig(t)
	tenant, key := rig.seedTenant(t, "acme", []models.Scope{models.ScopePrep, models.ScopeCheck})
	courseID := rig.createCourse(t, key)
	rig.seedReadyMaterial(t, tenant.ID, courseID)

	// First call queues a background run.
	w := rig.do(http.MethodPost, "/api/v1/courses/"+courseID+"/structure/generate", key, nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	var queued generateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &queued))
	assert.Equal(t, "queued", queued.Status)
	require.NotEmpty(t, queued.Fingerprint)

	// Wait for the background run to land the snapshot.
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		var count int64
		require.NoError(t, rig.db.Model(&models.StructureSnapshot{}).Count(&count).Error)
		if count > 0 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	// Same inputs: the stored snapshot is returned without a new model call.
	w = rig.do(http.MethodPost, "/api/v1/courses/"+courseID+"/structure/generate", key, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var cached generateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cached))
	assert.Equal(t, "complete", cached.Status)
	assert.Equal(t, queued.Fingerprint, cached.Fingerprint)
	assert.NotEmpty(t, cached.SnapshotID)

	// The generated structure was persisted on the course.
	w = rig.do(http.MethodGet, "/api/v1/courses/"+courseID, key, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Generated")
}

func TestAPI_GenerateOverlapIs409(t *testing.T) {
	rig := newTestRig(t)
	rig.provider.gate = make(chan struct{})
	tenant, key := rig.seedTenant(t, "acme", []models.Scope{models.ScopePrep})
	courseID := rig.createCourse(t, key)
	rig.seedReadyMaterial(t, tenant.ID, courseID)

	w := rig.do(http.MethodPost, "/api/v1/courses/"+courseID+"/structure/generate", key, nil)
	require.Equal(t, http.StatusAccepted, w.Code)

	// Second request while the first is still running.
	w = rig.do(http.MethodPost, "/api/v1/courses/"+courseID+"/structure/generate", key, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	// Let the background run drain before the test database goes away.
	close(rig.provider.gate)
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		rig.server.genMu.Lock()
		busy := len(rig.server.inFlight) > 0
		rig.server.genMu.Unlock()
		if !busy {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestAPI_CostReport(t *testing.T) {
	rig := newTestRig(t)
	tenant, key := rig.seedTenant(t, "acme", []models.Scope{models.ScopeCheck})

	cost := 0.42
	call := models.LLMCall{
		ID:        uuid.NewString(),
		TenantID:  &tenant.ID,
		Action:    "course_structuring",
		Strategy:  "default",
		Provider:  "stub",
		ModelID:   "stub-model",
		CostUSD:   &cost,
		Success:   true,
		CreatedAt: time.Now(),
	}
	require.NoError(t, rig.db.Create(&call).Error)

	w := rig.do(http.MethodGet, "/api/v1/reports/cost", key, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "course_structuring")
	assert.Contains(t, w.Body.String(), "0.42")
}

func TestAPI_MaterialURLEnqueue(t *testing.T) {
	rig := newTestRig(t)
	_, key := rig.seedTenant(t, "acme", []models.Scope{models.ScopePrep})
	courseID := rig.createCourse(t, key)

	w := rig.do(http.MethodPost, "/api/v1/courses/"+courseID+"/materials", key, addMaterialRequest{
		SourceType: "web",
		SourceURL:  "https://example.com/article",
	})
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Contains(t, w.Body.String(), `"pending"`)
}
