package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/courseforge/courseforge/pkg/auth"
	"github.com/courseforge/courseforge/pkg/llm"
	"github.com/courseforge/courseforge/pkg/models"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func waitForRows(t *testing.T, db *gorm.DB, want int64) []models.LLMCall {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		var count int64
		require.NoError(t, db.Model(&models.LLMCall{}).Count(&count).Error)
		if count >= want {
			var rows []models.LLMCall
			require.NoError(t, db.Find(&rows).Error)
			return rows
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("ledger rows did not appear, wanted %d", want)
	return nil
}

func sampleResponse() *llm.Response {
	tokensIn, tokensOut := 100, 50
	cost := 0.01
	return &llm.Response{
		Content:    "ok",
		Provider:   "gemini",
		ModelID:    "gemini-2.0-flash",
		TokensIn:   &tokensIn,
		TokensOut:  &tokensOut,
		LatencyMS:  321,
		CostUSD:    &cost,
		Action:     "course_structuring",
		Strategy:   "default",
		FinishedAt: time.Now().UTC(),
	}
}

func TestRecorder_WritesSuccessRow(t *testing.T) {
	db := testDB(t)
	recorder := NewRecorder(db)

	tenant := models.Tenant{ID: uuid.NewString(), Name: "acme", Active: true, CreatedAt: time.Now()}
	require.NoError(t, db.Create(&tenant).Error)

	ctx := auth.WithTenant(context.Background(), &auth.TenantContext{TenantID: tenant.ID})
	recorder.RecordFunc()(ctx, sampleResponse(), true, "")

	rows := waitForRows(t, db, 1)
	row := rows[0]
	require.NotNil(t, row.TenantID)
	assert.Equal(t, tenant.ID, *row.TenantID)
	assert.Equal(t, "course_structuring", row.Action)
	assert.Equal(t, "default", row.Strategy)
	assert.Equal(t, "gemini", row.Provider)
	assert.Equal(t, "gemini-2.0-flash", row.ModelID)
	assert.True(t, row.Success)
	assert.Nil(t, row.ErrorMessage)
	require.NotNil(t, row.TokensIn)
	assert.Equal(t, 100, *row.TokensIn)
	require.NotNil(t, row.CostUSD)
	assert.InDelta(t, 0.01, *row.CostUSD, 1e-9)
}

func TestRecorder_SystemCallHasNullTenant(t *testing.T) {
	db := testDB(t)
	recorder := NewRecorder(db)

	recorder.RecordFunc()(context.Background(), sampleResponse(), false, "vendor timeout")

	rows := waitForRows(t, db, 1)
	assert.Nil(t, rows[0].TenantID)
	assert.False(t, rows[0].Success)
	require.NotNil(t, rows[0].ErrorMessage)
	assert.Equal(t, "vendor timeout", *rows[0].ErrorMessage)
}

func TestRecorder_WriteFailureIsSwallowed(t *testing.T) {
	db := testDB(t)
	recorder := NewRecorder(db)

	// Drop the table so every write fails.
	require.NoError(t, db.Migrator().DropTable(&models.LLMCall{}))

	assert.NotPanics(t, func() {
		recorder.RecordFunc()(context.Background(), sampleResponse(), true, "")
		time.Sleep(50 * time.Millisecond)
	})
}

func TestNoop(t *testing.T) {
	assert.NotPanics(t, func() {
		Noop()(context.Background(), sampleResponse(), true, "")
	})
}
