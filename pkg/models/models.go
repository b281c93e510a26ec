// Package models defines the GORM persistence models. Every tenant-owned row
// carries a tenant_id that the tenant-scoped services filter on unconditionally.
package models

import (
	"time"
)

// Scope is an authorization bucket on an API key.
type Scope string

// Known scopes.
const (
	ScopePrep  Scope = "prep"
	ScopeCheck Scope = "check"
)

// MaterialStatus is the ingestion lifecycle of a source material.
type MaterialStatus string

// Material lifecycle states.
const (
	MaterialPending    MaterialStatus = "pending"
	MaterialProcessing MaterialStatus = "processing"
	MaterialReady      MaterialStatus = "ready"
	MaterialError      MaterialStatus = "error"
)

// Tenant is an isolated customer of the service.
type Tenant struct {
	ID        string    `gorm:"primaryKey"`
	Name      string    `gorm:"uniqueIndex;not null"`
	Active    bool      `gorm:"not null;default:true"`
	CreatedAt time.Time `gorm:"not null"`

	APIKeys []APIKey `gorm:"constraint:OnDelete:CASCADE"`
}

// APIKey authenticates a tenant. Only the SHA-256 hash of the plaintext is
// stored; the prefix is a non-secret identifier for operators.
type APIKey struct {
	ID             string     `gorm:"primaryKey"`
	TenantID       string     `gorm:"index;not null"`
	KeyHash        string     `gorm:"uniqueIndex;not null"`
	KeyPrefix      string     `gorm:"not null"`
	Label          string
	Scopes         []Scope    `gorm:"serializer:json;not null"`
	RateLimitPrep  int        `gorm:"not null"`
	RateLimitCheck int        `gorm:"not null"`
	Active         bool       `gorm:"not null;default:true"`
	ExpiresAt      *time.Time
	CreatedAt      time.Time `gorm:"not null"`
}

// Course is the tenant-owned root of a generated course.
type Course struct {
	ID          string    `gorm:"primaryKey"`
	TenantID    string    `gorm:"index;not null"`
	Title       string    `gorm:"not null"`
	Description string
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`

	Modules   []CourseModule   `gorm:"constraint:OnDelete:CASCADE"`
	Materials []SourceMaterial `gorm:"constraint:OnDelete:CASCADE"`
	Mappings  []SlideMapping   `gorm:"constraint:OnDelete:CASCADE"`
}

// CourseModule is one module of a course outline.
type CourseModule struct {
	ID       string `gorm:"primaryKey"`
	CourseID string `gorm:"index;not null"`
	Title    string `gorm:"not null"`
	Order    int    `gorm:"column:order_index;not null"`

	Lessons []Lesson `gorm:"foreignKey:ModuleID;constraint:OnDelete:CASCADE"`
}

// Lesson is one lesson within a module.
type Lesson struct {
	ID                 string  `gorm:"primaryKey"`
	ModuleID           string  `gorm:"index;not null"`
	Title              string  `gorm:"not null"`
	Order              int     `gorm:"column:order_index;not null"`
	VideoStartTimecode *string
	VideoEndTimecode   *string
	SlideRangeStart    *int
	SlideRangeEnd      *int

	Concepts  []Concept  `gorm:"foreignKey:LessonID;constraint:OnDelete:CASCADE"`
	Exercises []Exercise `gorm:"foreignKey:LessonID;constraint:OnDelete:CASCADE"`
}

// WebReference is a cited web source on a concept.
type WebReference struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Concept is one teachable concept within a lesson.
type Concept struct {
	ID              string         `gorm:"primaryKey" json:"id"`
	LessonID        string         `gorm:"index;not null" json:"-"`
	Title           string         `gorm:"not null" json:"title"`
	Definition      string         `json:"definition"`
	Examples        []string       `gorm:"serializer:json" json:"examples"`
	Timecodes       []string       `gorm:"serializer:json" json:"timecodes"`
	SlideReferences []int          `gorm:"serializer:json" json:"slide_references"`
	WebReferences   []WebReference `gorm:"serializer:json" json:"web_references"`
}

// Exercise is a practice task attached to a lesson.
type Exercise struct {
	ID                string  `gorm:"primaryKey" json:"id"`
	LessonID          string  `gorm:"index;not null" json:"-"`
	Description       string  `gorm:"not null" json:"description"`
	ReferenceSolution *string `json:"reference_solution,omitempty"`
	GradingCriteria   *string `json:"grading_criteria,omitempty"`
	DifficultyLevel   int     `gorm:"not null" json:"difficulty_level"`
}

// SourceMaterial is one uploaded or referenced course input and its
// ingestion state. The processed document is stored as JSON once ready.
type SourceMaterial struct {
	ID           string         `gorm:"primaryKey"`
	TenantID     string         `gorm:"index;not null"`
	CourseID     string         `gorm:"index;not null"`
	SourceType   string         `gorm:"not null"`
	SourceURL    string
	Title        string
	ObjectKey    string
	Status       MaterialStatus `gorm:"not null;default:pending"`
	ErrorMessage *string
	DocumentJSON string         `gorm:"type:text"`
	CreatedAt    time.Time      `gorm:"not null"`
	ProcessedAt  *time.Time
}

// SlideMapping links a slide number to a video timecode for one course.
type SlideMapping struct {
	ID            string `gorm:"primaryKey"`
	TenantID      string `gorm:"index;not null"`
	CourseID      string `gorm:"index;not null"`
	SlideNumber   int    `gorm:"not null"`
	VideoTimecode string `gorm:"not null"`
}

// StructureSnapshot is an idempotency record of one structure generation:
// the same fingerprint over the same ready material set returns the stored
// snapshot instead of a new LLM round-trip.
type StructureSnapshot struct {
	ID            string    `gorm:"primaryKey"`
	TenantID      string    `gorm:"index;not null"`
	CourseID      string    `gorm:"index:idx_snapshot_course_fp,unique;not null"`
	Fingerprint   string    `gorm:"index:idx_snapshot_course_fp,unique;not null"`
	StructureJSON string    `gorm:"type:text;not null"`
	CreatedAt     time.Time `gorm:"not null"`
}

// TableName fixes the table name. The composite unique index on
// (course_id, fingerprint) comes from the field tags above.
func (StructureSnapshot) TableName() string { return "structure_snapshots" }

// LLMCall is one ledger row per terminal model attempt. TenantID is nullable
// for system-initiated calls.
type LLMCall struct {
	ID           string  `gorm:"primaryKey"`
	TenantID     *string `gorm:"index:idx_llm_calls_tenant_created"`
	Action       string  `gorm:"not null"`
	Strategy     string  `gorm:"not null"`
	Provider     string  `gorm:"not null"`
	ModelID      string  `gorm:"not null"`
	TokensIn     *int
	TokensOut    *int
	LatencyMS    int64
	CostUSD      *float64
	Success      bool    `gorm:"not null"`
	ErrorMessage *string
	CreatedAt    time.Time `gorm:"index:idx_llm_calls_tenant_created;not null"`
}

// All returns every model for migration helpers and test databases.
func All() []any {
	return []any{
		&Tenant{}, &APIKey{},
		&Course{}, &CourseModule{}, &Lesson{}, &Concept{}, &Exercise{},
		&SourceMaterial{}, &SlideMapping{}, &StructureSnapshot{},
		&LLMCall{},
	}
}
