package architect

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/courseforge/courseforge/pkg/ingest"
)

// contextMarker is the placeholder the user template must carry exactly once.
const contextMarker = "{context}"

var (
	// ErrPromptPackNotFound is returned when the prompt pack file is missing.
	ErrPromptPackNotFound = errors.New("prompt pack not found")

	// ErrPromptPackInvalid is returned for a pack missing required keys or
	// the context marker.
	ErrPromptPackInvalid = errors.New("invalid prompt pack")
)

// promptPack mirrors the versioned YAML prompt file on disk.
type promptPack struct {
	Version            string `yaml:"version"`
	SystemPrompt       string `yaml:"system_prompt"`
	UserPromptTemplate string `yaml:"user_prompt_template"`
}

// PreparedPrompt is the fully substituted prompt pair handed to the router.
type PreparedPrompt struct {
	SystemPrompt  string
	UserPrompt    string
	PromptVersion string
}

// loadPromptPack reads and checks the pack file.
func loadPromptPack(path string) (*promptPack, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrPromptPackNotFound, path)
		}
		return nil, err
	}

	var pack promptPack
	if err := yaml.Unmarshal(data, &pack); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPromptPackInvalid, err)
	}

	var missing []string
	if pack.Version == "" {
		missing = append(missing, "version")
	}
	if pack.SystemPrompt == "" {
		missing = append(missing, "system_prompt")
	}
	if pack.UserPromptTemplate == "" {
		missing = append(missing, "user_prompt_template")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing keys: %s", ErrPromptPackInvalid, strings.Join(missing, ", "))
	}
	if strings.Count(pack.UserPromptTemplate, contextMarker) != 1 {
		return nil, fmt.Errorf("%w: user_prompt_template must contain exactly one %s marker",
			ErrPromptPackInvalid, contextMarker)
	}
	return &pack, nil
}

// PreparePrompts loads the pack and substitutes the serialized course
// context into the user template.
func PreparePrompts(promptPath string, courseCtx *ingest.CourseContext) (*PreparedPrompt, error) {
	pack, err := loadPromptPack(promptPath)
	if err != nil {
		return nil, err
	}

	serialized, err := json.Marshal(courseCtx)
	if err != nil {
		return nil, fmt.Errorf("serializing course context: %w", err)
	}

	return &PreparedPrompt{
		SystemPrompt:  pack.SystemPrompt,
		UserPrompt:    strings.Replace(pack.UserPromptTemplate, contextMarker, string(serialized), 1),
		PromptVersion: pack.Version,
	}, nil
}
