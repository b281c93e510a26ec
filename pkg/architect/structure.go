// Package architect prompts a routed model into producing a validated course
// structure from a merged course context.
package architect

import (
	"fmt"
	"sort"
)

// WebReference cites a web source backing a concept.
type WebReference struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Concept is one teachable concept inside a lesson.
type Concept struct {
	Title           string         `json:"title"`
	Definition      string         `json:"definition"`
	Examples        []string       `json:"examples"`
	Timecodes       []string       `json:"timecodes"`
	SlideReferences []int          `json:"slide_references"`
	WebReferences   []WebReference `json:"web_references"`
}

// Exercise is a practice task with difficulty 1 (easiest) to 5 (hardest).
type Exercise struct {
	Description       string  `json:"description"`
	ReferenceSolution *string `json:"reference_solution,omitempty"`
	GradingCriteria   *string `json:"grading_criteria,omitempty"`
	DifficultyLevel   int     `json:"difficulty_level"`
}

// SlideRange bounds the slides a lesson covers.
type SlideRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Lesson is one lesson inside a module.
type Lesson struct {
	Title              string      `json:"title"`
	Order              int         `json:"order"`
	VideoStartTimecode *string     `json:"video_start_timecode,omitempty"`
	VideoEndTimecode   *string     `json:"video_end_timecode,omitempty"`
	SlideRange         *SlideRange `json:"slide_range,omitempty"`
	Concepts           []Concept   `json:"concepts"`
	Exercises          []Exercise  `json:"exercises"`
}

// Module is one module of the course outline.
type Module struct {
	Title   string   `json:"title"`
	Order   int      `json:"order"`
	Lessons []Lesson `json:"lessons"`
}

// CourseStructure is the typed outline the architect returns. It is the
// structured-output target of the course_structuring action, so Validate
// runs before any caller sees the value.
type CourseStructure struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Modules     []Module `json:"modules"`
}

// Validate enforces the structural invariants: difficulty levels in [1,5]
// and dense zero-based ordering within each parent.
func (s *CourseStructure) Validate() error {
	moduleOrders := make([]int, 0, len(s.Modules))
	for mi, module := range s.Modules {
		moduleOrders = append(moduleOrders, module.Order)

		lessonOrders := make([]int, 0, len(module.Lessons))
		for li, lesson := range module.Lessons {
			lessonOrders = append(lessonOrders, lesson.Order)

			for ei, exercise := range lesson.Exercises {
				if exercise.DifficultyLevel < 1 || exercise.DifficultyLevel > 5 {
					return fmt.Errorf("module %d lesson %d exercise %d: difficulty_level %d outside [1,5]",
						mi, li, ei, exercise.DifficultyLevel)
				}
			}
		}
		if !isDense(lessonOrders) {
			return fmt.Errorf("module %d: lesson order fields are not a dense permutation of [0..%d)",
				mi, len(lessonOrders))
		}
	}
	if !isDense(moduleOrders) {
		return fmt.Errorf("module order fields are not a dense permutation of [0..%d)", len(moduleOrders))
	}
	return nil
}

// isDense reports whether orders form a permutation of [0..n).
func isDense(orders []int) bool {
	sorted := make([]int, len(orders))
	copy(sorted, orders)
	sort.Ints(sorted)
	for i, v := range sorted {
		if v != i {
			return false
		}
	}
	return true
}
