// Package config describes editing jobs for the command-line tool: which
// pages to draw on, what to draw, and whether to prepare a signature
// placeholder.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Common errors
var (
	ErrConfigurationError   = errors.New("configuration error")
	ErrMissingRequiredField = errors.New("missing required field")
)

// ConfigError represents a configuration error with field context.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config error in '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("config error: %s", e.Message)
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{Field: field, Message: message}
}

// RGB is a colour with components in [0, 1].
type RGB struct {
	R float64 `yaml:"r"`
	G float64 `yaml:"g"`
	B float64 `yaml:"b"`
}

// TextOp draws a string on a page.
type TextOp struct {
	Text  string  `yaml:"text"`
	X     float64 `yaml:"x"`
	Y     float64 `yaml:"y"`
	Size  float64 `yaml:"size,omitempty"`
	Color *RGB    `yaml:"color,omitempty"`
}

// RectangleOp draws a rectangle on a page.
type RectangleOp struct {
	X           float64 `yaml:"x"`
	Y           float64 `yaml:"y"`
	Width       float64 `yaml:"width"`
	Height      float64 `yaml:"height"`
	Fill        *RGB    `yaml:"fill,omitempty"`
	Stroke      *RGB    `yaml:"stroke,omitempty"`
	StrokeWidth float64 `yaml:"stroke-width,omitempty"`
}

// ImageOp places a PNG file on a page.
type ImageOp struct {
	File   string  `yaml:"file"`
	X      float64 `yaml:"x"`
	Y      float64 `yaml:"y"`
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

// PageOps groups the operations for one page.
type PageOps struct {
	// Index is the zero-based page index.
	Index int `yaml:"index"`

	Text       []TextOp      `yaml:"text,omitempty"`
	Rectangles []RectangleOp `yaml:"rectangles,omitempty"`
	Images     []ImageOp     `yaml:"images,omitempty"`
}

// PlaceholderConfig configures the signature placeholder.
type PlaceholderConfig struct {
	Reason          string `yaml:"reason,omitempty"`
	Name            string `yaml:"name,omitempty"`
	Location        string `yaml:"location,omitempty"`
	ContactInfo     string `yaml:"contact-info,omitempty"`
	SignatureLength int    `yaml:"signature-length,omitempty"`
	DocMDP          int    `yaml:"docmdp,omitempty"`
	Page            int    `yaml:"page,omitempty"`
}

// Job is the top-level description of one editing run.
type Job struct {
	Pages       []PageOps          `yaml:"pages,omitempty"`
	Placeholder *PlaceholderConfig `yaml:"placeholder,omitempty"`
}

// Load reads and validates a job description from a YAML file.
func Load(path string) (*Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigurationError, err)
	}

	var job Job
	if err := yaml.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigurationError, err)
	}

	if err := job.Validate(); err != nil {
		return nil, err
	}
	return &job, nil
}

// Validate checks the job for fields that would fail at run time.
func (j *Job) Validate() error {
	for i, page := range j.Pages {
		if page.Index < 0 {
			return NewConfigError(fmt.Sprintf("pages[%d].index", i), "page index must not be negative")
		}
		for k, op := range page.Text {
			if op.Text == "" {
				return NewConfigError(fmt.Sprintf("pages[%d].text[%d].text", i, k), "required field is missing")
			}
		}
		for k, op := range page.Images {
			if op.File == "" {
				return NewConfigError(fmt.Sprintf("pages[%d].images[%d].file", i, k), "required field is missing")
			}
			if op.Width <= 0 || op.Height <= 0 {
				return NewConfigError(fmt.Sprintf("pages[%d].images[%d]", i, k), "width and height must be positive")
			}
		}
		for k, op := range page.Rectangles {
			if op.Width <= 0 || op.Height <= 0 {
				return NewConfigError(fmt.Sprintf("pages[%d].rectangles[%d]", i, k), "width and height must be positive")
			}
		}
	}

	if p := j.Placeholder; p != nil {
		if p.SignatureLength < 0 {
			return NewConfigError("placeholder.signature-length", "must not be negative")
		}
		if p.DocMDP < 0 || p.DocMDP > 3 {
			return NewConfigError("placeholder.docmdp", "must be 1, 2 or 3")
		}
		if p.Page < 0 {
			return NewConfigError("placeholder.page", "page index must not be negative")
		}
	}

	return nil
}
