// Package samples captures labelled image sets for tuning vision pipelines:
// a run sweeps the exposure over a fixed number of captures, writes each
// frame to disk and records its metadata in a catalog.
package samples

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/teslashibe/go-stdvis/pkg/vision"
)

// ErrTemplateCreated is returned by LoadParams after it wrote a template to
// an empty or missing params file.
var ErrTemplateCreated = errors.New("samples: params template created, edit it and run again")

// Params are the inputs of a sampling run.
type Params struct {
	Label  string              `json:"label"`
	Target vision.VisionTarget `json:"target"`
	Camera vision.CameraConfig `json:"camera"`
}

// Validate checks the params and returns a list of problems, or nil.
func (p *Params) Validate() []string {
	var problems []string

	if p.Label == "" {
		problems = append(problems, "label must not be empty")
	} else if strings.ContainsAny(p.Label, `/\`) {
		problems = append(problems, "label must not contain path separators")
	}
	if err := p.Target.Validate(); err != nil {
		problems = append(problems, "target: "+err.Error())
	}
	for _, msg := range p.Camera.Validate() {
		problems = append(problems, "camera: "+msg)
	}

	return problems
}

// LoadParams reads a params file. A missing or empty file is replaced by a
// template and ErrTemplateCreated is returned.
func LoadParams(path string) (*Params, error) {
	b, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	if len(bytes.TrimSpace(b)) == 0 {
		tmpl, err := json.MarshalIndent(&Params{}, "", "  ")
		if err != nil {
			return nil, err
		}
		if err := os.WriteFile(path, append(tmpl, '\n'), 0o644); err != nil {
			return nil, fmt.Errorf("write params template: %w", err)
		}
		return nil, fmt.Errorf("%w: %s", ErrTemplateCreated, path)
	}

	var p Params
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("%s: malformed or out of date params, delete it to get a new template: %w", path, err)
	}
	return &p, nil
}
