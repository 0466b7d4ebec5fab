package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"
)

type inMemSource struct {
	mu    sync.RWMutex
	plans []Plan
}

// NewInMemSource returns a Source holding a copy of the given plans.
// Panics if no plans are provided so a catalog never starts empty.
func NewInMemSource(plans ...Plan) Source {
	if len(plans) < 1 {
		panic("catalog: at least one plan is required")
	}
	return &inMemSource{plans: slices.Clone(plans)}
}

func (s *inMemSource) Load(ctx context.Context) ([]Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.plans), nil
}

// yamlDocument is the on-disk layout of a plans file.
type yamlDocument struct {
	Plans []Plan `yaml:"plans"`
}

type yamlSource struct {
	read func() (io.ReadCloser, error)
}

// NewYAMLSource reads plans from a YAML document of the form:
//
//	plans:
//	  - id: starter
//	    name: Starter
//	    price_monthly: 45000
//	    currency: COP
//	    active: true
func NewYAMLSource(r io.Reader) Source {
	return &yamlSource{read: func() (io.ReadCloser, error) { return io.NopCloser(r), nil }}
}

// NewYAMLFileSource reads plans from a YAML file on every Load.
func NewYAMLFileSource(path string) Source {
	return &yamlSource{read: func() (io.ReadCloser, error) { return os.Open(path) }}
}

func (s *yamlSource) Load(ctx context.Context) ([]Plan, error) {
	rc, err := s.read()
	if err != nil {
		return nil, fmt.Errorf("open plans document: %w", err)
	}
	defer rc.Close()

	var doc yamlDocument
	dec := yaml.NewDecoder(rc)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNoPlans
		}
		return nil, fmt.Errorf("decode plans document: %w", err)
	}
	return doc.Plans, nil
}
