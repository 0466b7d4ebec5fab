package billing

import (
	"bytes"
	_ "embed"

	"github.com/dmitrymomot/freightbill/pkg/catalog"
)

//go:embed plans.yaml
var defaultPlans []byte

// planSource returns the configured plans file, or the embedded catalog.
func planSource(path string) catalog.Source {
	if path != "" {
		return catalog.NewYAMLFileSource(path)
	}
	return catalog.NewYAMLSource(bytes.NewReader(defaultPlans))
}
