// Package scenario reads the YAML document describing a map, its accounts,
// the published offers and the initial trip requests.
package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/example/transpool/internal/models"
)

var ErrInvalidScenario = errors.New("scenario: invalid document")

var validate = validator.New()

// Validate checks the struct tags of any descriptor.
func Validate(v any) error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidScenario, err)
	}
	return nil
}

func Load(path string) (models.Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.Scenario{}, fmt.Errorf("scenario: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a document and rejects unknown keys so a typo in a field
// name does not silently drop data.
func Parse(data []byte) (models.Scenario, error) {
	var sc models.Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&sc); err != nil && !errors.Is(err, io.EOF) {
		return models.Scenario{}, fmt.Errorf("%w: %v", ErrInvalidScenario, err)
	}
	if err := Validate(sc); err != nil {
		return models.Scenario{}, err
	}
	return sc, nil
}
