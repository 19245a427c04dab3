package schema

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/BTreeMap/RegFlow/internal/models"
)

// Parse decodes a JSON questionnaire and validates it. Unknown fields are rejected so
// typos in rule or validator keys surface at load time.
func Parse(r io.Reader) (models.Schema, error) {
	var s models.Schema
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&s); err != nil {
		return models.Schema{}, fmt.Errorf("decode schema: %w", err)
	}
	if err := s.Validate(); err != nil {
		return models.Schema{}, err
	}
	return s, nil
}

// LoadFile reads a questionnaire from path.
func LoadFile(path string) (models.Schema, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.Schema{}, fmt.Errorf("open schema file: %w", err)
	}
	defer f.Close()

	s, err := Parse(f)
	if err != nil {
		slog.Error("schema.LoadFile: invalid schema", "path", path, "error", err)
		return models.Schema{}, fmt.Errorf("load schema %s: %w", path, err)
	}
	slog.Info("schema.LoadFile: loaded schema", "path", path, "questions", len(s.Questions))
	return s, nil
}

// Load returns the questionnaire at path, or the built-in one when path is empty.
func Load(path string) (models.Schema, error) {
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}
