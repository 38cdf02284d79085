package document

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/kailas-cloud/structdex/internal/domain"
)

// compileSchema compiles a JSON Schema document.
func compileSchema(text string) (*gojsonschema.Schema, error) {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(text))
	if err != nil {
		return nil, fmt.Errorf("invalid json schema: %w: %w", domain.ErrInvalidSchema, err)
	}
	return s, nil
}

// validate checks a decoded document against s.
func validate(s *gojsonschema.Schema, doc any) error {
	result, err := s.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("schema validation: %w: %w", domain.ErrInvalidDocument, err)
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		msgs = append(msgs, desc.String())
	}
	return fmt.Errorf("%w: %s", domain.ErrInvalidDocument, strings.Join(msgs, "; "))
}
