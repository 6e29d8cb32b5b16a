package service

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/noah-isme/unireg-api/internal/dto"
	appErrors "github.com/noah-isme/unireg-api/pkg/errors"
)

// DecodeCatalog reads a YAML course catalog. Unknown keys are rejected so typos surface early.
func DecodeCatalog(r io.Reader) (dto.CourseCatalog, error) {
	var catalog dto.CourseCatalog
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&catalog); err != nil {
		if errors.Is(err, io.EOF) {
			return catalog, appErrors.Clone(appErrors.ErrValidation, "course catalog is empty")
		}
		return catalog, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, fmt.Sprintf("invalid catalog yaml: %v", err))
	}
	return catalog, nil
}
