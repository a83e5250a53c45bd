package schema

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/fieldforms/pkg/types"
)

// PublishRequest carries the form metadata entered alongside the builder.
type PublishRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	FieldID     string `json:"field_id"`
	OwnerID     string `json:"owner_id"`
}

// FieldExists reports whether a field tree node with the given ID exists.
type FieldExists func(fieldID string) bool

// Validate checks the whole builder state against req and returns every
// problem found, or nil. exists may be nil, in which case only a non-empty
// field ID is required.
func (b *Builder) Validate(req PublishRequest, exists FieldExists) *types.ValidationError {
	verr := &types.ValidationError{}

	if strings.TrimSpace(req.Name) == "" {
		verr.Add("Form name is required")
	}
	switch {
	case strings.TrimSpace(req.FieldID) == "":
		verr.Add("Please select a field for this form")
	case exists != nil && !exists(req.FieldID):
		verr.Add("Field %s does not exist", req.FieldID)
	}
	if len(b.fields) == 0 {
		verr.Add("Add at least one form field")
	}

	seen := make(map[string]bool, len(b.fields))
	var unlabeled, noOptions int
	for i, d := range b.fields {
		switch id := strings.TrimSpace(d.ID); {
		case id == "":
			verr.Add("Field %d has no ID", i+1)
		case seen[id]:
			verr.Add("Field ID %q is used more than once", id)
		default:
			seen[id] = true
		}
		if !d.Type.IsSection() && strings.TrimSpace(d.Label) == "" {
			unlabeled++
		}
		if d.Type.IsChoice() && len(nonBlank(d.Options)) == 0 {
			noOptions++
		}
		if d.Type == types.FieldNumber && d.Min != nil && d.Max != nil && *d.Min > *d.Max {
			verr.Add("Field %q has min greater than max", d.Label)
		}
		if d.Type == types.FieldRating && d.Max != nil && (*d.Max < 1 || *d.Max > types.RatingMaxLimit) {
			verr.Add("Field %q rating max must be between 1 and %d", d.Label, types.RatingMaxLimit)
		}
	}
	if unlabeled > 0 {
		verr.Add("%d field(s) missing labels", unlabeled)
	}
	if noOptions > 0 {
		verr.Add("%d dropdown/radio field(s) missing options", noOptions)
	}

	if verr.Empty() {
		return nil
	}
	return verr
}

// Publish validates the builder and, when valid, returns a new Form whose
// fields are normalized per type. The builder is left unchanged.
func (b *Builder) Publish(req PublishRequest, exists FieldExists) (*types.Form, error) {
	if verr := b.Validate(req, exists); verr != nil {
		return nil, verr
	}
	form := &types.Form{
		FormID:      uuid.Must(uuid.NewV7()).String(),
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		FieldID:     req.FieldID,
		OwnerID:     req.OwnerID,
		Fields:      make([]types.FieldDefinition, 0, len(b.fields)),
		CreatedAt:   time.Now().UTC(),
	}
	for _, d := range b.fields {
		form.Fields = append(form.Fields, b.registry.Lookup(d.Type).Normalize(d))
	}
	return form, nil
}

// NormalizeField applies the registered normalization for d's type.
func NormalizeField(d types.FieldDefinition) types.FieldDefinition {
	return DefaultRegistry.Lookup(d.Type).Normalize(d)
}
