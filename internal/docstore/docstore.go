// Package docstore holds the document encoding shared by the storage
// backends: entity type checks, ID assignment, JSON bodies and equality
// filter matching.
package docstore

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/fieldforms/pkg/types"
)

// NewID returns a UUID v7 string.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// Prepare checks that data is the entity type stored in table and settles
// its ID: an explicit id wins, then the entity's own ID, then a fresh
// UUID v7. The chosen ID is written back to the entity.
func Prepare(table string, id string, data any) (types.Entity, string, error) {
	want, err := types.NewEntity(table)
	if err != nil {
		return nil, "", err
	}
	e, ok := data.(types.Entity)
	if !ok || isNilPointer(data) || reflect.TypeOf(e) != reflect.TypeOf(want) {
		return nil, "", fmt.Errorf("%w: %s table does not store %T", types.ErrInvalidData, table, data)
	}
	if id == "" {
		id = e.EntityID()
	}
	if id == "" {
		id = NewID()
	}
	e.SetEntityID(id)
	return e, id, nil
}

func isNilPointer(v any) bool {
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}

// Encode returns the JSON body of e.
func Encode(e types.Entity) ([]byte, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidData, err)
	}
	return body, nil
}

// Decode returns a fresh entity of the table's type decoded from body.
func Decode(table string, body []byte) (types.Entity, error) {
	e, err := types.NewEntity(table)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(body, e); err != nil {
		return nil, fmt.Errorf("decode %s: %w", table, err)
	}
	return e, nil
}

// Matches reports whether every filter key equals the body's top-level
// attribute of the same name. Missing attributes never match.
func Matches(body []byte, filter types.Filter) (bool, error) {
	if len(filter) == 0 {
		return true, nil
	}
	var attrs map[string]any
	if err := json.Unmarshal(body, &attrs); err != nil {
		return false, err
	}
	for k, v := range filter {
		got, ok := attrs[k]
		if !ok {
			return false, nil
		}
		s, isString := got.(string)
		if !isString || s != v.(string) {
			return false, nil
		}
	}
	return true, nil
}
