// Package schema implements the form-definition engine: the per-type
// registry, the Builder that edits an unsaved field list, Publish which
// validates and normalizes that list into a types.Form, the starter
// templates, and definition import/export.
package schema
