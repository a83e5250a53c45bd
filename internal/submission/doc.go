// Package submission validates posted form data and stores the resulting
// Submission records.
//
// Validation is presence-only: required fields must carry a value, but
// advisory constraints such as min, max, pattern and length are not
// re-checked. Drafts skip validation entirely and are stored as separate
// records; a later final submission never upgrades a draft in place.
package submission
