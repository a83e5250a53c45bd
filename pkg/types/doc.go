// Package types defines the Cupboard and Table storage interfaces, the
// fieldforms entities (field nodes, forms, agents, submissions, sessions),
// and the standard errors shared by every backend and service.
package types
