// Package render turns a published form into entry widgets for data capture
// and turns a form plus stored submission data into display rows. Every
// function here is pure: inputs are never modified.
package render
