//go:build mage

// Package main provides build targets for fieldforms using Mage.
//
// Usage:
//
//	mage build          Compile the fieldforms binary to bin/
//	mage test:all       Run every test, including containers
//	mage test:unit      Run tests with -short (no containers)
//	mage test:postgres  Run the postgres backend tests against a container
//	mage lint           Run golangci-lint
//	mage vet            Run go vet
//	mage clean          Remove build artifacts
//	mage install        Install fieldforms to GOPATH/bin
//	mage stats          Print Go lines of code per package
package main

const (
	binGo      = "go"
	binaryName = "fieldforms"
	binaryDir  = "bin"
	cmdDir     = "./cmd/fieldforms"
	modulePath = "github.com/mesh-intelligence/fieldforms"
)
