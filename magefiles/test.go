//go:build mage

// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package main

import (
	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Test groups test targets (all, unit, postgres).
type Test mg.Namespace

// All runs every test. The postgres tests need a Docker daemon.
func (Test) All() error {
	return sh.RunV(binGo, "test", "-race", "./...")
}

// Unit runs tests with -short, which skips container-backed tests.
func (Test) Unit() error {
	return sh.RunV(binGo, "test", "-short", "./...")
}

// Postgres runs the postgres backend tests against a throwaway container.
func (Test) Postgres() error {
	return sh.RunV(binGo, "test", "-v", "-count=1", "./internal/postgres/...")
}

// Cover writes a coverage profile to bin/coverage.out.
func (Test) Cover() error {
	mg.Deps(ensureBinDir)
	return sh.RunV(binGo, "test", "-short", "-coverprofile="+binaryDir+"/coverage.out", "./...")
}
