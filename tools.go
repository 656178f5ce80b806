//go:build tools
// +build tools

// Package tools tracks the mockgen dependency used by go:generate so that
// go.mod and go.sum stay in sync with the generated mocks.
package nexus_mail

import (
	_ "go.uber.org/mock/mockgen"
)
