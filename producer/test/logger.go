// Package test contains helpers shared by package tests.
package test

import (
	"github.com/mediaroom/producer/producer/logger"
)

// NewLogger returns a logger configured from PRODUCER_TEST_LOG, e.g.
// PRODUCER_TEST_LOG=coordinator:trace go test ./...
func NewLogger() logger.Logger {
	return logger.NewFromEnv("PRODUCER_TEST_LOG")
}
