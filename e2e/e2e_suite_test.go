// Copyright Contributors to the Opus project

// Package e2e contains end-to-end tests for the Opus orchestration core.
package e2e

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestE2E(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Opus E2E Suite")
}
