// Package integration contains end-to-end tests against real brokers.
// Set QUEUEKIT_KAFKA_ADDR and/or QUEUEKIT_RABBITMQ_ADDR (host:port) to run
// them; specs for a broker without an address are skipped.
package integration

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestIntegration(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "queuekit Integration Suite")
}
