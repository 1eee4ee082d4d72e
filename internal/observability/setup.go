package observability

import (
	"context"

	"github.com/ezbirr/p2p-exchange/internal/infrastructure/observability"
)

// Setup initializes logging, metrics and tracing for the process.
func Setup(serviceName string) func(context.Context) error {
	observability.InitLogger()
	observability.InitMetrics()
	return observability.InitTracing(serviceName)
}
