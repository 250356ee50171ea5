package lifecycle

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/stexplore/strec/internal/lifecycle"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}
