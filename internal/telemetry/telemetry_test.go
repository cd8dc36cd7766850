package telemetry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/immagent/internal/telemetry"
)

func TestInitWithEmptyEndpointIsNoop(t *testing.T) {
	shutdown, err := telemetry.Init(context.Background(), "", "immagent", "test")
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestMeterAndTracerAreUsable(t *testing.T) {
	m := telemetry.Meter("immagent/test")
	require.NotNil(t, m)
	tr := telemetry.Tracer("immagent/test")
	require.NotNil(t, tr)
}
