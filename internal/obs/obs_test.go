package obs

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestStripScheme(t *testing.T) {
	require.Equal(t, "collector:4317", stripScheme("http://collector:4317"))
	require.Equal(t, "collector:4317", stripScheme("https://collector:4317"))
	require.Equal(t, "collector:4317", stripScheme("collector:4317"))
}

func TestInitTracerNone(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), TracingConfig{ServiceName: "storefront-api", Exporter: "none"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))

	_, err = InitTracer(context.Background(), TracingConfig{Exporter: "zipkin"})
	require.Error(t, err)
}

func TestParseBucketsCSV(t *testing.T) {
	require.Nil(t, ParseBucketsCSV(""))
	require.Equal(t, []float64{5, 50, 2.5}, ParseBucketsCSV(" 5, x, 50,-1, 2.5"))
}

func TestNewLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "json", "WARN")
	require.Equal(t, zerolog.WarnLevel, logger.GetLevel())
	logger.Info().Msg("dropped")
	require.Zero(t, buf.Len())
	logger.Warn().Msg("kept")
	require.Contains(t, buf.String(), `"message":"kept"`)

	require.Equal(t, zerolog.InfoLevel, newLogger(&buf, "console", "shouting").GetLevel())
	require.Equal(t, zerolog.InfoLevel, newLogger(&buf, "json", "").GetLevel())
}
