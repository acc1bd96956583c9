package common

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetupLogger(t *testing.T) {
	t.Run("json with service and version", func(t *testing.T) {
		var buf bytes.Buffer
		log := SetupLogger(&LoggingOpts{JSON: true, Service: "privyctl", Version: "1.2.3", Output: &buf})
		log.Info("hello", "wallet", "w1")

		var line map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
		require.Equal(t, "hello", line["msg"])
		require.Equal(t, "privyctl", line["service"])
		require.Equal(t, "1.2.3", line["version"])
		require.Equal(t, "w1", line["wallet"])
	})

	t.Run("debug level", func(t *testing.T) {
		var buf bytes.Buffer
		SetupLogger(&LoggingOpts{Output: &buf}).Debug("hidden")
		require.Empty(t, buf.String())

		SetupLogger(&LoggingOpts{Debug: true, Output: &buf}).Debug("shown")
		require.Contains(t, buf.String(), "msg=shown")
	})
}

func TestClientHeader(t *testing.T) {
	require.Equal(t, "go-sdk:"+Version, ClientHeader())
}
