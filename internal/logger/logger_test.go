package logger

import (
	"bytes"
	"encoding/json"
	"runtime/debug"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	var buf bytes.Buffer
	l := Default("secure-enclave", &buf)
	l.Info().Str("track", "2025-01").Msg("Hello.")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "secure-enclave", entry["app"])
	require.Equal(t, "2025-01", entry["track"])
	require.Equal(t, "Hello.", entry["message"])
	require.Contains(t, entry, "time")
}

func TestRevision(t *testing.T) {
	cases := []struct {
		name     string
		settings []debug.BuildSetting
		want     string
	}{
		{
			name: "no VCS information",
		},
		{
			name: "full hash",
			settings: []debug.BuildSetting{
				{Key: "vcs.revision", Value: "0123456789abcdef0123456789abcdef01234567"},
			},
			want: "0123456",
		},
		{
			name: "truncated hash",
			settings: []debug.BuildSetting{
				{Key: "vcs.revision", Value: "0123456"},
			},
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			info := &debug.BuildInfo{Settings: c.settings}
			require.Equal(t, c.want, revision(info))
		})
	}
}

func TestSetLevel(t *testing.T) {
	orig := zerolog.GlobalLevel()
	defer zerolog.SetGlobalLevel(orig)

	require.NoError(t, SetLevel(""))
	require.Equal(t, orig, zerolog.GlobalLevel())

	require.NoError(t, SetLevel("warn"))
	require.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())

	require.Error(t, SetLevel("loud"))
}
