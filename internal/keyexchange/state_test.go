package keyexchange

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseState(t *testing.T) {
	cases := []struct {
		name    string
		value   string
		ok      bool
		want    LockState
		wantErr error
	}{
		{
			name: "absent",
			want: Absent,
		},
		{
			name:  "in progress",
			value: "in-progress",
			ok:    true,
			want:  InProgress,
		},
		{
			name:  "loaded",
			value: "loaded",
			ok:    true,
			want:  Loaded,
		},
		{
			name:    "unknown",
			value:   "generating",
			ok:      true,
			wantErr: ErrUnknownState,
		},
		{
			name:    "empty but present",
			ok:      true,
			wantErr: ErrUnknownState,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := parseState(c.value, c.ok)
			if c.wantErr != nil {
				require.ErrorIs(t, err, c.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, c.want, got)
		})
	}
}

func TestLockStateString(t *testing.T) {
	require.Equal(t, "absent", Absent.String())
	require.Equal(t, "in-progress", InProgress.String())
	require.Equal(t, "loaded", Loaded.String())
	require.Equal(t, "LockState(7)", LockState(7).String())
}
