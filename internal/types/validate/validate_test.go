package validate

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type problems map[string]string

func (p problems) Validate() map[string]string {
	return p
}

func TestObject(t *testing.T) {
	cases := []struct {
		name    string
		v       Validator
		wantErr string
	}{
		{
			name: "valid",
			v:    problems{},
		},
		{
			name:    "one problem",
			v:       problems{"-port": "port must not be 0"},
			wantErr: "field -port: port must not be 0",
		},
		{
			name: "sorted problems",
			v: problems{
				"-track": "argument is required",
				"-cid":   "must be an enclave CID",
			},
			wantErr: "field -cid: must be an enclave CID\nfield -track: argument is required",
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := Object(c.v)
			if c.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.EqualError(t, err, c.wantErr)
		})
	}
}

func TestSprintErrs(t *testing.T) {
	require.Empty(t, SprintErrs(nil))
	require.Equal(t,
		"-cid: must be an enclave CID\n-track: argument is required\n",
		SprintErrs(problems{
			"-track": "argument is required",
			"-cid":   "must be an enclave CID",
		}),
	)
}
