package model

import (
	"errors"
	"testing"

	"github.com/Veraticus/motorsense/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultClassSet_RoundTrip(t *testing.T) {
	set := DefaultClassSet()
	require.Equal(t, 4, set.Len())

	for i := 0; i < set.Len(); i++ {
		name, err := set.Name(i)
		require.NoError(t, err)

		back, err := set.Index(name)
		require.NoError(t, err)
		assert.Equal(t, i, back, "class %q did not map back to its index", name)
	}

	assert.Equal(t, []string{"motorOFF", "motorON", "motorON_NoFan", "motorON_BadFan"}, set.Names())
}

func TestNewClassSet(t *testing.T) {
	tests := []struct {
		name    string
		errMsg  string
		names   []string
		wantErr bool
	}{
		{
			name:  "valid two classes",
			names: []string{"idle", "running"},
		},
		{
			name:    "empty set",
			names:   nil,
			wantErr: true,
			errMsg:  "at least one class is required",
		},
		{
			name:    "empty name",
			names:   []string{"idle", ""},
			wantErr: true,
			errMsg:  "class 1 has an empty name",
		},
		{
			name:    "duplicate name",
			names:   []string{"idle", "running", "idle"},
			wantErr: true,
			errMsg:  `duplicate class "idle" at indexes 0 and 2`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set, err := NewClassSet(tt.names)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, common.ErrConfiguration))
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, len(tt.names), set.Len())
		})
	}
}

func TestClassSet_Lookups(t *testing.T) {
	set := DefaultClassSet()

	_, err := set.Name(4)
	assert.Error(t, err)
	_, err = set.Name(-1)
	assert.Error(t, err)

	idx, err := set.Index("motorAWOL")
	assert.Error(t, err)
	assert.Equal(t, -1, idx)

	names := set.Names()
	names[0] = "mutated"
	name, err := set.Name(0)
	require.NoError(t, err)
	assert.Equal(t, ClassMotorOff, name)
}

func TestClassSet_Validate(t *testing.T) {
	set := DefaultClassSet()
	assert.NoError(t, set.Validate(4))

	err := set.Validate(3)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrConfiguration)
}
