package policy_test

import (
	"errors"
	"testing"

	"github.com/italolelis/leechbot/internal/policy"
	"github.com/italolelis/leechbot/internal/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mib = int64(1 << 20)

func TestPreflight(t *testing.T) {
	tests := []struct {
		name     string
		declared int64
		ceiling  int64
		wantErr  bool
	}{
		{"unknown size passes", 0, 10 * mib, false},
		{"negative size treated as unknown", -1, 10 * mib, false},
		{"below ceiling", 5 * mib, 10 * mib, false},
		{"exactly at ceiling", 10 * mib, 10 * mib, false},
		{"above ceiling", 10*mib + 1, 10 * mib, true},
		{"6000 MiB over 5120 MiB", 6000 * mib, 5120 * mib, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := policy.Preflight(tt.declared, tt.ceiling)
			if !tt.wantErr {
				assert.NoError(t, err)

				return
			}

			var dlErr *transfer.DownloadError
			require.True(t, errors.As(err, &dlErr))
			assert.Equal(t, transfer.KindTooLarge, dlErr.Kind)
			assert.Equal(t, tt.declared, dlErr.Observed)
			assert.Equal(t, tt.ceiling, dlErr.Limit)
		})
	}
}

func TestOnChunk(t *testing.T) {
	tests := []struct {
		name       string
		downloaded int64
		ceiling    int64
		wantErr    bool
	}{
		{"nothing yet", 0, mib, false},
		{"at ceiling", mib, mib, false},
		{"one byte over", mib + 1, mib, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := policy.OnChunk(tt.downloaded, tt.ceiling)
			if tt.wantErr {
				var dlErr *transfer.DownloadError
				require.True(t, errors.As(err, &dlErr))
				assert.Equal(t, transfer.KindTooLarge, dlErr.Kind)
				assert.Equal(t, tt.downloaded, dlErr.Observed)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAllowList_Empty(t *testing.T) {
	list := policy.NewAllowList(nil)

	assert.True(t, list.Open())

	for _, id := range []int64{0, -1, 1, 42, -1001234567890} {
		assert.True(t, list.IsAllowed(id), "chat %d should be allowed in open mode", id)
	}

	var zero policy.AllowList
	assert.True(t, zero.IsAllowed(7))
}

func TestAllowList_Restricted(t *testing.T) {
	list := policy.NewAllowList([]int64{42, -1001234567890})

	assert.False(t, list.Open())
	assert.True(t, list.IsAllowed(42))
	assert.True(t, list.IsAllowed(-1001234567890))

	for _, id := range []int64{0, -1, -42, 1, 43} {
		assert.False(t, list.IsAllowed(id), "chat %d should be rejected", id)
	}
}
