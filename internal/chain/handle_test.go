package chain

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandle_FirstResolveWins(t *testing.T) {
	h := NewHandle("bookEvent")
	hash := common.HexToHash("0x01")

	_, ok := h.Hash()
	assert.False(t, ok)

	h.Resolve(hash, nil)
	h.Resolve(common.HexToHash("0x02"), errors.New("late"))

	got, err := h.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, hash, got)

	got, ok = h.Hash()
	assert.True(t, ok)
	assert.Equal(t, hash, got)
}

func TestHandle_WaitHonoursContext(t *testing.T) {
	h := NewHandle("checkIn")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := h.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHandle_IdentityIsUnique(t *testing.T) {
	a, b := NewHandle("cancelEvent"), NewHandle("cancelEvent")
	assert.NotEqual(t, a.ID(), b.ID())
	assert.Equal(t, "cancelEvent", a.Method())
	assert.Contains(t, a.String(), "cancelEvent/")
}

func TestParseAddress(t *testing.T) {
	addr, ok := ParseAddress("0xAbCdEf0123456789abcdef0123456789ABCDEF01")
	assert.True(t, ok)
	assert.Equal(t, common.HexToAddress("0xabcdef0123456789abcdef0123456789abcdef01"), addr)

	for _, bad := range []string{"", "0x", "abcdef0123456789abcdef0123456789abcdef01", "0xzz", "0x1234"} {
		_, ok := ParseAddress(bad)
		assert.False(t, ok, bad)
	}
}
