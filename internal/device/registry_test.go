package device

import (
	"fmt"
	"sync"
	"testing"

	"github.com/phrazzld/capture-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterLastWriteWins(t *testing.T) {
	t.Parallel()

	r := NewRegistry(nil)
	require.NoError(t, r.Register("alice", "token-one", domain.PushSandbox))
	require.NoError(t, r.Register("alice", "token-two", domain.PushProduction))

	d, ok := r.Lookup("alice")
	require.True(t, ok)
	assert.Equal(t, "token-two", d.Token)
	assert.Equal(t, domain.PushProduction, d.Environment)
	assert.Equal(t, 1, r.Count())
}

func TestRegisterIsIdempotent(t *testing.T) {
	t.Parallel()

	r := NewRegistry(nil)
	require.NoError(t, r.Register("alice", "tok", domain.PushSandbox))
	require.NoError(t, r.Register("alice", "tok", domain.PushSandbox))

	d, ok := r.Lookup("alice")
	require.True(t, ok)
	assert.Equal(t, "tok", d.Token)
	assert.Equal(t, 1, r.Count())
}

func TestRegisterValidation(t *testing.T) {
	t.Parallel()

	r := NewRegistry(nil)
	assert.ErrorIs(t, r.Register("", "tok", domain.PushSandbox), domain.ErrEmptyDeviceUserID)
	assert.ErrorIs(t, r.Register("alice", "", domain.PushSandbox), domain.ErrEmptyDeviceToken)
	assert.ErrorIs(t, r.Register("alice", "tok", "staging"), domain.ErrInvalidEnvironment)
	assert.ErrorIs(t, r.Register("alice", "", domain.PushSandbox), domain.ErrValidation)
	assert.Equal(t, 0, r.Count())
}

func TestLookupMissing(t *testing.T) {
	t.Parallel()

	_, ok := NewRegistry(nil).Lookup("nobody")
	assert.False(t, ok)
}

func TestUnregister(t *testing.T) {
	t.Parallel()

	r := NewRegistry(nil)
	require.NoError(t, r.Register("alice", "tok", domain.PushSandbox))

	assert.True(t, r.Unregister("alice"))
	assert.False(t, r.Unregister("alice"))
	_, ok := r.Lookup("alice")
	assert.False(t, ok)
}

func TestUnregisterTokenKeepsNewerRegistration(t *testing.T) {
	t.Parallel()

	r := NewRegistry(nil)
	require.NoError(t, r.Register("alice", "old", domain.PushSandbox))
	require.NoError(t, r.Register("alice", "new", domain.PushSandbox))

	assert.False(t, r.UnregisterToken("alice", "old"))
	d, ok := r.Lookup("alice")
	require.True(t, ok)
	assert.Equal(t, "new", d.Token)

	assert.True(t, r.UnregisterToken("alice", "new"))
	_, ok = r.Lookup("alice")
	assert.False(t, ok)
}

func TestConcurrentRegisterAndLookup(t *testing.T) {
	t.Parallel()

	r := NewRegistry(nil)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_ = r.Register(fmt.Sprintf("user-%d", i%5), fmt.Sprintf("tok-%d", i), domain.PushSandbox)
		}(i)
		go func(i int) {
			defer wg.Done()
			r.Lookup(fmt.Sprintf("user-%d", i%5))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 5, r.Count())
}
