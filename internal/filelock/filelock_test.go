package filelock

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocker_Exclusive(t *testing.T) {
	dir := t.TempDir()
	first, err := New(dir)
	require.NoError(t, err)
	second, err := New(dir)
	require.NoError(t, err)

	unlock, err := first.Lock(context.Background(), "a1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = second.Lock(ctx, "a1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	other, err := second.Lock(context.Background(), "a2")
	require.NoError(t, err, "distinct keys do not contend")
	other()

	unlock()
	unlock()
	again, err := second.Lock(context.Background(), "a1")
	require.NoError(t, err)
	again()
}

func TestLocker_InvalidKey(t *testing.T) {
	locker, err := New(t.TempDir())
	require.NoError(t, err)
	for _, key := range []string{"", ".", "..", "a/b", `a\b`} {
		_, err := locker.Lock(context.Background(), key)
		assert.Error(t, err, key)
	}
}

func TestLocker_SerialisesReadModifyWrite(t *testing.T) {
	dir := t.TempDir()
	counter := filepath.Join(dir, "counter")
	require.NoError(t, os.WriteFile(counter, []byte("0"), 0o644))

	const workers, rounds = 4, 25
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		locker, err := New(filepath.Join(dir, ".locks"))
		require.NoError(t, err)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				unlock, err := locker.Lock(context.Background(), "counter")
				if !assert.NoError(t, err) {
					return
				}
				data, _ := os.ReadFile(counter)
				value, _ := strconv.Atoi(strings.TrimSpace(string(data)))
				_ = os.WriteFile(counter, []byte(strconv.Itoa(value+1)), 0o644)
				unlock()
			}
		}()
	}
	wg.Wait()

	data, err := os.ReadFile(counter)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(workers*rounds), string(data))
}
