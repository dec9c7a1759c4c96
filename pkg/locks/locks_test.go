package locks

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestPerKey_SerializesSameKey(t *testing.T) {
	req := require.New(t)
	locks := NewPerKey()
	key := uuid.New()

	// When many goroutines increment a counter under the same key
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			locks.Lock(key)
			counter++
			locks.Unlock(key)
		}()
	}
	wg.Wait()

	// Then no increment was lost
	req.Equal(100, counter)
}

func TestPerKey_DifferentKeysDoNotBlockEachOther(t *testing.T) {
	locks := NewPerKey()
	a, b := uuid.New(), uuid.New()

	locks.Lock(a)
	done := make(chan struct{})
	go func() {
		locks.Lock(b)
		locks.Unlock(b)
		close(done)
	}()

	// b must be acquirable while a is held
	<-done
	locks.Unlock(a)
}
