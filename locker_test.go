package burrow

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStreamLocker_SerializesSameStream(t *testing.T) {
	locker := NewStreamLocker()

	var counter int
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locker.Lock("Issue-1")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, counter)
}

func TestStreamLocker_IndependentStreams(t *testing.T) {
	locker := NewStreamLocker()

	unlockA := locker.Lock("Issue-1")
	defer unlockA()

	// A different stream's lock is not held
	done := make(chan struct{})
	go func() {
		unlockB := locker.Lock("Issue-2")
		unlockB()
		close(done)
	}()
	<-done

	assert.Equal(t, 2, locker.Len())
}

func TestStreamLocker_ReusesLockPerStream(t *testing.T) {
	locker := NewStreamLocker()

	unlock := locker.Lock("Issue-1")
	unlock()
	unlock = locker.Lock("Issue-1")
	unlock()

	assert.Equal(t, 1, locker.Len())
}
