package usecase

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyedMutex_SerializesPerKey(t *testing.T) {
	k := newKeyedMutex()

	var (
		wg      sync.WaitGroup
		counter int
	)

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			unlock := k.Lock("R")
			defer unlock()

			// без мьютекса здесь была бы гонка
			v := counter
			counter = v + 1
		}()
	}

	wg.Wait()

	assert.Equal(t, 50, counter)
	assert.Equal(t, 0, k.size())
}

func TestKeyedMutex_IndependentKeys(t *testing.T) {
	k := newKeyedMutex()

	unlockA := k.Lock("A")
	done := make(chan struct{})

	go func() {
		unlock := k.Lock("B")
		unlock()
		close(done)
	}()

	<-done
	assert.Equal(t, 1, k.size())

	unlockA()
	assert.Equal(t, 0, k.size())
}
