package application

import (
	"sync"
	"testing"
)

func TestLockSet_SerializesSameTriple(t *testing.T) {
	ls := NewLockSet()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := ls.Acquire("host1", "deploy", "myapp")
			defer release()
			counter++
		}()
	}
	wg.Wait()

	if counter != 50 {
		t.Errorf("Expected 50 serialized increments, got %d", counter)
	}
}

func TestLockSet_IndependentTriples(t *testing.T) {
	ls := NewLockSet()

	releaseA := ls.Acquire("host1", "deploy", "app-a")
	defer releaseA()

	// A different application on the same host must not block
	done := make(chan struct{})
	go func() {
		releaseB := ls.Acquire("host1", "deploy", "app-b")
		releaseB()
		close(done)
	}()

	<-done
}
