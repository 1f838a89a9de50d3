package hooks

import (
	"sync"
	"testing"
)

func TestFireOrder(t *testing.T) {
	var l List[int]
	var got []int
	for i := 0; i < 3; i++ {
		i := i
		l.Add(func(v int) { got = append(got, v*10+i) })
	}
	l.Add(nil)

	l.Fire(1)
	l.Fire(2)

	want := []int{10, 11, 12, 20, 21, 22}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
	if l.Len() != 3 {
		t.Errorf("Len = %d, want 3", l.Len())
	}
}

func TestFireOnceDrains(t *testing.T) {
	var l List[string]
	calls := 0
	l.Add(func(string) { calls++ })

	l.FireOnce("a")
	l.FireOnce("b")
	l.Fire("c")

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if l.Len() != 0 {
		t.Errorf("Len = %d after FireOnce", l.Len())
	}
}

func TestAddDuringFire(t *testing.T) {
	var l List[int]
	calls := 0
	l.Add(func(int) {
		calls++
		l.Add(func(int) { calls++ })
	})

	l.Fire(0)
	if calls != 1 {
		t.Fatalf("calls = %d after first Fire, want 1", calls)
	}
	l.Fire(0)
	if calls != 3 {
		t.Errorf("calls = %d after second Fire, want 3", calls)
	}
}

func TestConcurrentAddFire(t *testing.T) {
	var l List[int]
	var mu sync.Mutex
	total := 0

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Add(func(v int) {
				mu.Lock()
				total += v
				mu.Unlock()
			})
			l.Fire(0)
		}()
	}
	wg.Wait()

	l.Fire(1)
	if total != 8 {
		t.Errorf("total = %d, want 8", total)
	}
	l.Clear()
	if l.Len() != 0 {
		t.Error("Clear left actions")
	}
}
