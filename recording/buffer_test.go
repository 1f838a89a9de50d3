package recording

import (
	"sync"
	"testing"
)

func sampleCars(n int) []CarData {
	cars := make([]CarData, n)
	for i := range cars {
		cars[i] = CarData{ID: i, X: float64(i), Sensors: []SensorData{{Value: 0.5}}}
	}
	return cars
}

func TestCarsOutOfRange(t *testing.T) {
	b := NewBuffer()
	b.Add(NewSnapshot(0, sampleCars(2)))
	b.Add(NewSnapshot(1, sampleCars(3)))

	tests := []struct {
		name string
		t    int
		want int
	}{
		{"negative", -1, 0},
		{"first", 0, 2},
		{"last", 1, 3},
		{"at size", 2, 0},
		{"past size", 100, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := b.Cars(tt.t)
			if got == nil {
				t.Fatal("Cars returned nil, want empty slice")
			}
			if len(got) != tt.want {
				t.Errorf("len = %d, want %d", len(got), tt.want)
			}
		})
	}
}

func TestClear(t *testing.T) {
	b := NewBuffer()
	calls := 0
	b.OnSnapshotAdded(func(*Buffer) { calls++ })
	for i := 0; i < 5; i++ {
		b.Add(NewSnapshot(i, sampleCars(1)))
	}
	b.Clear()

	if b.Size() != 0 {
		t.Errorf("Size = %d after Clear", b.Size())
	}
	for _, step := range []int{-1, 0, 4} {
		if got := b.Cars(step); len(got) != 0 {
			t.Errorf("Cars(%d) = %v after Clear", step, got)
		}
	}
	if _, ok := b.Last(); ok {
		t.Error("Last reported a snapshot after Clear")
	}

	b.Add(NewSnapshot(0, nil))
	if calls != 6 {
		t.Errorf("listener calls = %d, want 6 (listeners survive Clear)", calls)
	}
}

func TestListenerSeesNewSnapshot(t *testing.T) {
	b := NewBuffer()
	var sizes []int
	b.OnSnapshotAdded(func(buf *Buffer) { sizes = append(sizes, buf.Size()) })
	b.OnSnapshotAdded(func(buf *Buffer) {
		if s, ok := buf.Last(); !ok || s.Step != buf.Size()-1 {
			t.Errorf("listener saw stale snapshot")
		}
	})

	for i := 0; i < 3; i++ {
		b.Add(NewSnapshot(i, sampleCars(1)))
	}
	if len(sizes) != 3 || sizes[0] != 1 || sizes[2] != 3 {
		t.Errorf("sizes = %v", sizes)
	}
}

func TestSnapshotsAreCopied(t *testing.T) {
	cars := sampleCars(1)
	b := NewBuffer()
	b.Add(NewSnapshot(0, cars))

	cars[0].X = 99
	cars[0].Sensors[0].Value = 99
	got := b.Cars(0)
	if got[0].X != 0 || got[0].Sensors[0].Value != 0.5 {
		t.Error("snapshot aliases caller slice")
	}

	got[0].X = 42
	if b.Cars(0)[0].X != 0 {
		t.Error("Cars result aliases stored snapshot")
	}
}

func TestConcurrentProducerConsumer(t *testing.T) {
	b := NewBuffer()
	const steps = 200

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < steps; i++ {
			b.Add(NewSnapshot(i, sampleCars(2)))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < steps; i++ {
			if n := b.Size(); n > 0 {
				if cars := b.Cars(n - 1); len(cars) != 2 {
					t.Errorf("step %d: %d cars", n-1, len(cars))
					return
				}
			}
		}
	}()
	wg.Wait()

	if b.Size() != steps {
		t.Errorf("Size = %d, want %d", b.Size(), steps)
	}
}
