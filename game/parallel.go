package game

import (
	"runtime"
	"sync"
)

// parallelThreshold is the minimum live car count to think in parallel.
// Below this, single-threaded is faster due to goroutine overhead.
const parallelThreshold = 64

// workChunk is a range of the pose snapshot for a worker to process.
type workChunk struct {
	start, end int
}

// thinkPool runs the sense/decide phase over a snapshot of car poses with a
// set of persistent workers.
type thinkPool struct {
	cars  []*Car
	poses []carPose

	numWorkers int
	workChan   chan workChunk
	doneChan   chan struct{}
	stopChan   chan struct{}
	wg         sync.WaitGroup
	running    bool
}

func newThinkPool() *thinkPool {
	return &thinkPool{numWorkers: runtime.GOMAXPROCS(0)}
}

// start launches the workers.
func (p *thinkPool) start() {
	if p.running {
		return
	}
	p.workChan = make(chan workChunk, p.numWorkers)
	p.doneChan = make(chan struct{}, p.numWorkers)
	p.stopChan = make(chan struct{})
	p.running = true

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// stop signals all workers to exit and waits for them.
func (p *thinkPool) stop() {
	if !p.running {
		return
	}
	close(p.stopChan)
	p.wg.Wait()
	close(p.workChan)
	close(p.doneChan)
	p.running = false
}

func (p *thinkPool) worker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.stopChan:
			return
		case chunk, ok := <-p.workChan:
			if !ok {
				return
			}
			for i := chunk.start; i < chunk.end; i++ {
				p.cars[i].think(p.poses[i])
			}
			p.doneChan <- struct{}{}
		}
	}
}

// think snapshots the pose of every live car, then runs think for each.
// Poses are read sequentially because the body arena is single-threaded.
func (p *thinkPool) think(cars []*Car) {
	p.cars = p.cars[:0]
	p.poses = p.poses[:0]
	for _, c := range cars {
		if c.Dead() {
			continue
		}
		p.cars = append(p.cars, c)
		p.poses = append(p.poses, c.pose())
	}

	n := len(p.cars)
	if n < parallelThreshold || p.numWorkers < 2 {
		for i := 0; i < n; i++ {
			p.cars[i].think(p.poses[i])
		}
		return
	}

	p.start()
	chunkSize := (n + p.numWorkers - 1) / p.numWorkers
	sent := 0
	for start := 0; start < n; start += chunkSize {
		end := start + chunkSize
		if end > n {
			end = n
		}
		p.workChan <- workChunk{start: start, end: end}
		sent++
	}
	for i := 0; i < sent; i++ {
		<-p.doneChan
	}
}
