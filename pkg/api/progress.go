package api

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/bytebeam/pkg/relay"
)

// progressInterval is how often streamed byte counts are folded into the
// ticket's metadata.
const progressInterval = 100 * time.Millisecond

// progressSampler periodically flushes an atomic byte counter into the
// registry, so status queries see transfer progress while the stream is
// still running. The streaming handler calls Add from its hot loop; the
// sampler goroutine does the registry work off that path.
type progressSampler struct {
	registry *relay.Registry
	ticket   string
	upload   bool

	total   atomic.Int64
	flushed int64

	stop chan struct{}
	wg   sync.WaitGroup
}

// newProgressSampler starts a sampler for one direction of one ticket.
func newProgressSampler(registry *relay.Registry, ticket string, upload bool) *progressSampler {
	s := &progressSampler{
		registry: registry,
		ticket:   ticket,
		upload:   upload,
		stop:     make(chan struct{}),
	}

	s.wg.Add(1)
	go s.run()

	return s
}

// Add records n more streamed bytes.
func (s *progressSampler) Add(n int) {
	s.total.Add(int64(n))
}

// Stop flushes the remainder and stops the sampler. It returns the final
// byte total.
func (s *progressSampler) Stop() int64 {
	close(s.stop)
	s.wg.Wait()
	s.flush()
	return s.total.Load()
}

func (s *progressSampler) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.flush()
		}
	}
}

// flush pushes the delta since the last flush into the registry. Only the
// sampler goroutine and Stop (after the goroutine exited) call this.
func (s *progressSampler) flush() {
	delta := s.total.Load() - s.flushed
	if delta == 0 {
		return
	}
	s.flushed += delta

	if s.upload {
		s.registry.AddTransferred(s.ticket, delta, 0)
	} else {
		s.registry.AddTransferred(s.ticket, 0, delta)
	}
}
