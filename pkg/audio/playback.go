package audio

import (
	"io"
	"log/slog"
	"sync"
	"time"
)

// Scheduler queues agent speech chunks for gapless playback. Each chunk is
// assigned a start time of max(now, cursor) where cursor is the end of the
// previously scheduled chunk, so consecutive chunks play back to back and a
// chunk arriving after a gap of silence starts immediately. The cursor never
// moves backwards.
type Scheduler struct {
	sink io.Writer
	rate int

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []scheduledChunk
	cursor time.Time
	closed bool

	now func() time.Time
}

type scheduledChunk struct {
	at  time.Time
	pcm []byte
}

// NewScheduler returns a running Scheduler writing little-endian 16-bit mono
// PCM to sink at the given sample rate. Rate <= 0 means PlaybackRate.
func NewScheduler(sink io.Writer, rate int) *Scheduler {
	if rate <= 0 {
		rate = PlaybackRate
	}
	s := &Scheduler{
		sink: sink,
		rate: rate,
		now:  time.Now,
	}
	s.cond = sync.NewCond(&s.mu)
	go s.dispatchLoop()
	return s
}

// Schedule queues one PCM chunk and returns its assigned start time and
// duration. Empty chunks are ignored and return a zero duration.
func (s *Scheduler) Schedule(pcm []byte) (time.Time, time.Duration) {
	d := time.Duration(len(pcm)/2) * time.Second / time.Duration(s.rate)
	if d == 0 {
		return s.now(), 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return s.now(), 0
	}

	start := s.now()
	if s.cursor.After(start) {
		start = s.cursor
	}
	s.cursor = start.Add(d)
	s.queue = append(s.queue, scheduledChunk{at: start, pcm: pcm})
	s.cond.Signal()
	return start, d
}

// Speaking reports whether scheduled audio extends past the current moment.
func (s *Scheduler) Speaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor.After(s.now())
}

// Flush drops all queued chunks and rewinds the cursor so the next chunk
// starts immediately. Audio already handed to the sink keeps playing.
func (s *Scheduler) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = nil
	s.cursor = time.Time{}
	s.cond.Signal()
}

// Close stops the dispatch loop. Queued chunks that have not started are
// dropped. Closing the sink is the caller's responsibility.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.queue = nil
	s.cond.Signal()
}

// dispatchLoop pops chunks in FIFO order, which matches start-time order by
// construction, and writes each to the sink once its start time arrives.
func (s *Scheduler) dispatchLoop() {
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}
		if s.closed {
			s.mu.Unlock()
			return
		}
		head := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		if wait := time.Until(head.at); wait > 0 {
			time.Sleep(wait)
		}
		if _, err := s.sink.Write(head.pcm); err != nil {
			slog.Warn("playback sink write failed", "error", err)
		}
	}
}
