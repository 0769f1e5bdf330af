package render

import (
	"sync"
	"sync/atomic"
)

// Job is a unit of work executed on the render context.
type Job func()

type queuedJob struct {
	key string
	job Job
}

// Queue hands work from any goroutine to the render context. It has a single
// consumer which drains it once per render tick.
type Queue struct {
	mu       sync.Mutex
	jobs     []queuedJob
	capacity int
	closed   bool

	superseded atomic.Uint64
	rejected   atomic.Uint64
}

// NewQueue creates a queue holding at most capacity pending jobs.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{
		jobs:     make([]queuedJob, 0, capacity),
		capacity: capacity,
	}
}

// Post enqueues job. It never blocks: a full queue returns ErrQueueFull.
func (q *Queue) Post(job Job) error {
	return q.post("", job)
}

// PostLatest enqueues job under key, replacing a still-pending job with the
// same key in place. It returns true if a pending job was superseded.
func (q *Queue) PostLatest(key string, job Job) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		q.rejected.Add(1)
		return false, ErrQueueClosed
	}
	for i := range q.jobs {
		if q.jobs[i].key == key {
			q.jobs[i].job = job
			q.superseded.Add(1)
			return true, nil
		}
	}
	return false, q.appendLocked(key, job)
}

func (q *Queue) post(key string, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		q.rejected.Add(1)
		return ErrQueueClosed
	}
	return q.appendLocked(key, job)
}

func (q *Queue) appendLocked(key string, job Job) error {
	if len(q.jobs) >= q.capacity {
		q.rejected.Add(1)
		return ErrQueueFull
	}
	q.jobs = append(q.jobs, queuedJob{key: key, job: job})
	return nil
}

// Drain runs every pending job in posting order on the calling goroutine and
// returns how many ran. Jobs posted while draining wait for the next Drain.
func (q *Queue) Drain() int {
	q.mu.Lock()
	pending := q.jobs
	q.jobs = make([]queuedJob, 0, q.capacity)
	q.mu.Unlock()

	for _, j := range pending {
		j.job()
	}
	return len(pending)
}

// Close makes every later Post fail. Pending jobs stay for a final Drain.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
}

// Len returns the number of pending jobs.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// Superseded counts jobs replaced by PostLatest before they ran.
func (q *Queue) Superseded() uint64 {
	return q.superseded.Load()
}

// Rejected counts posts refused because the queue was full or closed.
func (q *Queue) Rejected() uint64 {
	return q.rejected.Load()
}
