package render_system

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-sky/engine/logger"
	"github.com/google/uuid"
)

// LoadStatus is the background loading state of a renderable.
type LoadStatus int32

const (
	// StatusNotLoaded means no conversion is running and no data is waiting.
	StatusNotLoaded LoadStatus = iota
	// StatusLoading means a worker is converting the renderable's particles.
	StatusLoading
	// StatusReady means converted records wait for the render thread to upload them.
	StatusReady
	// StatusLoaded means the records were uploaded and are drawn.
	StatusLoaded
)

func (s LoadStatus) String() string {
	switch s {
	case StatusNotLoaded:
		return "not-loaded"
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusLoaded:
		return "loaded"
	default:
		return fmt.Sprintf("LoadStatus(%d)", int32(s))
	}
}

// loadJob is written by one worker and read by the render thread once status is StatusReady or the
// worker regressed it to StatusNotLoaded.
type loadJob struct {
	status  atomic.Int32
	version uint64
	records []float32
	count   int
	skipped int
	err     error
}

func (j *loadJob) load() LoadStatus {
	return LoadStatus(j.status.Load())
}

// convertFunc builds packed records off the render thread. It must not touch the graphics backend.
type convertFunc func() (records []float32, count, skipped int, err error)

// LoaderQueueSize is the task queue size of the worker pool a render system creates for itself.
const LoaderQueueSize = 256

// loader runs point conversions on a worker pool. Only the render thread calls its methods; workers only
// write to their own job. At most limit jobs are queued or running at once, so submit never blocks on a
// full pool queue.
type loader struct {
	name   string
	submit func(t worker.Task)
	limit  int
	logger logger.Logger

	inFlight atomic.Int32

	mu     sync.Mutex
	jobs   map[uuid.UUID]*loadJob
	failed map[uuid.UUID]uint64
	nextID int
}

func newLoader(name string, submit func(t worker.Task), limit int, l logger.Logger) *loader {
	return &loader{
		name:   name,
		submit: submit,
		limit:  max(limit, 1),
		logger: l,
		jobs:   make(map[uuid.UUID]*loadJob),
		failed: make(map[uuid.UUID]uint64),
	}
}

// newLoaderPool is the worker pool used when no pool was injected.
func newLoaderPool(workers int) worker.DynamicWorkerPool {
	return worker.NewDynamicWorkerPool(max(workers, 1), LoaderQueueSize, 1*time.Second)
}

// poll advances the job of id and returns its status. A job is started when none exists for this version,
// the version has not failed before and the pool has room; otherwise a later poll tries again. A failed job
// is logged once and dropped.
func (l *loader) poll(id uuid.UUID, version uint64, convert convertFunc) (LoadStatus, *loadJob) {
	l.mu.Lock()
	defer l.mu.Unlock()

	job, ok := l.jobs[id]
	if ok && job.version != version && job.load() != StatusLoading {
		delete(l.jobs, id)
		ok = false
	}
	if !ok {
		if v, failed := l.failed[id]; failed && v == version {
			return StatusNotLoaded, nil
		}
		if int(l.inFlight.Load()) >= l.limit {
			l.logger.Debugf("%s: %d conversions pending, %s waits", l.name, l.limit, id)
			return StatusNotLoaded, nil
		}
		job = &loadJob{version: version}
		job.status.Store(int32(StatusLoading))
		l.jobs[id] = job
		l.start(id, job, convert)
		return StatusLoading, job
	}

	status := job.load()
	if status == StatusNotLoaded {
		l.logger.Errorf("%s: background conversion of %s failed: %v", l.name, id, job.err)
		l.failed[id] = job.version
		delete(l.jobs, id)
		return StatusNotLoaded, nil
	}
	if job.version != version {
		// still converting stale data; poll again once it settles
		return StatusLoading, job
	}
	return status, job
}

func (l *loader) start(id uuid.UUID, job *loadJob, convert convertFunc) {
	l.nextID++
	l.inFlight.Add(1)
	l.submit(worker.Task{
		ID: l.nextID,
		Do: func() (result any, err error) {
			defer l.inFlight.Add(-1)
			defer func() {
				if rec := recover(); rec != nil {
					err = fmt.Errorf("conversion panicked: %v", rec)
				}
				if err != nil {
					job.err = err
					job.status.Store(int32(StatusNotLoaded))
				}
			}()
			records, count, skipped, cerr := convert()
			if cerr != nil {
				return nil, cerr
			}
			job.records, job.count, job.skipped = records, count, skipped
			job.status.Store(int32(StatusReady))
			return nil, nil
		},
	})
}

// loaded marks a ready job uploaded and drops its records.
func (l *loader) loaded(id uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if job, ok := l.jobs[id]; ok {
		job.records = nil
		job.status.Store(int32(StatusLoaded))
	}
}

// status reports the job state of id without starting anything.
func (l *loader) status(id uuid.UUID) LoadStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	if job, ok := l.jobs[id]; ok {
		return job.load()
	}
	return StatusNotLoaded
}

// forget drops the job and failure record of id so the next poll starts over. A running worker finishes
// into the orphaned job.
func (l *loader) forget(id uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.jobs, id)
	delete(l.failed, id)
}

func (l *loader) reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.jobs = make(map[uuid.UUID]*loadJob)
	l.failed = make(map[uuid.UUID]uint64)
}
