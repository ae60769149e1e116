package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
)

var (
	ErrInvalidJobType   = errors.New("invalid job type")
	ErrPermanentFailure = errors.New("permanent failure")
	ErrQueueFull        = errors.New("job queue full")
	ErrStopped          = errors.New("worker pool stopped")
)

type ExecutorFunc func(ctx context.Context, j *Job) error

// WorkerPool runs jobs on a fixed number of workers fed by a bounded queue.
type WorkerPool struct {
	wg            *sync.WaitGroup
	jobChan       chan *Job
	context       context.Context
	cancelContext context.CancelFunc
	logger        *log.Logger

	capacity    uint
	workerCount uint

	mu        sync.RWMutex
	executors map[string]ExecutorFunc
	stopped   bool
	counts    map[State]int
}

type WorkerPoolStatus struct {
	JobQueueStatus
	Capacity    int `json:"poolCapacity"`
	WorkerCount int `json:"workerCount"`
	QueueSize   int `json:"queueSize"`
}

type JobQueueStatus struct {
	JobsAccepted    int `json:"jobsAccepted"`
	JobsNotAccepted int `json:"jobsNotAccepted"`
	JobsErrored     int `json:"jobsErrored"`
	JobsFailed      int `json:"jobsFailed"`
	JobsCompleted   int `json:"jobsCompleted"`
}

func NewWorkerPool(capacity uint, workerCount uint, opts ...WorkerPoolOption) *WorkerPool {
	ctx, cancel := context.WithCancel(context.Background())

	pool := &WorkerPool{
		wg:            &sync.WaitGroup{},
		jobChan:       make(chan *Job, capacity),
		context:       ctx,
		cancelContext: cancel,
		executors:     make(map[string]ExecutorFunc),
		counts:        make(map[State]int),

		capacity:    capacity,
		workerCount: workerCount,
	}

	// Go through options
	for _, opt := range opts {
		opt(pool)
	}

	if pool.logger == nil {
		pool.logger = log.New()
	}

	pool.startWorkers()

	return pool
}

func (wp *WorkerPool) Status() (WorkerPoolStatus, error) {
	wp.mu.RLock()
	defer wp.mu.RUnlock()

	if wp.stopped {
		return WorkerPoolStatus{}, ErrStopped
	}

	return WorkerPoolStatus{
		JobQueueStatus: JobQueueStatus{
			JobsAccepted:    wp.counts[Accepted],
			JobsNotAccepted: wp.counts[NoAvailableWorkers],
			JobsErrored:     wp.counts[Error],
			JobsFailed:      wp.counts[Failed],
			JobsCompleted:   wp.counts[Complete],
		},
		Capacity:    int(wp.capacity),
		WorkerCount: int(wp.workerCount),
		QueueSize:   len(wp.jobChan),
	}, nil
}

func (wp *WorkerPool) RegisterExecutor(jobType string, executorF ExecutorFunc) {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	wp.executors[jobType] = executorF
}

// CreateJob constructs a new Job for type `jobType` ready for scheduling.
func (wp *WorkerPool) CreateJob(jobType, subject string, payload interface{}) (*Job, error) {
	wp.mu.RLock()
	_, exists := wp.executors[jobType]
	wp.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: %q", ErrInvalidJobType, jobType)
	}

	return newJob(jobType, subject, payload), nil
}

// Schedule will try to immediately schedule the run of a job. It never
// blocks; when the queue is full the job is finished as NoAvailableWorkers
// and ErrQueueFull is returned.
func (wp *WorkerPool) Schedule(j *Job) error {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	if wp.stopped {
		j.finish(Failed, ErrStopped.Error())
		return ErrStopped
	}

	if !wp.tryEnqueue(j) {
		wp.counts[NoAvailableWorkers]++
		j.finish(NoAvailableWorkers, ErrQueueFull.Error())
		return ErrQueueFull
	}

	wp.counts[Accepted]++
	j.setState(Accepted, "")

	return nil
}

// Run creates and schedules a job in one step.
func (wp *WorkerPool) Run(jobType, subject string, payload interface{}) (*Job, error) {
	j, err := wp.CreateJob(jobType, subject, payload)
	if err != nil {
		return nil, err
	}
	return j, wp.Schedule(j)
}

// Stop cancels the context passed to running executors, discards queued
// jobs and waits for the workers to exit.
func (wp *WorkerPool) Stop() {
	wp.mu.Lock()
	if wp.stopped {
		wp.mu.Unlock()
		return
	}
	wp.stopped = true
	close(wp.jobChan)
	wp.mu.Unlock()

	wp.cancelContext()
	wp.wg.Wait()
}

func (wp *WorkerPool) startWorkers() {
	for i := uint(0); i < wp.workerCount; i++ {
		wp.wg.Add(1)
		go func() {
			defer wp.wg.Done()
			for job := range wp.jobChan {
				if job == nil {
					break
				}

				wp.process(job)
			}
		}()
	}
}

// tryEnqueue must be called with wp.mu held.
func (wp *WorkerPool) tryEnqueue(job *Job) bool {
	select {
	case wp.jobChan <- job:
		return true
	default:
		return false
	}
}

func (wp *WorkerPool) process(job *Job) {
	if wp.context.Err() != nil {
		job.finish(Failed, ErrStopped.Error())
		return
	}

	wp.mu.RLock()
	executor, exists := wp.executors[job.Type]
	wp.mu.RUnlock()

	if !exists {
		wp.logger.
			WithFields(log.Fields{"jobID": job.ID, "jobType": job.Type}).
			Warn("Could not process job, no registered executor for type")
		wp.finish(job, Failed, ErrInvalidJobType.Error())
		return
	}

	err := executor(wp.context, job)
	if err != nil {
		state := Error
		if errors.Is(err, ErrPermanentFailure) {
			state = Failed
		}
		wp.logger.
			WithFields(log.Fields{"error": err, "jobID": job.ID, "jobType": job.Type, "subject": job.Subject}).
			Warn("Job execution resulted with error")
		wp.finish(job, state, err.Error())
		return
	}

	wp.finish(job, Complete, "")
}

func (wp *WorkerPool) finish(job *Job, state State, errMsg string) {
	wp.mu.Lock()
	wp.counts[state]++
	wp.mu.Unlock()

	job.finish(state, errMsg)
}

func PermanentFailure(err error) error {
	return fmt.Errorf("%w: %s", ErrPermanentFailure, err.Error())
}
