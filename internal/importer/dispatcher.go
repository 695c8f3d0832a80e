package importer

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// probeTimeout bounds the broker availability check on each dispatch.
const probeTimeout = 1 * time.Second

type importTask struct {
	jobID    uuid.UUID
	filePath string
}

// Dispatcher hands accepted import jobs to a fixed pool of background
// workers. Before each dispatch it probes the Redis broker; when the
// broker is down or the queue is full, the job runs inline on the
// caller's goroutine so an upload is never silently dropped.
type Dispatcher struct {
	pipeline *Pipeline
	redis    *redis.Client
	logger   *logrus.Entry

	tasks chan importTask
	wg    sync.WaitGroup
}

func NewDispatcher(pipeline *Pipeline, redisClient *redis.Client, logger *logrus.Logger, workers int) *Dispatcher {
	if workers <= 0 {
		workers = 2
	}
	return &Dispatcher{
		pipeline: pipeline,
		redis:    redisClient,
		logger:   logger.WithField("component", "dispatcher"),
		tasks:    make(chan importTask, workers*4),
	}
}

// Start launches the worker goroutines. They drain the queue until ctx
// is cancelled.
func (d *Dispatcher) Start(ctx context.Context, workers int) {
	if workers <= 0 {
		workers = 2
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx, i)
	}
	d.logger.WithField("workers", workers).Info("Import workers started")
}

func (d *Dispatcher) worker(ctx context.Context, id int) {
	defer d.wg.Done()
	log := d.logger.WithField("worker", id)
	for {
		select {
		case <-ctx.Done():
			return
		case task := <-d.tasks:
			log.WithField("jobId", task.jobID).Info("Picked up import job")
			if err := d.pipeline.Run(task.jobID, task.filePath); err != nil {
				log.WithError(err).WithField("jobId", task.jobID).Error("Import job failed")
			}
		}
	}
}

// Wait blocks until all workers have exited.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Dispatch queues the job for background processing, or runs it inline
// when background processing is unavailable. It returns once the job is
// queued (async, nil error) or finished (sync); a failed synchronous run
// returns its error so submitters can report it.
func (d *Dispatcher) Dispatch(jobID uuid.UUID, filePath string) error {
	log := d.logger.WithField("jobId", jobID)

	if !d.brokerAvailable() {
		log.Warn("Broker unavailable, running import synchronously")
		return d.runInline(jobID, filePath)
	}

	select {
	case d.tasks <- importTask{jobID: jobID, filePath: filePath}:
		log.Info("Import job queued")
		return nil
	default:
		log.Warn("Import queue full, running import synchronously")
		return d.runInline(jobID, filePath)
	}
}

func (d *Dispatcher) runInline(jobID uuid.UUID, filePath string) error {
	if err := d.pipeline.Run(jobID, filePath); err != nil {
		d.logger.WithError(err).WithField("jobId", jobID).Error("Synchronous import failed")
		return err
	}
	return nil
}

func (d *Dispatcher) brokerAvailable() bool {
	if d.redis == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()
	return d.redis.Ping(ctx).Err() == nil
}
