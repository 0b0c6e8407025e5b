// Package usagelog persists per-call usage metrics in the background so
// metering never sits on the request path.
package usagelog

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/saarportal/api-gateway/metrics"
	"github.com/saarportal/api-gateway/shared/models"
)

// MetricsStore is the persistence surface the pool writes through.
type MetricsStore interface {
	InsertUsageMetric(ctx context.Context, m *models.UsageMetric) error
	UpdateKeyUsage(ctx context.Context, keyID string, delta models.UsageDelta) error
}

// Job is one usage record waiting to be written. Delta is nil for
// rejected calls, which never advance the key's counters.
type Job struct {
	Metric     models.UsageMetric
	KeyID      string
	Delta      *models.UsageDelta
	RetryCount int
	CreatedAt  time.Time
}

// WorkerConfig configures the pool.
type WorkerConfig struct {
	WorkerCount int           `json:"worker_count"`
	QueueSize   int           `json:"queue_size"`
	MaxRetries  int           `json:"max_retries"`
	RetryDelay  time.Duration `json:"retry_delay"`
}

func DefaultWorkerConfig() *WorkerConfig {
	return &WorkerConfig{
		WorkerCount: 5,
		QueueSize:   1000,
		MaxRetries:  3,
		RetryDelay:  2 * time.Second,
	}
}

// WorkerPool drains queued usage records into the store. A full queue
// drops records rather than backpressuring request handling.
type WorkerPool struct {
	workers  int
	jobQueue chan *Job
	store    MetricsStore
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	config   *WorkerConfig
}

func NewWorkerPool(store MetricsStore, config *WorkerConfig) *WorkerPool {
	if config == nil {
		config = DefaultWorkerConfig()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerPool{
		workers:  config.WorkerCount,
		jobQueue: make(chan *Job, config.QueueSize),
		store:    store,
		ctx:      ctx,
		cancel:   cancel,
		config:   config,
	}
}

func (p *WorkerPool) Start() {
	log.Printf("Starting usage worker pool with %d workers", p.workers)
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop drains the queue and waits for in-flight writes to finish.
func (p *WorkerPool) Stop() {
	log.Println("Stopping usage worker pool...")
	p.cancel()
	close(p.jobQueue)
	p.wg.Wait()
	log.Println("Usage worker pool stopped")
}

// Submit enqueues a job, dropping it when the queue is full or the pool
// is shutting down.
func (p *WorkerPool) Submit(job *Job) bool {
	select {
	case <-p.ctx.Done():
		return false
	default:
	}
	select {
	case p.jobQueue <- job:
		metrics.UsageQueueDepth.Set(float64(len(p.jobQueue)))
		return true
	default:
		metrics.UsageRecordsDropped.Inc()
		log.Printf("Usage queue full, dropping record for key %s", job.KeyID)
		return false
	}
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			// Drain whatever is already queued before exiting.
			for {
				select {
				case job, ok := <-p.jobQueue:
					if !ok {
						return
					}
					p.process(id, job)
				default:
					return
				}
			}
		case job, ok := <-p.jobQueue:
			if !ok {
				return
			}
			p.process(id, job)
		}
	}
}

func (p *WorkerPool) process(workerID int, job *Job) {
	metrics.UsageQueueDepth.Set(float64(len(p.jobQueue)))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := p.store.InsertUsageMetric(ctx, &job.Metric); err != nil {
		log.Printf("Worker %d: failed to insert usage metric: %v", workerID, err)

		if job.RetryCount < p.config.MaxRetries {
			job.RetryCount++
			go func() {
				time.Sleep(p.config.RetryDelay * time.Duration(job.RetryCount))
				p.Submit(job)
			}()
		} else {
			log.Printf("Worker %d: max retries exceeded, dropping usage metric for key %s", workerID, job.KeyID)
		}
		return
	}

	// Counter updates are not retried to avoid double increments.
	if job.Delta != nil && job.KeyID != "" {
		if err := p.store.UpdateKeyUsage(ctx, job.KeyID, *job.Delta); err != nil {
			log.Printf("Worker %d: failed to update key usage for %s: %v", workerID, job.KeyID, err)
		}
	}
}

// Stats describes the pool's live queue state.
type Stats struct {
	WorkerCount      int     `json:"worker_count"`
	QueueSize        int     `json:"queue_size"`
	QueueCapacity    int     `json:"queue_capacity"`
	QueueUtilization float64 `json:"queue_utilization_percent"`
}

func (p *WorkerPool) GetStats() Stats {
	return Stats{
		WorkerCount:      p.workers,
		QueueSize:        len(p.jobQueue),
		QueueCapacity:    cap(p.jobQueue),
		QueueUtilization: float64(len(p.jobQueue)) / float64(cap(p.jobQueue)) * 100,
	}
}
