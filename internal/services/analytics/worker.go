package analytics

import (
	"context"
	"sync"

	"github.com/geoinfer/metering/internal/models"
	fiberlog "github.com/gofiber/fiber/v2/log"
)

// Worker mirrors committed usage records into the analytics store without
// blocking the consumption path.
type Worker struct {
	service  *Service
	tasks    chan mirrorTask
	wg       sync.WaitGroup
	stopOnce sync.Once
	stopped  chan struct{}
}

type mirrorTask struct {
	records []models.UsageRecord
}

// NewWorker creates a mirror worker with the specified pool size
func NewWorker(service *Service, poolSize, bufferSize int) *Worker {
	w := &Worker{
		service: service,
		tasks:   make(chan mirrorTask, bufferSize),
		stopped: make(chan struct{}),
	}

	for i := 0; i < poolSize; i++ {
		w.wg.Add(1)
		go w.run()
	}

	return w
}

// Submit queues usage records for mirroring. When the buffer is full the
// task is dropped: the relational ledger remains the source of truth and
// the analytics store tolerates gaps.
func (w *Worker) Submit(records []models.UsageRecord) {
	if len(records) == 0 {
		return
	}
	select {
	case <-w.stopped:
		fiberlog.Warnf("analytics worker stopped, dropping %d usage records", len(records))
		return
	case w.tasks <- mirrorTask{records: records}:
	default:
		fiberlog.Warnf("analytics mirror buffer full, dropping %d usage records", len(records))
	}
}

func (w *Worker) run() {
	defer w.wg.Done()

	for {
		select {
		case <-w.stopped:
			return
		case task := <-w.tasks:
			if err := w.service.MirrorRecords(context.Background(), task.records); err != nil {
				fiberlog.Errorf("failed to mirror usage records: %v", err)
			}
		}
	}
}

// Stop gracefully stops the worker pool
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopped)
		w.wg.Wait()
	})
}
