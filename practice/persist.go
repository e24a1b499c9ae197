package practice

import (
	"context"
	"log"
	"sync"
	"time"
)

const (
	persistWorkers = 4
	persistDepth   = 256
	persistTimeout = 5 * time.Second
)

type persistTask struct {
	sessionKey string
	fields     map[string]any
}

// persistQueue spreads session reconciliation writes over a fixed pool
// of workers. Every mutation enqueues a full snapshot, so a dropped or
// failed write is corrected by the next one.
type persistQueue struct {
	store SessionStore
	tasks chan persistTask
	wg    sync.WaitGroup
	once  sync.Once
}

func newPersistQueue(store SessionStore) *persistQueue {
	q := &persistQueue{
		store: store,
		tasks: make(chan persistTask, persistDepth),
	}
	for i := 0; i < persistWorkers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	return q
}

// enqueue never blocks the request path. When the queue is full the
// snapshot is dropped; the session's next mutation carries the full
// state again.
func (q *persistQueue) enqueue(sessionKey string, fields map[string]any) {
	select {
	case q.tasks <- persistTask{sessionKey: sessionKey, fields: fields}:
	default:
		log.Printf("[PRACTICE] persist queue full, dropping snapshot for session %s", sessionKey)
	}
}

func (q *persistQueue) worker() {
	defer q.wg.Done()
	for task := range q.tasks {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		if err := q.store.UpdateSession(ctx, task.sessionKey, task.fields); err != nil {
			log.Printf("[PRACTICE] session %s reconciliation failed: %v", task.sessionKey, err)
		}
		cancel()
	}
}

// Close drains the queue and stops the workers
func (q *persistQueue) Close() {
	q.once.Do(func() {
		close(q.tasks)
	})
	q.wg.Wait()
}
