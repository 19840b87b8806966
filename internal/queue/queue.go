package queue

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

var (
	ErrQueueEmpty  = errors.New("queue is empty")
	ErrQueueClosed = errors.New("queue is closed")
)

// Mode selects what a task scrapes off its URL.
type Mode string

const (
	ModeVariants    Mode = "variants"
	ModeNames       Mode = "names"
	ModeImages      Mode = "images"
	ModePrice       Mode = "price"
	ModeDescription Mode = "description"
	ModeCollection  Mode = "collection"
)

// Task is one pending page scrape.
type Task struct {
	ID        string
	URL       string
	Mode      Mode
	Priority  int
	Retries   int
	CreatedAt time.Time
}

type Queue interface {
	Push(task *Task) error
	Pop(ctx context.Context) (*Task, error)
	Size() int
	Close() error
}

// InMemoryQueue is a priority queue guarded by a condition variable. Pop
// blocks until a task arrives, the queue closes, or the context ends.
type InMemoryQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	tasks  []*Task
	closed bool
}

func NewInMemoryQueue() *InMemoryQueue {
	q := &InMemoryQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *InMemoryQueue) Push(task *Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	q.tasks = append(q.tasks, task)
	sort.SliceStable(q.tasks, func(i, j int) bool {
		return q.tasks[i].Priority > q.tasks[j].Priority
	})
	q.cond.Signal()
	return nil
}

func (q *InMemoryQueue) Pop(ctx context.Context) (*Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	// Wake every waiter when the context ends. The callback takes the lock,
	// so it cannot fire between the Err check and Wait below.
	stop := context.AfterFunc(ctx, func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		q.cond.Broadcast()
	})
	defer stop()

	for len(q.tasks) == 0 && !q.closed {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		q.cond.Wait()
	}

	if len(q.tasks) == 0 {
		return nil, ErrQueueClosed
	}

	task := q.tasks[0]
	q.tasks = q.tasks[1:]
	return task, nil
}

func (q *InMemoryQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.cond.Broadcast()
	return nil
}

// Drain pops every queued task without blocking for more.
func Drain(q Queue) []*Task {
	var tasks []*Task
	for q.Size() > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		task, err := q.Pop(ctx)
		cancel()
		if err != nil {
			break
		}
		tasks = append(tasks, task)
	}
	return tasks
}
