package gateway

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"novel-engine/server/internal/playback"
)

var (
	ErrQueueClosed = errors.New("input queue closed")
	ErrQueueFull   = errors.New("input queue full")
)

// 队列容量：超过此值的按键将被丢弃（背压控制）
const DefaultQueueCapacity = 32

// InputQueue 把 WebSocket 读协程收到的按键交给播放循环。
// 读协程只 Enqueue，播放循环只 Next，两者互不阻塞。
// 关闭后 Next 先取完已缓冲的按键，之后固定返回 InputQuit。
type InputQueue struct {
	sessionID string
	ch        chan queuedInput
	done      chan struct{}
	closeOnce sync.Once
	logger    *log.Logger

	// 统计信息
	mu       sync.Mutex
	total    int64
	consumed int64
	dropped  int64
}

type queuedInput struct {
	evt       playback.InputEvent
	timestamp time.Time
}

// QueueStats 是队列的统计快照
type QueueStats struct {
	SessionID string `json:"session_id"`
	Total     int64  `json:"total"`
	Consumed  int64  `json:"consumed"`
	Dropped   int64  `json:"dropped"`
	Pending   int    `json:"pending"`
	Capacity  int    `json:"capacity"`
}

func NewInputQueue(sessionID string, capacity int, logger *log.Logger) *InputQueue {
	if logger == nil {
		logger = log.Default()
	}
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &InputQueue{
		sessionID: sessionID,
		ch:        make(chan queuedInput, capacity),
		done:      make(chan struct{}),
		logger:    logger,
	}
}

// Enqueue 非阻塞地加入一个按键，队列满时丢弃。
func (q *InputQueue) Enqueue(evt playback.InputEvent) error {
	select {
	case <-q.done:
		return ErrQueueClosed
	default:
	}

	select {
	case q.ch <- queuedInput{evt: evt, timestamp: time.Now()}:
		q.mu.Lock()
		q.total++
		q.mu.Unlock()
		return nil
	default:
		q.mu.Lock()
		q.dropped++
		q.mu.Unlock()
		q.logger.Printf("[InputQueue] ⚠️  Queue full, dropping input: session=%s key=%s", q.sessionID, evt)
		return ErrQueueFull
	}
}

// Next 阻塞等待下一个按键，实现 playback.InputSource。
// 队列关闭后一律返回 InputQuit，缓冲中未消费的按键作废。
func (q *InputQueue) Next(ctx context.Context) (playback.InputEvent, error) {
	select {
	case <-q.done:
		return playback.InputQuit, nil
	default:
	}

	select {
	case in := <-q.ch:
		// 按键与关闭同时就绪时 select 随机选择，这里再确认一次
		select {
		case <-q.done:
			return playback.InputQuit, nil
		default:
		}
		return q.take(in), nil
	case <-ctx.Done():
		return "", ctx.Err()
	case <-q.done:
		return playback.InputQuit, nil
	}
}

func (q *InputQueue) take(in queuedInput) playback.InputEvent {
	q.mu.Lock()
	q.consumed++
	q.mu.Unlock()
	if latency := time.Since(in.timestamp); latency > 5*time.Second {
		q.logger.Printf("[InputQueue] input waited %v before consumption: session=%s", latency, q.sessionID)
	}
	return in.evt
}

// Close 关闭队列，可重复调用。
func (q *InputQueue) Close() {
	q.closeOnce.Do(func() {
		close(q.done)
		stats := q.Stats()
		q.logger.Printf("[InputQueue] Closed for session %s: total=%d consumed=%d dropped=%d pending=%d",
			q.sessionID, stats.Total, stats.Consumed, stats.Dropped, stats.Pending)
	})
}

// Stats 获取队列统计信息
func (q *InputQueue) Stats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()

	return QueueStats{
		SessionID: q.sessionID,
		Total:     q.total,
		Consumed:  q.consumed,
		Dropped:   q.dropped,
		Pending:   len(q.ch),
		Capacity:  cap(q.ch),
	}
}
