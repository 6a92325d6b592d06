package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"novel-engine/server/internal/playback"
)

// Conn 把一个客户端 WebSocket 连接包装成播放循环的展示层：
//   - RenderFrame 把 Frame 推给客户端（playback.Renderer）
//   - Next 从输入队列取按键（playback.InputSource）
//
// 连接断开时输入队列关闭，播放循环收到 InputQuit 正常退出。
type Conn struct {
	sessionID string

	ws     *websocket.Conn
	wsLock sync.Mutex

	queue *InputQueue

	seqCounter int64
	seqLock    sync.Mutex

	closeOnce sync.Once
	closeChan chan struct{}

	config ConnConfig
	logger *log.Logger
}

// ConnConfig 连接配置
type ConnConfig struct {
	QueueCapacity int
	PingInterval  time.Duration
	WriteTimeout  time.Duration
}

func NewConn(sessionID string, ws *websocket.Conn, config ConnConfig, logger *log.Logger) *Conn {
	if logger == nil {
		logger = log.Default()
	}
	if config.PingInterval == 0 {
		config.PingInterval = 30 * time.Second
	}
	if config.WriteTimeout == 0 {
		config.WriteTimeout = 10 * time.Second
	}
	return &Conn{
		sessionID: sessionID,
		ws:        ws,
		queue:     NewInputQueue(sessionID, config.QueueCapacity, logger),
		closeChan: make(chan struct{}),
		config:    config,
		logger:    logger,
	}
}

// Start 启动读循环与心跳，并向客户端发送会话信息。
func (c *Conn) Start() error {
	if err := c.send(&ServerMessage{Type: MessageTypeSession, SessionID: c.sessionID}); err != nil {
		return err
	}
	go c.readLoop()
	go c.pingLoop()
	c.logger.Printf("[Gateway] started for session %s", c.sessionID)
	return nil
}

func (c *Conn) RenderFrame(_ context.Context, frame playback.Frame) error {
	return c.send(&ServerMessage{Type: MessageTypeFrame, Frame: &frame})
}

func (c *Conn) Next(ctx context.Context) (playback.InputEvent, error) {
	return c.queue.Next(ctx)
}

// SendOutcome 通知客户端本次播放的结果。
func (c *Conn) SendOutcome(outcome playback.Outcome) error {
	return c.send(&ServerMessage{Type: MessageTypeOutcome, Outcome: &outcome})
}

// SendError 发送错误消息给客户端
func (c *Conn) SendError(errMsg string) error {
	return c.send(&ServerMessage{Type: MessageTypeError, Error: errMsg})
}

func (c *Conn) Stats() QueueStats { return c.queue.Stats() }

// readLoop 从客户端读取按键
func (c *Conn) readLoop() {
	defer c.Close()

	// Close 会把 c.ws 置空，读循环只使用启动时拿到的连接；
	// 连接被关闭后 ReadMessage 返回错误，循环随之退出
	c.wsLock.Lock()
	ws := c.ws
	c.wsLock.Unlock()
	if ws == nil {
		return
	}

	for {
		messageType, data, err := ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Printf("[Gateway] client read error: %v", err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		if err := c.handleClientMessage(data); err != nil {
			c.logger.Printf("[Gateway] handle client message error: %v", err)
			// 发送错误给客户端，但不断开连接
			_ = c.SendError(err.Error())
		}
	}
}

func (c *Conn) handleClientMessage(data []byte) error {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("parse client message: %w", err)
	}
	if msg.Type != MessageTypeInput {
		return fmt.Errorf("unsupported message type %q", msg.Type)
	}
	evt, err := playback.ParseInputEvent(msg.Key)
	if err != nil {
		return err
	}
	return c.queue.Enqueue(evt)
}

// send 分配序列号并写出一条消息，写操作串行化。
func (c *Conn) send(msg *ServerMessage) error {
	c.seqLock.Lock()
	c.seqCounter++
	msg.Seq = c.seqCounter
	c.seqLock.Unlock()

	if msg.ServerTS.IsZero() {
		msg.ServerTS = time.Now()
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal server message: %w", err)
	}

	c.wsLock.Lock()
	defer c.wsLock.Unlock()

	if c.ws == nil {
		return errors.New("client connection is closed")
	}
	_ = c.ws.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write to client: %w", err)
	}
	return nil
}

// pingLoop 定期发送ping保持连接
func (c *Conn) pingLoop() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.closeChan:
			return
		case <-ticker.C:
			c.wsLock.Lock()
			if c.ws != nil {
				_ = c.ws.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(5*time.Second))
			}
			c.wsLock.Unlock()
		}
	}
}

// Close 关闭输入队列与连接，可重复调用。
func (c *Conn) Close() error {
	var closeErr error

	c.closeOnce.Do(func() {
		c.logger.Printf("[Gateway] closing session %s", c.sessionID)
		close(c.closeChan)
		c.queue.Close()

		c.wsLock.Lock()
		defer c.wsLock.Unlock()
		if c.ws == nil {
			return
		}
		_ = c.ws.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		closeErr = c.ws.Close()
		c.ws = nil
	})

	return closeErr
}
