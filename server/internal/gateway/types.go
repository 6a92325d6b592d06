package gateway

import (
	"time"

	"novel-engine/server/internal/playback"
)

// MessageType 定义了网关收发的消息类型
type MessageType string

const (
	// 客户端 → 服务端
	MessageTypeInput MessageType = "input" // 按键输入

	// 服务端 → 客户端
	MessageTypeSession MessageType = "session" // 会话信息（连接建立后第一条）
	MessageTypeFrame   MessageType = "frame"   // 需要展示的一帧
	MessageTypeOutcome MessageType = "outcome" // 场景/会话播放结束
	MessageTypeError   MessageType = "error"   // 错误信息
)

// ClientMessage 客户端发送给网关的消息（WebSocket文本帧）
type ClientMessage struct {
	Type MessageType `json:"type"`
	// Key 是按键名，见 playback.ParseInputEvent
	Key      string    `json:"key,omitempty"`
	ClientTS time.Time `json:"client_ts,omitempty"`
}

// ServerMessage 网关发送给客户端的消息
type ServerMessage struct {
	Type      MessageType       `json:"type"`
	Seq       int64             `json:"seq,omitempty"`
	SessionID string            `json:"session_id,omitempty"`
	Frame     *playback.Frame   `json:"frame,omitempty"`
	Outcome   *playback.Outcome `json:"outcome,omitempty"`
	Error     string            `json:"error,omitempty"`
	ServerTS  time.Time         `json:"server_ts"`
}
