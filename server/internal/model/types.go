package model

import "time"

// 会话事件类型。
const (
	EventSessionStarted = "session_started"
	EventSceneStarted   = "scene_started"
	EventSceneOutcome   = "scene_outcome"
)

// 场景播放结束时的状态，对应展示层的下一个界面。
const (
	StatusGameplay = "gameplay"
	StatusMenu     = "menu"
	StatusQuit     = "quit"
	StatusGameOver = "game_over"
)

// SessionState 是一局游戏的存档。
// 存档是浅的：只记录当前场景，不记录游标与历史。
type SessionState struct {
	// 唯一标识一个会话。
	SessionID string `json:"session_id"`
	// 剧本语言。
	Language string `json:"language"`
	// 当前场景，读档后从该场景开头播放。
	ActiveScene string `json:"active_scene"`
	// 最近一次场景播放的结果状态。
	LastStatus string `json:"last_status,omitempty"`
	// 已播放过的场景次数，仅用于展示。
	ScenesPlayed int `json:"scenes_played"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Event 表示时间线中的一个事件。
type Event struct {
	// Seq 由后端分配的单调序号，用于回放与幂等。
	Seq int64 `json:"seq,omitempty"`
	// SessionID 由编排器补齐。
	SessionID string `json:"session_id,omitempty"`
	// EventID 用于去重与重试幂等。
	EventID string `json:"event_id,omitempty"`

	// Type 见 Event* 常量。
	Type string `json:"type"`
	// Scene 是事件发生时的场景。
	Scene string `json:"scene,omitempty"`
	// Target/Status 记录场景播放的结果。
	Target *Target `json:"target,omitempty"`
	Status string  `json:"status,omitempty"`
	// Actions 是本次播放展示过的动作数。
	Actions int `json:"actions,omitempty"`

	ServerTS time.Time `json:"server_ts,omitempty"`
}
