package playback

import (
	"context"

	"novel-engine/server/internal/model"
)

// Frame 是一次渲染请求，展示层据此绘制背景、角色与文本框。
type Frame struct {
	Scene          string               `json:"scene"`
	Background     string               `json:"background"`
	CharacterName  string               `json:"character_name"`
	CharacterImage string               `json:"character_image"`
	Kind           model.ActionKind     `json:"type"`
	Text           string               `json:"text,omitempty"`
	Choices        []model.ChoiceOption `json:"choices,omitempty"`
	SelectedIndex  int                  `json:"selected_index"`
}

// Renderer 由展示层实现，核心只负责产出 Frame。
type Renderer interface {
	RenderFrame(ctx context.Context, frame Frame) error
}

// NewFrame 由场景背景与动作的渲染数据组装 Frame。
func NewFrame(scene *model.Scene, payload model.RenderPayload, selected int) Frame {
	return Frame{
		Scene:          scene.Name,
		Background:     scene.Background,
		CharacterName:  payload.CharacterName,
		CharacterImage: payload.CharacterImage,
		Kind:           payload.Kind,
		Text:           payload.Text,
		Choices:        payload.Choices,
		SelectedIndex:  selected,
	}
}

// RecordingRenderer 记录所有帧，用于测试与调试。
type RecordingRenderer struct {
	Frames []Frame
}

func (r *RecordingRenderer) RenderFrame(_ context.Context, frame Frame) error {
	r.Frames = append(r.Frames, frame)
	return nil
}
