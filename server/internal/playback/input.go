package playback

import (
	"context"
	"fmt"
	"io"
)

// InputEvent 是展示层上报的离散输入。
type InputEvent string

const (
	InputQuit    InputEvent = "quit"    // 关闭窗口/断开连接，优先级最高
	InputUp      InputEvent = "up"      // 选项上移
	InputDown    InputEvent = "down"    // 选项下移
	InputConfirm InputEvent = "confirm" // 确认
	InputCancel  InputEvent = "cancel"  // Esc，回到菜单
	InputKey     InputEvent = "key"     // 其它任意按键
)

// ParseInputEvent 把客户端的按键名映射为 InputEvent，未知按键视为 InputKey。
func ParseInputEvent(name string) (InputEvent, error) {
	switch name {
	case "quit":
		return InputQuit, nil
	case "up", "arrow_up":
		return InputUp, nil
	case "down", "arrow_down":
		return InputDown, nil
	case "confirm", "enter", "return":
		return InputConfirm, nil
	case "cancel", "escape", "esc":
		return InputCancel, nil
	case "":
		return "", fmt.Errorf("empty input event")
	default:
		return InputKey, nil
	}
}

// InputSource 阻塞等待下一个输入事件。
// 播放循环只在这里挂起；实现方负责在 ctx 取消时返回。
type InputSource interface {
	Next(ctx context.Context) (InputEvent, error)
}

// ScriptedInput 按顺序回放预置事件，用于测试和离线回放。耗尽后返回 io.EOF。
type ScriptedInput struct {
	events []InputEvent
	pos    int
}

func NewScriptedInput(events ...InputEvent) *ScriptedInput {
	return &ScriptedInput{events: events}
}

func (s *ScriptedInput) Next(ctx context.Context) (InputEvent, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.pos >= len(s.events) {
		return "", io.EOF
	}
	evt := s.events[s.pos]
	s.pos++
	return evt, nil
}

// Remaining 返回尚未消费的事件数。
func (s *ScriptedInput) Remaining() int { return len(s.events) - s.pos }
