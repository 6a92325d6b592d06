package playback

import "novel-engine/server/internal/model"

// StepKind 是处理一个输入事件后的转移结果。
type StepKind int

const (
	// StepStay 留在当前动作：选项移动或被忽略的按键，需要重绘。
	StepStay StepKind = iota
	// StepContinue 关闭当前台词，推进到本场景的下一个动作。
	StepContinue
	// StepTransition 切换到 Target 场景。
	StepTransition
	StepMenu
	StepQuit
	StepGameOver
)

func (k StepKind) String() string {
	switch k {
	case StepStay:
		return "stay"
	case StepContinue:
		return "continue"
	case StepTransition:
		return "transition"
	case StepMenu:
		return "menu"
	case StepQuit:
		return "quit"
	default:
		return "game_over"
	}
}

// Step 是 Reduce 的输出。
type Step struct {
	Kind     StepKind
	Target   model.Target
	Selected int
}

// Reduce 只做状态转移，不触发渲染或等待输入。
// 约定：Quit 优先于一切；Cancel 次之；其余按动作类型解释。
// 指向 End 的 Choice 选项与 Jump 都视为游戏结束。
func Reduce(action model.Action, selected int, evt InputEvent) Step {
	switch evt {
	case InputQuit:
		return Step{Kind: StepQuit, Selected: selected}
	case InputCancel:
		return Step{Kind: StepMenu, Selected: selected}
	}

	switch a := action.(type) {
	case *model.Choice:
		options := a.Options()
		n := len(options)
		switch evt {
		case InputUp:
			return Step{Kind: StepStay, Selected: ((selected-1)%n + n) % n}
		case InputDown:
			return Step{Kind: StepStay, Selected: (selected + 1) % n}
		case InputConfirm:
			return leave(options[selected].Target, selected)
		default:
			return Step{Kind: StepStay, Selected: selected}
		}
	case *model.Jump:
		return leave(a.Target, selected)
	default:
		// Speak / Pose：导航键不关闭台词
		if evt == InputUp || evt == InputDown {
			return Step{Kind: StepStay, Selected: selected}
		}
		return Step{Kind: StepContinue, Selected: selected}
	}
}

func leave(target model.Target, selected int) Step {
	if target.IsEnd() {
		return Step{Kind: StepGameOver, Target: model.End, Selected: selected}
	}
	return Step{Kind: StepTransition, Target: target, Selected: selected}
}
