package playback

import (
	"context"
	"fmt"
	"log"

	"novel-engine/server/internal/model"
)

// Outcome 是一次场景播放的结果，对应调用方的下一步：
//   - (scene, gameplay)：切换到 scene 并从头播放
//   - (End, menu)：回到主菜单，游标停在被打断的动作上
//   - (End, quit)：结束会话
//   - (End, game_over)：当前剧情线结束
type Outcome struct {
	Target model.Target `json:"target"`
	Status string       `json:"status"`
	// Played 是本次播放展示过的动作数。
	Played int `json:"played"`
}

// Player 驱动单个场景的播放。
// 单线程：等待输入是唯一的挂起点，期间没有其它代码修改场景。
type Player struct {
	renderer Renderer
	input    InputSource
	logger   *log.Logger
}

func NewPlayer(renderer Renderer, input InputSource, logger *log.Logger) *Player {
	if logger == nil {
		logger = log.Default()
	}
	return &Player{renderer: renderer, input: input, logger: logger}
}

// PlayScene 从场景当前游标开始播放，直到产生终止结果。
// 场景耗尽返回 game_over；渲染或输入通道本身出错时返回 error。
func (p *Player) PlayScene(ctx context.Context, scene *model.Scene) (Outcome, error) {
	played := 0
	for {
		action := scene.Advance()
		if action == nil {
			p.logger.Printf("[Player] scene %s exhausted after %d actions", scene.Name, played)
			return Outcome{Target: model.End, Status: model.StatusGameOver, Played: played}, nil
		}
		played++

		step, err := p.playAction(ctx, scene, action)
		if err != nil {
			scene.Rewind()
			return Outcome{Target: model.End, Status: model.StatusQuit, Played: played}, err
		}

		switch step.Kind {
		case StepContinue:
			continue
		case StepTransition:
			p.logger.Printf("[Player] %s -> %s", scene.Name, step.Target)
			return Outcome{Target: step.Target, Status: model.StatusGameplay, Played: played}, nil
		case StepMenu:
			// 当前动作还没有被关闭，恢复时重新展示它
			scene.Rewind()
			return Outcome{Target: model.End, Status: model.StatusMenu, Played: played}, nil
		case StepQuit:
			scene.Rewind()
			return Outcome{Target: model.End, Status: model.StatusQuit, Played: played}, nil
		default:
			return Outcome{Target: model.End, Status: model.StatusGameOver, Played: played}, nil
		}
	}
}

// playAction 渲染一个动作并循环处理输入，直到离开该动作。
func (p *Player) playAction(ctx context.Context, scene *model.Scene, action model.Action) (Step, error) {
	payload := action.Render()
	selected := 0
	for {
		if err := p.renderer.RenderFrame(ctx, NewFrame(scene, payload, selected)); err != nil {
			return Step{}, fmt.Errorf("render %s: %w", action, err)
		}

		evt, err := p.input.Next(ctx)
		if err != nil {
			return Step{}, fmt.Errorf("wait input: %w", err)
		}

		step := Reduce(action, selected, evt)
		if step.Kind != StepStay {
			return step, nil
		}
		selected = step.Selected
	}
}
