package orchestrator

import (
	"time"

	"novel-engine/server/internal/model"
)

// Reduce 只做“事实归约”，不触发外部调用。
// 存档可以由 timeline 回放重建：对同一组事件按 seq 顺序 Reduce 得到同一个 SessionState。
// start 是剧情结束后回到的入口场景。
func Reduce(state *model.SessionState, evt model.Event, start string, now time.Time) *model.SessionState {
	if state == nil {
		return nil
	}

	switch evt.Type {
	case model.EventSessionStarted, model.EventSceneStarted:
		if evt.Scene != "" {
			state.ActiveScene = evt.Scene
		}
	case model.EventSceneOutcome:
		state.ScenesPlayed++
		state.LastStatus = evt.Status
		switch evt.Status {
		case model.StatusGameplay:
			if evt.Target != nil && !evt.Target.IsEnd() {
				state.ActiveScene = string(*evt.Target)
			}
		case model.StatusGameOver:
			state.ActiveScene = start
		}
		// menu 与 quit 保留当前场景，读档后从这里继续
	default:
		return state
	}

	state.UpdatedAt = now
	return state
}
