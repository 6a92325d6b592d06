package orchestrator

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"novel-engine/server/internal/game"
	"novel-engine/server/internal/model"
	"novel-engine/server/internal/playback"
	"novel-engine/server/internal/session"
	"novel-engine/server/internal/timeline"
)

// ScenePlayer 播放单个场景，playback.Player 是默认实现。
type ScenePlayer interface {
	PlayScene(ctx context.Context, scene *model.Scene) (playback.Outcome, error)
}

// Orchestrator 把场景播放结果串成一局游戏。
//
// 职责与契约：
//   - append-first：场景开始与结果先写 Timeline，再归约存档。
//   - (scene, gameplay)：切换当前场景，并从该场景开头播放。
//   - (End, game_over)：剧情线结束，所有场景游标清零，存档回到入口场景。
//   - menu / quit：保留场景游标并返回给调用方。
type Orchestrator struct {
	game     *game.Game
	store    session.Store
	timeline timeline.Store
	now      func() time.Time
	logger   *log.Logger
}

func New(g *game.Game, store session.Store, timeline timeline.Store, now func() time.Time, logger *log.Logger) *Orchestrator {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Orchestrator{
		game:     g,
		store:    store,
		timeline: timeline,
		now:      now,
		logger:   logger,
	}
}

// StartSession 创建新存档，当前场景为入口场景。
func (o *Orchestrator) StartSession(ctx context.Context, sessionID, language string) (*model.SessionState, error) {
	if _, err := o.game.Scene(o.game.StartScene); err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}

	now := o.now()
	state := &model.SessionState{
		SessionID: sessionID,
		Language:  language,
		CreatedAt: now,
	}
	evt := model.Event{
		EventID:  uuid.NewString(),
		Type:     model.EventSessionStarted,
		Scene:    o.game.StartScene,
		ServerTS: now,
	}
	if err := o.record(ctx, state, &evt); err != nil {
		return nil, err
	}
	o.logger.Printf("[Orchestrator] session %s started at %s", sessionID, o.game.StartScene)
	return state, nil
}

// Run 从存档的当前场景开始连续播放，直到 menu、quit 或 game_over。
// 播放通道出错时存档保持在最近一次完整写入的状态。
func (o *Orchestrator) Run(ctx context.Context, sessionID string, player ScenePlayer) (playback.Outcome, error) {
	state, err := o.store.Get(ctx, sessionID)
	if err != nil {
		return playback.Outcome{}, err
	}

	for {
		scene, err := o.game.Scene(state.ActiveScene)
		if err != nil {
			return playback.Outcome{}, err
		}

		started := model.Event{
			EventID:  uuid.NewString(),
			Type:     model.EventSceneStarted,
			Scene:    scene.Name,
			ServerTS: o.now(),
		}
		if err := o.record(ctx, state, &started); err != nil {
			return playback.Outcome{}, err
		}

		outcome, err := player.PlayScene(ctx, scene)
		if err != nil {
			o.logger.Printf("[Orchestrator] ⚠️ session %s scene %s aborted: %v", sessionID, scene.Name, err)
			return outcome, err
		}

		if outcome.Status == model.StatusGameplay {
			// 目标不存在时不写结果，存档停在当前场景
			next, err := o.game.Scene(string(outcome.Target))
			if err != nil {
				return outcome, err
			}
			next.Reset()
		}

		target := outcome.Target
		finished := model.Event{
			EventID:  uuid.NewString(),
			Type:     model.EventSceneOutcome,
			Scene:    scene.Name,
			Target:   &target,
			Status:   outcome.Status,
			Actions:  outcome.Played,
			ServerTS: o.now(),
		}
		if err := o.record(ctx, state, &finished); err != nil {
			return outcome, err
		}
		o.logger.Printf("[Orchestrator] session %s: %s -> (%s, %s)", sessionID, scene.Name, outcome.Target, outcome.Status)

		switch outcome.Status {
		case model.StatusGameplay:
			continue
		case model.StatusGameOver:
			for _, s := range o.game.Scenes() {
				s.Reset()
			}
			return outcome, nil
		default:
			return outcome, nil
		}
	}
}

// record 先追加事件再归约并保存存档。
func (o *Orchestrator) record(ctx context.Context, state *model.SessionState, evt *model.Event) error {
	seq, err := o.timeline.Append(ctx, state.SessionID, evt)
	if err != nil {
		return fmt.Errorf("append %s: %w", evt.Type, err)
	}
	evt.Seq = seq

	Reduce(state, *evt, o.game.StartScene, evt.ServerTS)
	if err := o.store.Save(ctx, state); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}
