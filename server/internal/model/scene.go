package model

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Scene 是一个具名的动作序列，带播放游标和历史。
//
// 约定：
// - actions 只追加；一旦追加了带出口的动作（Choice/Jump），场景即封口。
// - cursor ∈ [0, len(actions)]，播放到末尾后归零。
// - 游标与历史只由当前拥有该场景的播放循环修改，不做并发保护。
type Scene struct {
	Name       string
	Background string

	actions  []Action
	history  []Action
	cursor   int
	outcomes []Target
}

func NewScene(name, background string) (*Scene, error) {
	if strings.TrimSpace(name) == "" {
		return nil, &ConfigurationError{Entity: "scene", Reason: "name is required"}
	}
	return &Scene{Name: name, Background: background}, nil
}

// Append 追加动作。最后一个动作已经声明出口时返回 StructureError。
func (s *Scene) Append(a Action) error {
	if a == nil {
		return &ConfigurationError{Entity: "scene " + s.Name, Reason: "nil action"}
	}
	if n := len(s.actions); n > 0 {
		last := s.actions[n-1]
		if len(last.OutgoingTargets()) > 0 {
			return &StructureError{Scene: s.Name, Last: last.String()}
		}
	}
	s.actions = append(s.actions, a)
	s.outcomes = append(s.outcomes, a.OutgoingTargets()...)
	return nil
}

// Advance 返回游标处的动作并记入历史；到达末尾时游标归零并返回 nil。
func (s *Scene) Advance() Action {
	if s.cursor < len(s.actions) {
		a := s.actions[s.cursor]
		s.history = append(s.history, a)
		s.cursor++
		return a
	}
	s.cursor = 0
	return nil
}

// Reset 把游标归零，历史保留。
func (s *Scene) Reset() { s.cursor = 0 }

// Rewind 让游标退回上一个已取出的动作，下次 Advance 重新返回它。
// 游标为 0 时不变；历史保留。
func (s *Scene) Rewind() {
	if s.cursor > 0 {
		s.cursor--
	}
}

func (s *Scene) Cursor() int { return s.cursor }

func (s *Scene) Len() int { return len(s.actions) }

// Terminated 表示场景已经被带出口的动作封口。
func (s *Scene) Terminated() bool {
	n := len(s.actions)
	return n > 0 && len(s.actions[n-1].OutgoingTargets()) > 0
}

func (s *Scene) Actions() []Action {
	out := make([]Action, len(s.actions))
	copy(out, s.actions)
	return out
}

func (s *Scene) History() []Action {
	out := make([]Action, len(s.history))
	copy(out, s.history)
	return out
}

// Outcomes 返回所有动作出口的扁平并集（按追加顺序，可重复）。
func (s *Scene) Outcomes() []Target {
	out := make([]Target, len(s.outcomes))
	copy(out, s.outcomes)
	return out
}

// Clone 复制出一个游标为 0、历史为空的新场景。动作本身不可变，可以共享。
func (s *Scene) Clone() *Scene {
	return &Scene{
		Name:       s.Name,
		Background: s.Background,
		actions:    s.Actions(),
		outcomes:   s.Outcomes(),
	}
}

// Serialize 生成翻译后的场景文档，每个动作的文本都经过 tr。
func (s *Scene) Serialize(ctx context.Context, tr Translator, source, target string) (SceneDocument, error) {
	doc := SceneDocument{
		Name:       s.Name,
		Background: s.Background,
		Actions:    make([]ActionDocument, 0, len(s.actions)),
	}
	for _, a := range s.actions {
		ad, err := a.Serialize(ctx, tr, source, target)
		if err != nil {
			return SceneDocument{}, fmt.Errorf("serialize scene %s: %w", s.Name, err)
		}
		doc.Actions = append(doc.Actions, ad)
	}
	return doc, nil
}

func (s *Scene) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s - %d/%d", s.Name, s.cursor+1, len(s.actions))
	for i, a := range s.actions {
		fmt.Fprintf(&sb, "\n  %d: %s", i+1, a)
	}
	return sb.String()
}

// ParseScene 从文档构造场景。每个动作都经过 Append，因此同样受封口约束。
// 任何一个动作出错都返回 nil 场景，不会产出半成品。
func ParseScene(doc SceneDocument, lookup CharacterLookup) (*Scene, error) {
	scene, err := NewScene(doc.Name, doc.Background)
	if err != nil {
		return nil, err
	}
	for i, ad := range doc.Actions {
		action, err := ParseAction(ad, lookup)
		if err != nil {
			var pe *ParseError
			if errors.As(err, &pe) {
				pe.Scene = doc.Name
				pe.Index = i
			}
			return nil, fmt.Errorf("load scene %s: %w", doc.Name, err)
		}
		if err := scene.Append(action); err != nil {
			return nil, fmt.Errorf("load scene %s: %w", doc.Name, err)
		}
	}
	return scene, nil
}
