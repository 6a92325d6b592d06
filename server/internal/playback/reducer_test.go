package playback

import (
	"testing"

	"novel-engine/server/internal/model"
)

func mustCharacter(t *testing.T) *model.Character {
	t.Helper()
	c, err := model.NewCharacter("HERO", "DEFAULT", map[string]string{"DEFAULT": "h.png"})
	if err != nil {
		t.Fatalf("new character: %v", err)
	}
	return c
}

// TestReduceChoiceNavigationWraps 验证上下键在选项间循环移动。
func TestReduceChoiceNavigationWraps(t *testing.T) {
	choice, err := model.NewChoice(mustCharacter(t), "?", []model.ChoiceOption{
		{Target: model.To("a"), Label: "A"},
		{Target: model.To("b"), Label: "B"},
		{Target: model.End, Label: "End"},
	}, "")
	if err != nil {
		t.Fatalf("new choice: %v", err)
	}

	step := Reduce(choice, 0, InputUp)
	if step.Kind != StepStay || step.Selected != 2 {
		t.Fatalf("expected wrap to 2, got %+v", step)
	}
	step = Reduce(choice, 2, InputDown)
	if step.Kind != StepStay || step.Selected != 0 {
		t.Fatalf("expected wrap to 0, got %+v", step)
	}
	step = Reduce(choice, 1, InputKey)
	if step.Kind != StepStay || step.Selected != 1 {
		t.Fatalf("expected other keys ignored, got %+v", step)
	}

	step = Reduce(choice, 1, InputConfirm)
	if step.Kind != StepTransition || step.Target != "b" {
		t.Fatalf("expected transition to b, got %+v", step)
	}
	step = Reduce(choice, 2, InputConfirm)
	if step.Kind != StepGameOver {
		t.Fatalf("expected game over, got %+v", step)
	}
}

// TestReduceQuitAndCancelTakePrecedence 验证 Quit/Cancel 对所有动作类型都优先生效。
func TestReduceQuitAndCancelTakePrecedence(t *testing.T) {
	hero := mustCharacter(t)
	speak, _ := model.NewSpeak(hero, "hi", "")
	jump, _ := model.NewJump(hero, "go", model.To("x"), "")
	choice, _ := model.NewChoice(hero, "?", []model.ChoiceOption{{Target: model.To("x"), Label: "X"}}, "")

	for _, action := range []model.Action{speak, jump, choice} {
		if got := Reduce(action, 0, InputQuit).Kind; got != StepQuit {
			t.Fatalf("%s: expected quit, got %s", action, got)
		}
		if got := Reduce(action, 0, InputCancel).Kind; got != StepMenu {
			t.Fatalf("%s: expected menu, got %s", action, got)
		}
	}
}

// TestReduceJumpLeavesOnAnyKey 验证 Jump 收到任意非退出按键即跳转，目标为空时结束游戏。
func TestReduceJumpLeavesOnAnyKey(t *testing.T) {
	hero := mustCharacter(t)
	jump, _ := model.NewJump(hero, "go", model.To("room2"), "")

	for _, evt := range []InputEvent{InputKey, InputConfirm, InputUp, InputDown} {
		step := Reduce(jump, 0, evt)
		if step.Kind != StepTransition || step.Target != "room2" {
			t.Fatalf("%s: expected transition, got %+v", evt, step)
		}
	}

	end, _ := model.NewJump(hero, "bye", model.End, "")
	if got := Reduce(end, 0, InputKey).Kind; got != StepGameOver {
		t.Fatalf("expected game over for end jump, got %s", got)
	}
}

// TestReduceSpeakIgnoresNavigation 验证台词不会被导航键关闭。
func TestReduceSpeakIgnoresNavigation(t *testing.T) {
	speak, _ := model.NewSpeak(mustCharacter(t), "hi", "")

	if got := Reduce(speak, 0, InputDown).Kind; got != StepStay {
		t.Fatalf("expected stay on navigation, got %s", got)
	}
	if got := Reduce(speak, 0, InputConfirm).Kind; got != StepContinue {
		t.Fatalf("expected continue on confirm, got %s", got)
	}
	if got := Reduce(speak, 0, InputKey).Kind; got != StepContinue {
		t.Fatalf("expected continue on key, got %s", got)
	}
}

// TestParseInputEvent 验证按键名映射。
func TestParseInputEvent(t *testing.T) {
	cases := map[string]InputEvent{
		"enter":  InputConfirm,
		"escape": InputCancel,
		"up":     InputUp,
		"down":   InputDown,
		"quit":   InputQuit,
		"space":  InputKey,
	}
	for name, want := range cases {
		got, err := ParseInputEvent(name)
		if err != nil || got != want {
			t.Fatalf("%s: expected %s, got %s (%v)", name, want, got, err)
		}
	}
	if _, err := ParseInputEvent(""); err == nil {
		t.Fatalf("expected error for empty key")
	}
}
