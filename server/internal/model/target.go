package model

import (
	"bytes"
	"encoding/json"
)

// Target 是动作可能跳转到的场景名；零值 End 表示终点（文档中的 null）。
type Target string

// End 表示“游戏结束”，不指向任何场景。
const End Target = ""

// To 构造指向某个场景的目标。
func To(scene string) Target { return Target(scene) }

func (t Target) IsEnd() bool { return t == End }

func (t Target) String() string {
	if t.IsEnd() {
		return "<end>"
	}
	return string(t)
}

func (t Target) MarshalJSON() ([]byte, error) {
	if t.IsEnd() {
		return []byte("null"), nil
	}
	return json.Marshal(string(t))
}

func (t *Target) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*t = End
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*t = Target(s)
	return nil
}
