package model

// CharacterDocument 是角色文件 characters/<locale>/<NAME>.json 的结构。
type CharacterDocument struct {
	Name   string            `json:"name"`
	State  string            `json:"state"`
	States map[string]string `json:"states"`
}

// ActionDocument 是场景文件中单个动作的结构，type 必填。
type ActionDocument struct {
	Type      ActionKind     `json:"type"`
	Character string         `json:"character"`
	State     string         `json:"state,omitempty"`
	Text      string         `json:"text,omitempty"`
	Choices   []ChoiceOption `json:"choices,omitempty"`
	GoTo      *Target        `json:"go_to,omitempty"`
}

// SceneDocument 是场景文件 scenes/<locale>/<name>.json 的结构。
type SceneDocument struct {
	Name       string           `json:"name"`
	Background string           `json:"background"`
	Actions    []ActionDocument `json:"actions"`
}

// Manifest 是 assets.json，列出每种语言下需要加载的角色与场景。
type Manifest struct {
	Characters []string `json:"characters"`
	Scenes     []string `json:"scenes"`
}
