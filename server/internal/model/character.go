package model

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultState 是未显式指定默认状态时使用的状态键。
const DefaultState = "DEFAULT"

// CanonicalKey 把角色名/状态键规范成统一的大写形式，读写两侧都必须经过它。
func CanonicalKey(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// Character 定义一个角色及其可用的立绘状态。
// 构造后只有默认状态可以修改。
type Character struct {
	Name   string
	state  string
	states map[string]string
}

// CharacterSnapshot 是动作构造时刻对角色的值拷贝，之后角色的修改不会影响它。
type CharacterSnapshot struct {
	Name  string `json:"name"`
	Image string `json:"image"`
	State string `json:"state"`
}

// NewCharacter 创建角色。
// states 非空时默认状态必须存在于 states 中；defaultState 为空时回退到 DEFAULT。
// states 为空的占位角色允许没有任何状态。
func NewCharacter(name, defaultState string, states map[string]string) (*Character, error) {
	if strings.TrimSpace(name) == "" {
		return nil, &ConfigurationError{Entity: "character", Reason: "name is required"}
	}

	normalized := make(map[string]string, len(states))
	for key, image := range states {
		canonical := CanonicalKey(key)
		if canonical == "" {
			return nil, &ConfigurationError{Entity: "character " + name, Reason: "empty state key"}
		}
		if _, dup := normalized[canonical]; dup {
			return nil, &ConfigurationError{Entity: "character " + name, Reason: "duplicate state " + canonical}
		}
		normalized[canonical] = image
	}

	state := CanonicalKey(defaultState)
	if len(normalized) > 0 {
		if state == "" {
			state = DefaultState
		}
		if _, ok := normalized[state]; !ok {
			return nil, &ConfigurationError{
				Entity: "character " + name,
				Reason: "default state " + state + " is not declared",
			}
		}
	}

	return &Character{Name: name, state: state, states: normalized}, nil
}

// State 返回当前默认状态。
func (c *Character) State() string { return c.state }

// States 返回状态表的副本。
func (c *Character) States() map[string]string {
	out := make(map[string]string, len(c.states))
	for k, v := range c.states {
		out[k] = v
	}
	return out
}

// StateKeys 按字典序返回状态键。
func (c *Character) StateKeys() []string {
	keys := make([]string, 0, len(c.states))
	for k := range c.states {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SetState 修改默认状态，已经构造出的动作不受影响。
func (c *Character) SetState(state string) error {
	key := CanonicalKey(state)
	if _, ok := c.states[key]; !ok {
		return &LookupError{Kind: LookupMissingState, Name: c.Name, Key: key}
	}
	c.state = key
	return nil
}

// Snapshot 按给定状态（为空则取默认状态）生成角色快照，状态键大小写不敏感。
func (c *Character) Snapshot(state string) (CharacterSnapshot, error) {
	key := CanonicalKey(state)
	if key == "" {
		key = c.state
		if len(c.states) == 0 {
			// 占位角色：没有立绘
			return CharacterSnapshot{Name: c.Name, State: key}, nil
		}
	}
	image, ok := c.states[key]
	if !ok {
		return CharacterSnapshot{}, &LookupError{Kind: LookupMissingState, Name: c.Name, Key: key}
	}
	return CharacterSnapshot{Name: c.Name, Image: image, State: key}, nil
}

// ValidateAssets 检查每个状态的图片是否存在于 basePath 下。
// 这是显式的校验步骤，加载和播放都不会自动调用。
func (c *Character) ValidateAssets(basePath string) error {
	if c.state == "" {
		return nil
	}
	for _, key := range c.StateKeys() {
		path := c.states[key]
		if _, err := os.Stat(filepath.Join(basePath, path)); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return &AssetMissingError{Character: c.Name, State: key, Path: path}
			}
			return err
		}
	}
	return nil
}

// Document 返回角色的文档形式，用于落盘。
func (c *Character) Document() CharacterDocument {
	return CharacterDocument{Name: c.Name, State: c.state, States: c.States()}
}

func (c *Character) String() string {
	return c.Name + "[" + c.state + "]"
}

// CharacterFromDocument 从文档构造角色，校验规则与 NewCharacter 相同。
func CharacterFromDocument(doc CharacterDocument) (*Character, error) {
	return NewCharacter(doc.Name, doc.State, doc.States)
}
