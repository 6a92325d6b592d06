package model

import (
	"errors"
	"fmt"
)

// 错误分类的哨兵值，具体错误类型通过 Is 与之匹配，调用方可以直接 errors.Is。
var (
	ErrConfiguration = errors.New("configuration error")
	ErrParse         = errors.New("parse error")
	ErrLookup        = errors.New("lookup error")
	ErrStructure     = errors.New("structure error")
	ErrAssetMissing  = errors.New("asset missing")
	ErrTranslation   = errors.New("translation error")
)

// ConfigurationError 表示角色/场景/动作的构造参数不合法。
type ConfigurationError struct {
	Entity string // 出错的对象，如 "character HERO"
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Entity, e.Reason)
}

func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

// ParseErrorKind 区分文档解析失败的原因。
type ParseErrorKind string

const (
	ParseMissingKind     ParseErrorKind = "missing_kind"
	ParseUnknownKind     ParseErrorKind = "unknown_kind"
	ParseInvalidDocument ParseErrorKind = "invalid_document"
)

// ParseError 表示结构化文档格式错误。
// Index 为出错动作在 actions 数组中的下标，不适用时为 -1。
type ParseError struct {
	Kind  ParseErrorKind
	Scene string
	Index int
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	msg := "parse error (" + string(e.Kind) + ")"
	if e.Scene != "" {
		msg += ": scene " + e.Scene
	}
	if e.Index >= 0 {
		msg += fmt.Sprintf(" action #%d", e.Index)
	}
	if e.Value != "" {
		msg += fmt.Sprintf(": %q", e.Value)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Is(target error) bool { return target == ErrParse }

func (e *ParseError) Unwrap() error { return e.Err }

// LookupErrorKind 区分查找失败的对象。
type LookupErrorKind string

const (
	LookupMissingState     LookupErrorKind = "missing_state"
	LookupUnknownCharacter LookupErrorKind = "unknown_character"
	LookupUnknownScene     LookupErrorKind = "unknown_scene"
)

// LookupError 表示按名字查找状态、角色或场景失败。
type LookupError struct {
	Kind LookupErrorKind
	Name string // 角色名或场景名
	Key  string // 状态键（仅 MissingState）
}

func (e *LookupError) Error() string {
	switch e.Kind {
	case LookupMissingState:
		return fmt.Sprintf("lookup error: character %s has no state %q", e.Name, e.Key)
	case LookupUnknownCharacter:
		return fmt.Sprintf("lookup error: unknown character %q", e.Name)
	default:
		return fmt.Sprintf("lookup error: unknown scene %q", e.Name)
	}
}

func (e *LookupError) Is(target error) bool { return target == ErrLookup }

// StructureError 表示违反场景结构约束，目前只有 SceneTerminated 一种。
type StructureError struct {
	Scene string
	Last  string // 封口动作的描述
}

func (e *StructureError) Error() string {
	return fmt.Sprintf("structure error: scene %s already terminated by %s", e.Scene, e.Last)
}

func (e *StructureError) Is(target error) bool { return target == ErrStructure }

// AssetMissingError 表示角色某个状态引用的图片在磁盘上不存在。
type AssetMissingError struct {
	Character string
	State     string
	Path      string
}

func (e *AssetMissingError) Error() string {
	return fmt.Sprintf("asset missing: character %s state %s: image %s does not exist", e.Character, e.State, e.Path)
}

func (e *AssetMissingError) Is(target error) bool { return target == ErrAssetMissing }

// TranslationError 包装翻译服务的失败。
type TranslationError struct {
	Source string
	Target string
	Text   string
	Err    error
}

func (e *TranslationError) Error() string {
	return fmt.Sprintf("translation error %s->%s: %v", e.Source, e.Target, e.Err)
}

func (e *TranslationError) Is(target error) bool { return target == ErrTranslation }

func (e *TranslationError) Unwrap() error { return e.Err }
