package model

import (
	"context"
	"errors"
	"fmt"
)

// ActionKind 是动作的类型标签，同时也是文档中的 type 字段取值。
type ActionKind string

const (
	KindPose   ActionKind = "action"
	KindSpeak  ActionKind = "talk"
	KindChoice ActionKind = "choice"
	KindJump   ActionKind = "go_to"
)

// Translator 是外部翻译能力，序列化时每个文本字段调用一次。
type Translator interface {
	Translate(ctx context.Context, text, source, target string) (string, error)
}

// Action 是剧情中的一步。实现是封闭的：Pose / Speak / Choice / Jump，
// 需要按类型分支时用 type switch。
type Action interface {
	Kind() ActionKind
	Character() CharacterSnapshot
	// OutgoingTargets 返回控制流可能去往的场景，非空即表示该动作会封口所在场景。
	OutgoingTargets() []Target
	Render() RenderPayload
	Serialize(ctx context.Context, tr Translator, source, target string) (ActionDocument, error)
	String() string

	sealed()
}

// ChoiceOption 是选项：目标场景 + 展示文本。
type ChoiceOption struct {
	Target Target `json:"go_to"`
	Label  string `json:"text"`
}

// RenderPayload 是交给展示层的结构化数据，Render 不产生副作用。
type RenderPayload struct {
	CharacterName  string         `json:"character_name"`
	CharacterImage string         `json:"character_image"`
	Kind           ActionKind     `json:"type"`
	Text           string         `json:"text,omitempty"`
	Choices        []ChoiceOption `json:"choices,omitempty"`
	Target         *Target        `json:"go_to,omitempty"`
}

type base struct {
	snapshot CharacterSnapshot
}

func newBase(c *Character, state string) (base, error) {
	if c == nil {
		return base{}, &ConfigurationError{Entity: "action", Reason: "character is required"}
	}
	snap, err := c.Snapshot(state)
	if err != nil {
		return base{}, err
	}
	return base{snapshot: snap}, nil
}

func (b base) Character() CharacterSnapshot { return b.snapshot }

func (b base) sealed() {}

func (b base) render(kind ActionKind) RenderPayload {
	return RenderPayload{
		CharacterName:  b.snapshot.Name,
		CharacterImage: b.snapshot.Image,
		Kind:           kind,
	}
}

func (b base) document(kind ActionKind) ActionDocument {
	return ActionDocument{
		Type:      kind,
		Character: CanonicalKey(b.snapshot.Name),
		State:     CanonicalKey(b.snapshot.State),
	}
}

func (b base) describe(kind ActionKind) string {
	return fmt.Sprintf("%s - %s[%s]", kind, b.snapshot.Name, b.snapshot.State)
}

// Pose 只展示角色，不带文本。只能在代码中构造，文档不接受这种类型。
type Pose struct {
	base
}

func NewPose(c *Character, state string) (*Pose, error) {
	b, err := newBase(c, state)
	if err != nil {
		return nil, err
	}
	return &Pose{base: b}, nil
}

func (a *Pose) Kind() ActionKind          { return KindPose }
func (a *Pose) OutgoingTargets() []Target { return nil }
func (a *Pose) Render() RenderPayload     { return a.render(KindPose) }
func (a *Pose) String() string            { return a.describe(KindPose) }

// Serialize 总是失败：场景文件只接受 talk / choice / go_to，写出的 Pose 无法再加载。
func (a *Pose) Serialize(context.Context, Translator, string, string) (ActionDocument, error) {
	return ActionDocument{}, &ConfigurationError{
		Entity: "action " + a.describe(KindPose),
		Reason: "pose actions cannot be written to scene documents",
	}
}

// Speak 是角色说一句话。
type Speak struct {
	base
	Text string
}

func NewSpeak(c *Character, text, state string) (*Speak, error) {
	b, err := newBase(c, state)
	if err != nil {
		return nil, err
	}
	return &Speak{base: b, Text: text}, nil
}

func (a *Speak) Kind() ActionKind          { return KindSpeak }
func (a *Speak) OutgoingTargets() []Target { return nil }
func (a *Speak) String() string            { return a.describe(KindSpeak) }

func (a *Speak) Render() RenderPayload {
	out := a.render(KindSpeak)
	out.Text = a.Text
	return out
}

func (a *Speak) Serialize(ctx context.Context, tr Translator, source, target string) (ActionDocument, error) {
	doc := a.document(KindSpeak)
	text, err := translate(ctx, tr, a.Text, source, target)
	if err != nil {
		return ActionDocument{}, err
	}
	doc.Text = text
	return doc, nil
}

// Choice 让玩家在若干选项中选择下一个场景，目标可以重复，End 表示结束游戏。
type Choice struct {
	base
	Text    string
	options []ChoiceOption
}

// NewChoice 创建选择动作，options 会被拷贝。选项不能为空。
func NewChoice(c *Character, text string, options []ChoiceOption, state string) (*Choice, error) {
	if len(options) == 0 {
		return nil, &ConfigurationError{Entity: "choice", Reason: "at least one option is required"}
	}
	b, err := newBase(c, state)
	if err != nil {
		return nil, err
	}
	copied := make([]ChoiceOption, len(options))
	copy(copied, options)
	return &Choice{base: b, Text: text, options: copied}, nil
}

func (a *Choice) Kind() ActionKind { return KindChoice }
func (a *Choice) String() string   { return a.describe(KindChoice) }

// Options 返回选项副本。
func (a *Choice) Options() []ChoiceOption {
	out := make([]ChoiceOption, len(a.options))
	copy(out, a.options)
	return out
}

func (a *Choice) OutgoingTargets() []Target {
	out := make([]Target, len(a.options))
	for i, opt := range a.options {
		out[i] = opt.Target
	}
	return out
}

func (a *Choice) Render() RenderPayload {
	out := a.render(KindChoice)
	out.Text = a.Text
	out.Choices = a.Options()
	return out
}

func (a *Choice) Serialize(ctx context.Context, tr Translator, source, target string) (ActionDocument, error) {
	doc := a.document(KindChoice)
	text, err := translate(ctx, tr, a.Text, source, target)
	if err != nil {
		return ActionDocument{}, err
	}
	doc.Text = text
	doc.Choices = make([]ChoiceOption, len(a.options))
	for i, opt := range a.options {
		label, err := translate(ctx, tr, opt.Label, source, target)
		if err != nil {
			return ActionDocument{}, err
		}
		doc.Choices[i] = ChoiceOption{Target: opt.Target, Label: label}
	}
	return doc, nil
}

// Jump 说完一句话后直接进入目标场景。
type Jump struct {
	base
	Text   string
	Target Target
}

func NewJump(c *Character, text string, target Target, state string) (*Jump, error) {
	b, err := newBase(c, state)
	if err != nil {
		return nil, err
	}
	return &Jump{base: b, Text: text, Target: target}, nil
}

func (a *Jump) Kind() ActionKind          { return KindJump }
func (a *Jump) OutgoingTargets() []Target { return []Target{a.Target} }
func (a *Jump) String() string            { return a.describe(KindJump) }

func (a *Jump) Render() RenderPayload {
	out := a.render(KindJump)
	out.Text = a.Text
	target := a.Target
	out.Target = &target
	return out
}

func (a *Jump) Serialize(ctx context.Context, tr Translator, source, target string) (ActionDocument, error) {
	doc := a.document(KindJump)
	text, err := translate(ctx, tr, a.Text, source, target)
	if err != nil {
		return ActionDocument{}, err
	}
	doc.Text = text
	goTo := a.Target
	doc.GoTo = &goTo
	return doc, nil
}

func translate(ctx context.Context, tr Translator, text, source, target string) (string, error) {
	if tr == nil {
		return text, nil
	}
	out, err := tr.Translate(ctx, text, source, target)
	if err != nil {
		var te *TranslationError
		if errors.As(err, &te) {
			return "", err
		}
		return "", &TranslationError{Source: source, Target: target, Text: text, Err: err}
	}
	return out, nil
}

// ParseAction 把动作文档还原为动作，角色名通过 lookup 大小写不敏感地解析。
// 只接受 talk / choice / go_to 三种类型。
func ParseAction(doc ActionDocument, lookup CharacterLookup) (Action, error) {
	if doc.Type == "" {
		return nil, &ParseError{Kind: ParseMissingKind, Index: -1}
	}
	switch doc.Type {
	case KindSpeak, KindChoice, KindJump:
	default:
		return nil, &ParseError{Kind: ParseUnknownKind, Index: -1, Value: string(doc.Type)}
	}
	if lookup == nil {
		return nil, &LookupError{Kind: LookupUnknownCharacter, Name: doc.Character}
	}
	character, err := lookup.Lookup(doc.Character)
	if err != nil {
		return nil, err
	}

	switch doc.Type {
	case KindChoice:
		return NewChoice(character, doc.Text, doc.Choices, doc.State)
	case KindJump:
		target := End
		if doc.GoTo != nil {
			target = *doc.GoTo
		}
		return NewJump(character, doc.Text, target, doc.State)
	default:
		return NewSpeak(character, doc.Text, doc.State)
	}
}
