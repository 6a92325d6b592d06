package model

// CharacterLookup 按名字（大小写不敏感）查找角色，场景加载时使用。
type CharacterLookup interface {
	Lookup(name string) (*Character, error)
}

// Registry 保存一局游戏的全部角色，保留声明顺序。
type Registry struct {
	byKey map[string]*Character
	order []string
}

func NewRegistry() *Registry {
	return &Registry{byKey: make(map[string]*Character)}
}

// Add 注册角色，同名（忽略大小写）角色只能注册一次。
func (r *Registry) Add(c *Character) error {
	if c == nil {
		return &ConfigurationError{Entity: "registry", Reason: "nil character"}
	}
	key := CanonicalKey(c.Name)
	if _, exists := r.byKey[key]; exists {
		return &ConfigurationError{Entity: "character " + c.Name, Reason: "already registered"}
	}
	r.byKey[key] = c
	r.order = append(r.order, key)
	return nil
}

// Lookup 实现 CharacterLookup。
func (r *Registry) Lookup(name string) (*Character, error) {
	c, ok := r.byKey[CanonicalKey(name)]
	if !ok {
		return nil, &LookupError{Kind: LookupUnknownCharacter, Name: name}
	}
	return c, nil
}

// Characters 按注册顺序返回角色。
func (r *Registry) Characters() []*Character {
	out := make([]*Character, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, r.byKey[key])
	}
	return out
}

// Names 按注册顺序返回规范化后的角色名。
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

func (r *Registry) Len() int { return len(r.order) }
