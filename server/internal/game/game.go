package game

import (
	"novel-engine/server/internal/model"
)

// DefaultStartScene 是新会话的入口场景。
const DefaultStartScene = "start"

// Game 持有一局游戏的角色与场景，场景保留声明顺序。
// 场景集合只在加载阶段修改，播放期间只读。
type Game struct {
	Title      string
	StartScene string

	characters *model.Registry
	scenes     map[string]*model.Scene
	order      []string
}

func New(title, startScene string, characters *model.Registry) *Game {
	if startScene == "" {
		startScene = DefaultStartScene
	}
	if characters == nil {
		characters = model.NewRegistry()
	}
	return &Game{
		Title:      title,
		StartScene: startScene,
		characters: characters,
		scenes:     make(map[string]*model.Scene),
	}
}

// AddScene 注册场景，场景名全局唯一。
func (g *Game) AddScene(scene *model.Scene) error {
	if scene == nil {
		return &model.ConfigurationError{Entity: "game", Reason: "nil scene"}
	}
	if _, exists := g.scenes[scene.Name]; exists {
		return &model.ConfigurationError{Entity: "scene " + scene.Name, Reason: "already exists"}
	}
	g.scenes[scene.Name] = scene
	g.order = append(g.order, scene.Name)
	return nil
}

// Scene 按名字查找场景。
func (g *Game) Scene(name string) (*model.Scene, error) {
	scene, ok := g.scenes[name]
	if !ok {
		return nil, &model.LookupError{Kind: model.LookupUnknownScene, Name: name}
	}
	return scene, nil
}

// Scenes 按声明顺序返回场景。
func (g *Game) Scenes() []*model.Scene {
	out := make([]*model.Scene, 0, len(g.order))
	for _, name := range g.order {
		out = append(out, g.scenes[name])
	}
	return out
}

func (g *Game) SceneNames() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

func (g *Game) Characters() *model.Registry { return g.characters }

// Clone 为一个会话复制独立的场景（游标与历史独立），角色与动作共享。
// 同一个场景实例不能被两个播放循环同时使用，多会话场景下每个会话持有自己的副本。
func (g *Game) Clone() *Game {
	out := New(g.Title, g.StartScene, g.characters)
	for _, name := range g.order {
		out.scenes[name] = g.scenes[name].Clone()
		out.order = append(out.order, name)
	}
	return out
}
