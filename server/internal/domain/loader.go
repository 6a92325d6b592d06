package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"novel-engine/server/internal/game"
	"novel-engine/server/internal/model"
)

// 资源目录布局：
//
//	<resource>/assets.json
//	<resource>/characters/<locale>/<NAME>.json
//	<resource>/scenes/<locale>/<name>.json
const (
	ManifestFile    = "assets.json"
	CharactersDir   = "characters"
	ScenesDir       = "scenes"
	documentPerm    = 0o644
	directoryPerm   = 0o755
	documentPostfix = ".json"
)

// LoadManifest 读取 assets.json。
func LoadManifest(path string) (model.Manifest, error) {
	var manifest model.Manifest
	if err := readJSON(path, &manifest); err != nil {
		return model.Manifest{}, fmt.Errorf("load manifest: %w", err)
	}
	return manifest, nil
}

// LoadCharacter 从单个角色文件构造角色。
func LoadCharacter(path string) (*model.Character, error) {
	var doc model.CharacterDocument
	if err := readJSON(path, &doc); err != nil {
		return nil, fmt.Errorf("load character: %w", err)
	}
	c, err := model.CharacterFromDocument(doc)
	if err != nil {
		return nil, fmt.Errorf("load character %s: %w", path, err)
	}
	return c, nil
}

// LoadScene 从单个场景文件构造场景，角色通过 lookup 解析。
// 任何动作解析失败都不会返回半成品场景。
func LoadScene(path string, lookup model.CharacterLookup) (*model.Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load scene: %w", err)
	}
	var doc model.SceneDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &model.ParseError{
			Kind:  model.ParseInvalidDocument,
			Scene: strings.TrimSuffix(filepath.Base(path), documentPostfix),
			Index: -1,
			Err:   err,
		}
	}
	return model.ParseScene(doc, lookup)
}

// LoadGame 按清单加载某个语言下的全部角色与场景。
func LoadGame(resourceDir, locale, title, startScene string) (*game.Game, error) {
	manifest, err := LoadManifest(filepath.Join(resourceDir, ManifestFile))
	if err != nil {
		return nil, err
	}

	registry := model.NewRegistry()
	for _, name := range manifest.Characters {
		path := filepath.Join(resourceDir, CharactersDir, locale, model.CanonicalKey(name)+documentPostfix)
		c, err := LoadCharacter(path)
		if err != nil {
			return nil, err
		}
		if err := registry.Add(c); err != nil {
			return nil, err
		}
	}

	g := game.New(title, startScene, registry)
	for _, name := range manifest.Scenes {
		scene, err := LoadScene(filepath.Join(resourceDir, ScenesDir, locale, name+documentPostfix), registry)
		if err != nil {
			return nil, err
		}
		if err := g.AddScene(scene); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// WriteCharacter 把角色写到 <base>/<locale>/<NAME>.json。
func WriteCharacter(base, locale string, c *model.Character) error {
	path := filepath.Join(base, locale, model.CanonicalKey(c.Name)+documentPostfix)
	if err := writeJSON(path, c.Document()); err != nil {
		return fmt.Errorf("write character %s: %w", c.Name, err)
	}
	return nil
}

// WriteScene 把场景翻译成 target 语言后写到 <base>/<target>/<name>.json。
// 翻译失败时不会写出任何文件。
func WriteScene(ctx context.Context, scene *model.Scene, base string, tr model.Translator, source, target string) error {
	doc, err := scene.Serialize(ctx, tr, source, target)
	if err != nil {
		return fmt.Errorf("write scene %s: %w", scene.Name, err)
	}
	path := filepath.Join(base, target, scene.Name+documentPostfix)
	if err := writeJSON(path, doc); err != nil {
		return fmt.Errorf("write scene %s: %w", scene.Name, err)
	}
	return nil
}

// WriteManifest 写出 assets.json。
func WriteManifest(path string, manifest model.Manifest) error {
	if manifest.Characters == nil {
		manifest.Characters = []string{}
	}
	if manifest.Scenes == nil {
		manifest.Scenes = []string{}
	}
	if err := writeJSON(path, manifest); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// ManifestOf 根据游戏内容生成清单，顺序与注册顺序一致。
func ManifestOf(g *game.Game) model.Manifest {
	manifest := model.Manifest{
		Characters: []string{},
		Scenes:     g.SceneNames(),
	}
	for _, c := range g.Characters().Characters() {
		manifest.Characters = append(manifest.Characters, model.CanonicalKey(c.Name))
	}
	return manifest
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), directoryPerm); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, documentPerm)
}
