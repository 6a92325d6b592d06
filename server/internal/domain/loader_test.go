package domain

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"novel-engine/server/internal/model"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func seedResources(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ManifestFile), `{"characters":["hero"],"scenes":["start","room2"]}`)
	writeFile(t, filepath.Join(dir, CharactersDir, "en", "HERO.json"),
		`{"name":"HERO","state":"DEFAULT","states":{"DEFAULT":"hero.png","SAD":"hero_sad.png"}}`)
	writeFile(t, filepath.Join(dir, ScenesDir, "en", "start.json"), `{
		"name":"start","background":"bg.png",
		"actions":[
			{"type":"talk","character":"HERO","text":"Welcome"},
			{"type":"choice","character":"HERO","text":"Where?","choices":[
				{"go_to":"room2","text":"Go"},{"go_to":null,"text":"End"}]}
		]}`)
	writeFile(t, filepath.Join(dir, ScenesDir, "en", "room2.json"), `{
		"name":"room2","background":"room.png",
		"actions":[{"type":"go_to","character":"hero","state":"sad","text":"Bye","go_to":null}]}`)
	return dir
}

// TestLoadGameFromManifest 验证按 assets.json 加载角色与场景，并保持清单顺序。
func TestLoadGameFromManifest(t *testing.T) {
	dir := seedResources(t)

	g, err := LoadGame(dir, "en", "Demo", "")
	if err != nil {
		t.Fatalf("load game: %v", err)
	}
	names := g.SceneNames()
	if len(names) != 2 || names[0] != "start" || names[1] != "room2" {
		t.Fatalf("unexpected scenes: %v", names)
	}
	start, _ := g.Scene("start")
	if start.Len() != 2 {
		t.Fatalf("expected 2 actions, got %d", start.Len())
	}
	outcomes := start.Outcomes()
	if len(outcomes) != 2 || outcomes[0] != "room2" || !outcomes[1].IsEnd() {
		t.Fatalf("unexpected outcomes: %v", outcomes)
	}
	room, _ := g.Scene("room2")
	if snap := room.Actions()[0].Character(); snap.Image != "hero_sad.png" || snap.State != "SAD" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

// TestLoadSceneInvalidJSON 验证文件不是合法 JSON 时返回 invalid_document 解析错误。
func TestLoadSceneInvalidJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.json")
	writeFile(t, path, `{"name":`)

	scene, err := LoadScene(path, model.NewRegistry())
	var pe *model.ParseError
	if scene != nil || !errors.As(err, &pe) || pe.Kind != model.ParseInvalidDocument || pe.Scene != "broken" {
		t.Fatalf("expected invalid_document parse error, got %v", err)
	}

	if _, err := LoadScene(filepath.Join(dir, "absent.json"), model.NewRegistry()); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

// TestLoadGameMissingCharacter 验证场景引用未注册角色时加载失败。
func TestLoadGameMissingCharacter(t *testing.T) {
	dir := seedResources(t)
	writeFile(t, filepath.Join(dir, ScenesDir, "en", "room2.json"),
		`{"name":"room2","background":"room.png","actions":[{"type":"talk","character":"GHOST","text":"boo"}]}`)

	if _, err := LoadGame(dir, "en", "Demo", ""); !errors.Is(err, model.ErrLookup) {
		t.Fatalf("expected lookup error, got %v", err)
	}
}

type suffixTranslator struct{ calls int }

func (s *suffixTranslator) Translate(_ context.Context, text, _, target string) (string, error) {
	s.calls++
	return text + " [" + target + "]", nil
}

// TestWriteAndReloadRoundTrip 验证写出角色、翻译后的场景和清单后能重新加载。
func TestWriteAndReloadRoundTrip(t *testing.T) {
	src, err := LoadGame(seedResources(t), "en", "Demo", "")
	if err != nil {
		t.Fatalf("load game: %v", err)
	}

	out := t.TempDir()
	for _, c := range src.Characters().Characters() {
		if err := WriteCharacter(filepath.Join(out, CharactersDir), "fr", c); err != nil {
			t.Fatalf("write character: %v", err)
		}
	}
	tr := &suffixTranslator{}
	for _, scene := range src.Scenes() {
		if err := WriteScene(context.Background(), scene, filepath.Join(out, ScenesDir), tr, "en", "fr"); err != nil {
			t.Fatalf("write scene: %v", err)
		}
	}
	if err := WriteManifest(filepath.Join(out, ManifestFile), ManifestOf(src)); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	// Welcome, Where?, Go, End, Bye
	if tr.calls != 5 {
		t.Fatalf("expected 5 translations, got %d", tr.calls)
	}

	reloaded, err := LoadGame(out, "fr", "Demo", "")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	start, _ := reloaded.Scene("start")
	payload := start.Actions()[0].Render()
	if !strings.HasSuffix(payload.Text, "[fr]") {
		t.Fatalf("expected translated text, got %q", payload.Text)
	}
	if got := start.Outcomes(); len(got) != 2 || got[0] != "room2" || !got[1].IsEnd() {
		t.Fatalf("targets must survive translation, got %v", got)
	}
}
