package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
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

// seedProject 创建一个最小资源目录：start 跳到结局，orphan 可选地不可达。
func seedProject(t *testing.T, withOrphan bool) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "resources")
	scenes := `["start"]`
	if withOrphan {
		scenes = `["start","orphan"]`
		writeFile(t, filepath.Join(dir, "scenes", "en", "orphan.json"),
			`{"name":"orphan","background":"bg.png","actions":[]}`)
	}
	writeFile(t, filepath.Join(dir, "assets.json"), `{"characters":["HERO"],"scenes":`+scenes+`}`)
	writeFile(t, filepath.Join(dir, "characters", "en", "HERO.json"),
		`{"name":"HERO","state":"DEFAULT","states":{"DEFAULT":"hero.png"}}`)
	writeFile(t, filepath.Join(dir, "scenes", "en", "start.json"),
		`{"name":"start","background":"bg.png","actions":[{"type":"go_to","character":"HERO","text":"The end","go_to":null}]}`)
	return dir
}

// TestValidateCommand 验证 validate 在有孤立场景时返回 1，干净时返回 0。
func TestValidateCommand(t *testing.T) {
	var out bytes.Buffer
	code := run(context.Background(), []string{"validate", "-resources", seedProject(t, true)}, &out)
	if code != 1 || !strings.Contains(out.String(), "unreachable scene: orphan") {
		t.Fatalf("expected failure naming orphan, got %d: %s", code, out.String())
	}

	out.Reset()
	code = run(context.Background(), []string{"validate", "-resources", seedProject(t, false)}, &out)
	if code != 0 || !strings.Contains(out.String(), "ok") {
		t.Fatalf("expected success, got %d: %s", code, out.String())
	}
}

// TestValidateAssetsFlag 验证 -assets 会报告缺失的立绘。
func TestValidateAssetsFlag(t *testing.T) {
	dir := seedProject(t, false)

	var out bytes.Buffer
	if code := run(context.Background(), []string{"validate", "-assets", "-resources", dir}, &out); code != 1 {
		t.Fatalf("expected missing asset failure, got %d: %s", code, out.String())
	}

	writeFile(t, filepath.Join(dir, "hero.png"), "png")
	out.Reset()
	if code := run(context.Background(), []string{"validate", "-assets", "-resources", dir}, &out); code != 0 {
		t.Fatalf("expected success with asset present, got %d: %s", code, out.String())
	}
}

// TestBuildAndExportCommands 验证 build 与 export 写出文件。
func TestBuildAndExportCommands(t *testing.T) {
	dir := seedProject(t, false)
	output := t.TempDir()

	var out bytes.Buffer
	if code := run(context.Background(), []string{"build", "-resources", dir, "-output", output}, &out); code != 0 {
		t.Fatalf("build failed: %s", out.String())
	}
	if _, err := os.Stat(filepath.Join(output, "resources", "scenes", "en", "start.json")); err != nil {
		t.Fatalf("expected built scene: %v", err)
	}

	pdf := filepath.Join(t.TempDir(), "script.pdf")
	if code := run(context.Background(), []string{"export", "-resources", dir, "-output", pdf}, &out); code != 0 {
		t.Fatalf("export failed: %s", out.String())
	}
	data, err := os.ReadFile(pdf)
	if err != nil || !strings.HasPrefix(string(data), "%PDF") {
		t.Fatalf("expected pdf output, got err=%v", err)
	}
}

// TestUnknownCommand 验证未知子命令返回用法说明。
func TestUnknownCommand(t *testing.T) {
	var out bytes.Buffer
	if code := run(context.Background(), []string{"init"}, &out); code != 2 || !strings.Contains(out.String(), "usage") {
		t.Fatalf("expected usage, got %d: %s", code, out.String())
	}
}

// TestSubcommandHelpExitsZero 验证子命令的 -h 只打印用法并以 0 退出。
func TestSubcommandHelpExitsZero(t *testing.T) {
	for _, cmd := range []string{"validate", "build", "export", "serve"} {
		var out bytes.Buffer
		if code := run(context.Background(), []string{cmd, "-h"}, &out); code != 0 {
			t.Fatalf("%s -h: expected exit 0, got %d", cmd, code)
		}
	}
}
