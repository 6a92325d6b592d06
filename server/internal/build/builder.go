package build

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"

	"novel-engine/server/internal/domain"
	"novel-engine/server/internal/game"
	"novel-engine/server/internal/model"
)

// Builder 把一局游戏输出成可分发的资源目录：
//
//	<output>/<resource>/assets.json
//	<output>/<resource>/characters/<locale>/<NAME>.json
//	<output>/<resource>/scenes/<locale>/<name>.json
//	<output>/<resource>/... 其它资源文件原样复制
type Builder struct {
	translator model.Translator
	source     string
	targets    []string
	logger     *log.Logger
}

// Result 汇总一次构建写出的内容
type Result struct {
	Root       string   `json:"root"`
	Locales    []string `json:"locales"`
	Characters int      `json:"characters"`
	Scenes     int      `json:"scenes"`
	Copied     int      `json:"copied"`
}

// New 创建构建器。source 是剧本语言，targets 是需要输出的语言。
func New(translator model.Translator, source string, targets []string, logger *log.Logger) *Builder {
	if logger == nil {
		logger = log.Default()
	}
	if len(targets) == 0 {
		targets = []string{source}
	}
	return &Builder{translator: translator, source: source, targets: targets, logger: logger}
}

// Build 翻译并写出全部语言的角色与场景，写出清单，再复制其余资源。
// 任何一步失败都会返回错误，已经写出的文件保留在输出目录中。
func (b *Builder) Build(ctx context.Context, g *game.Game, resourceDir, outputDir string) (Result, error) {
	root := filepath.Join(outputDir, filepath.Base(filepath.Clean(resourceDir)))
	result := Result{Root: root, Locales: b.targets}

	characterDir := filepath.Join(root, domain.CharactersDir)
	sceneDir := filepath.Join(root, domain.ScenesDir)
	for _, target := range b.targets {
		b.logger.Printf("[Builder] building locale %s (source %s)", target, b.source)
		for _, c := range g.Characters().Characters() {
			if err := domain.WriteCharacter(characterDir, target, c); err != nil {
				return result, err
			}
			result.Characters++
		}
		for _, scene := range g.Scenes() {
			if err := ctx.Err(); err != nil {
				return result, err
			}
			if err := domain.WriteScene(ctx, scene, sceneDir, b.translator, b.source, target); err != nil {
				return result, err
			}
			result.Scenes++
		}
	}

	if err := domain.WriteManifest(filepath.Join(root, domain.ManifestFile), domain.ManifestOf(g)); err != nil {
		return result, err
	}

	copied, err := copyResources(resourceDir, root)
	if err != nil {
		return result, err
	}
	result.Copied = copied
	b.logger.Printf("[Builder] ✅ wrote %d characters, %d scenes, copied %d files to %s",
		result.Characters, result.Scenes, result.Copied, root)
	return result, nil
}

// copyResources 复制图片等资源，跳过由构建重新生成的角色、场景与清单
func copyResources(src, dst string) (int, error) {
	copied := 0
	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if d.IsDir() {
			if rel == domain.CharactersDir || rel == domain.ScenesDir {
				return filepath.SkipDir
			}
			return nil
		}
		if rel == domain.ManifestFile {
			return nil
		}
		if err := copyFile(path, filepath.Join(dst, rel)); err != nil {
			return fmt.Errorf("copy %s: %w", rel, err)
		}
		copied++
		return nil
	})
	return copied, err
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
