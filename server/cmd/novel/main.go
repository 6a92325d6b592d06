package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"novel-engine/server/internal/api"
	"novel-engine/server/internal/build"
	"novel-engine/server/internal/config"
	"novel-engine/server/internal/domain"
	"novel-engine/server/internal/export"
	"novel-engine/server/internal/game"
	"novel-engine/server/internal/session"
	"novel-engine/server/internal/timeline"
	"novel-engine/server/internal/translate"
	"novel-engine/server/internal/validate"
)

const usage = `usage: novel <command> [flags]

commands:
  serve      run the HTTP / WebSocket server
  validate   check scene reachability (and assets with -assets)
  build      write characters and translated scenes for every language
  export     write the script of every scene as a PDF
`

func main() {
	// .env 可选：本地开发时放 API Key，缺失不是错误
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("load .env: %v", err)
	}
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout))
}

func run(ctx context.Context, args []string, stdout io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stdout, usage)
		return 2
	}

	var err error
	switch args[0] {
	case "serve":
		err = runServe(ctx, args[1:])
	case "validate":
		err = runValidate(args[1:], stdout)
	case "build":
		err = runBuild(ctx, args[1:], stdout)
	case "export":
		err = runExport(args[1:], stdout)
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stdout, "unknown command %q\n\n%s", args[0], usage)
		return 2
	}

	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		var failed *validationFailed
		if !errors.As(err, &failed) {
			log.Printf("%s: %v", args[0], err)
		}
		return 1
	}
	return 0
}

// commonFlags 是所有子命令共享的参数
type commonFlags struct {
	configPath string
	resources  string
}

func newFlagSet(name string) (*flag.FlagSet, *commonFlags) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	common := &commonFlags{}
	fs.StringVar(&common.configPath, "config", "server/configs/config.yaml", "config file path")
	fs.StringVar(&common.resources, "resources", "", "resource folder (overrides game.resource_folder)")
	return fs, common
}

// loadConfig 读取配置；使用默认路径且文件不存在时退回默认配置
func (f *commonFlags) loadConfig(fs *flag.FlagSet) (*config.Config, error) {
	explicit := false
	fs.Visit(func(fl *flag.Flag) {
		if fl.Name == "config" {
			explicit = true
		}
	})

	var cfg *config.Config
	if _, err := os.Stat(f.configPath); err != nil && !explicit && errors.Is(err, os.ErrNotExist) {
		cfg = config.Default()
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	} else {
		loaded, err := config.Load(f.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if f.resources != "" {
		cfg.Game.ResourceFolder = f.resources
	}
	return cfg, nil
}

func loadGame(cfg *config.Config) (*game.Game, error) {
	g, err := domain.LoadGame(cfg.Game.ResourceFolder, cfg.Game.Language, cfg.Game.Title, cfg.Game.StartScene)
	if err != nil {
		return nil, fmt.Errorf("load game: %w", err)
	}
	log.Printf("loaded %d characters and %d scenes from %s (%s)",
		g.Characters().Len(), len(g.SceneNames()), cfg.Game.ResourceFolder, cfg.Game.Language)
	return g, nil
}

func setupLogging(cfg config.LoggingConfig) (io.Closer, error) {
	if cfg.Output == "" || cfg.Output == "stdout" {
		log.SetOutput(os.Stdout)
		return io.NopCloser(nil), nil
	}
	f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	log.SetOutput(f)
	return f, nil
}

func runServe(ctx context.Context, args []string) error {
	fs, common := newFlagSet("serve")
	addr := fs.String("addr", "", "http listen address (overrides server.host/port)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := common.loadConfig(fs)
	if err != nil {
		return err
	}
	logFile, err := setupLogging(cfg.Logging)
	if err != nil {
		return err
	}
	defer logFile.Close()

	g, err := loadGame(cfg)
	if err != nil {
		return err
	}

	var store session.Store
	switch cfg.Storage.Driver {
	case config.DriverSQLite:
		sqliteStore, err := session.OpenSQLite(cfg.Storage.SQLitePath)
		if err != nil {
			return err
		}
		defer sqliteStore.Close()
		store = sqliteStore
	default:
		store = session.NewInMemoryStore()
	}

	server := api.NewServer(cfg, g, store, timeline.NewInMemoryStore(), nil)
	listen := server.Addr()
	if *addr != "" {
		listen = *addr
	}
	httpServer := &http.Server{
		Addr:        listen,
		Handler:     server.Routes(),
		ReadTimeout: cfg.Server.ReadTimeout,
		// WebSocket 播放是长连接，WriteTimeout 由网关自行控制
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Printf("novel server listening on %s", listen)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
		log.Printf("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	}
}

// validationFailed 表示校验完成但发现问题，报告已经输出
type validationFailed struct{ problems int }

func (e *validationFailed) Error() string {
	return fmt.Sprintf("validation found %d problem(s)", e.problems)
}

func runValidate(args []string, stdout io.Writer) error {
	fs, common := newFlagSet("validate")
	assets := fs.Bool("assets", false, "also check that every character image exists")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := common.loadConfig(fs)
	if err != nil {
		return err
	}
	g, err := loadGame(cfg)
	if err != nil {
		return err
	}

	report := validate.Reachability(g.Scenes(), g.StartScene)
	problems := 0
	fmt.Fprintf(stdout, "%d scenes, %d edges, %d ending edges (start: %s)\n",
		len(report.Incoming), len(report.Edges), report.EndingEdges, report.Start)
	for _, name := range report.Unreachable {
		fmt.Fprintf(stdout, "unreachable scene: %s\n", name)
		problems++
	}
	for _, edge := range report.Dangling {
		fmt.Fprintf(stdout, "dangling target: %s -> %s\n", edge.From, edge.To)
		problems++
	}

	if *assets {
		for _, c := range g.Characters().Characters() {
			if err := c.ValidateAssets(cfg.Game.ResourceFolder); err != nil {
				fmt.Fprintf(stdout, "%v\n", err)
				problems++
			}
		}
	}

	if problems > 0 {
		return &validationFailed{problems: problems}
	}
	fmt.Fprintln(stdout, "ok")
	return nil
}

func runBuild(ctx context.Context, args []string, stdout io.Writer) error {
	fs, common := newFlagSet("build")
	output := fs.String("output", "", "output folder (overrides paths.output)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := common.loadConfig(fs)
	if err != nil {
		return err
	}
	if *output != "" {
		cfg.Paths.Output = *output
	}
	g, err := loadGame(cfg)
	if err != nil {
		return err
	}

	tr, err := translate.New(ctx, cfg.Translation)
	if err != nil {
		return err
	}
	defer tr.Close()

	result, err := build.New(tr, cfg.Game.Language, cfg.Game.Languages, nil).
		Build(ctx, g, cfg.Game.ResourceFolder, cfg.Paths.Output)
	if err != nil {
		return err
	}
	hits, misses := tr.Stats()
	fmt.Fprintf(stdout, "built %v into %s (%d scenes, %d characters, %d files copied; translation cache %d hits / %d misses)\n",
		result.Locales, result.Root, result.Scenes, result.Characters, result.Copied, hits, misses)
	return nil
}

func runExport(args []string, stdout io.Writer) error {
	fs, common := newFlagSet("export")
	output := fs.String("output", "", "PDF path (overrides paths.script)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := common.loadConfig(fs)
	if err != nil {
		return err
	}
	if *output != "" {
		cfg.Paths.Script = *output
	}
	g, err := loadGame(cfg)
	if err != nil {
		return err
	}

	f, err := os.Create(cfg.Paths.Script)
	if err != nil {
		return fmt.Errorf("create %s: %w", cfg.Paths.Script, err)
	}
	if err := export.WriteScript(f, g.Title, g.Scenes()); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "wrote %s\n", cfg.Paths.Script)
	return nil
}
