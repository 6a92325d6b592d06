package api

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"novel-engine/server/internal/config"
	"novel-engine/server/internal/export"
	"novel-engine/server/internal/game"
	"novel-engine/server/internal/gateway"
	"novel-engine/server/internal/model"
	"novel-engine/server/internal/orchestrator"
	"novel-engine/server/internal/playback"
	"novel-engine/server/internal/session"
	"novel-engine/server/internal/timeline"
	"novel-engine/server/internal/validate"
)

// maxCachedSessions 限制同时保留的会话副本数
const maxCachedSessions = 1024

type Server struct {
	config   *config.Config
	game     *game.Game
	store    session.Store
	timeline timeline.Store
	now      func() time.Time
	logger   *log.Logger

	// sessions 保存停在菜单、等待恢复的会话场景副本（游标各自独立）。
	// 存档是浅的，副本丢失时会话从存档场景开头继续
	sessions   map[string]*game.Game
	sessionsMu sync.Mutex

	// streams 管理所有活跃的播放连接 (sessionID -> Conn)
	streams   map[string]*gateway.Conn
	streamsMu sync.Mutex

	upgrader websocket.Upgrader
}

// NewServer 创建 HTTP 服务。g 是加载好的模板游戏，只读。
func NewServer(cfg *config.Config, g *game.Game, store session.Store, timeline timeline.Store, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{
		config:   cfg,
		game:     g,
		store:    store,
		timeline: timeline,
		now:      time.Now,
		logger:   logger,
		sessions: make(map[string]*game.Game),
		streams:  make(map[string]*gateway.Conn),
	}
	s.upgrader = websocket.Upgrader{CheckOrigin: s.allowOrigin}
	return s
}

func (s *Server) Routes() http.Handler {
	engine := gin.New()
	engine.Use(gin.Logger(), gin.Recovery(), s.corsMiddleware())
	engine.GET("/healthz", s.handleHealthz)
	engine.GET("/api/scenes", s.handleScenes)
	engine.GET("/api/scenes/:name", s.handleScene)
	engine.GET("/api/characters", s.handleCharacters)
	engine.GET("/api/validate", s.handleValidate)
	engine.POST("/api/sessions", s.handleCreateSession)
	engine.GET("/api/sessions/:id", s.handleGetSession)
	engine.GET("/api/sessions/:id/timeline", s.handleTimeline)
	engine.GET("/api/sessions/:id/stream", s.handleSessionStream)
	engine.GET("/api/export/script.pdf", s.handleExportScript)
	return engine
}

// handleHealthz 返回服务健康状态。
func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "active_streams": s.activeStreams()})
}

type sceneSummary struct {
	Name       string         `json:"name"`
	Background string         `json:"background"`
	Actions    int            `json:"actions"`
	Outcomes   []model.Target `json:"outcomes"`
}

// handleScenes 按声明顺序返回场景概要。
func (s *Server) handleScenes(c *gin.Context) {
	scenes := s.game.Scenes()
	out := make([]sceneSummary, 0, len(scenes))
	for _, scene := range scenes {
		out = append(out, sceneSummary{
			Name:       scene.Name,
			Background: scene.Background,
			Actions:    scene.Len(),
			Outcomes:   scene.Outcomes(),
		})
	}
	c.JSON(http.StatusOK, out)
}

// handleScene 返回单个场景的文档形式（不翻译）。
func (s *Server) handleScene(c *gin.Context) {
	scene, err := s.game.Scene(c.Param("name"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	lang := s.config.Game.Language
	doc, err := scene.Serialize(c.Request.Context(), nil, lang, lang)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "serialize scene failed"})
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (s *Server) handleCharacters(c *gin.Context) {
	characters := s.game.Characters().Characters()
	out := make([]model.CharacterDocument, 0, len(characters))
	for _, character := range characters {
		out = append(out, character.Document())
	}
	c.JSON(http.StatusOK, out)
}

// handleValidate 返回场景图的可达性报告。
func (s *Server) handleValidate(c *gin.Context) {
	c.JSON(http.StatusOK, validate.Reachability(s.game.Scenes(), s.game.StartScene))
}

type createSessionRequest struct {
	Language string `json:"language"`
}

type createSessionResponse struct {
	SessionID string             `json:"session_id"`
	State     model.SessionState `json:"state"`
}

// handleCreateSession 创建新会话，存档从入口场景开始。
func (s *Server) handleCreateSession(c *gin.Context) {
	var req createSessionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
	}
	if req.Language == "" {
		req.Language = s.config.Game.Language
	}
	lang, err := config.CanonicalLocale(req.Language)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sessionID := uuid.NewString()
	// 开始会话只读模板游戏，副本在第一次播放时才创建
	state, err := orchestrator.New(s.game, s.store, s.timeline, s.now, s.logger).
		StartSession(c.Request.Context(), sessionID, lang)
	if err != nil {
		s.logger.Printf("[API] ❌ Failed to start session: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "start session failed"})
		return
	}
	c.JSON(http.StatusCreated, createSessionResponse{SessionID: sessionID, State: *state})
}

func (s *Server) handleGetSession(c *gin.Context) {
	state, err := s.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeSessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

// handleTimeline 返回会话事件，?after=N 只返回 seq 大于 N 的事件。
func (s *Server) handleTimeline(c *gin.Context) {
	sessionID := c.Param("id")
	if _, err := s.store.Get(c.Request.Context(), sessionID); err != nil {
		s.writeSessionError(c, err)
		return
	}

	var after int64
	if raw := c.Query("after"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "after must be a non-negative integer"})
			return
		}
		after = parsed
	}

	events, err := s.timeline.List(c.Request.Context(), sessionID, after)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list timeline failed"})
		return
	}
	c.JSON(http.StatusOK, events)
}

// handleSessionStream 升级为 WebSocket，在连接上播放会话直到 menu / quit / game_over。
func (s *Server) handleSessionStream(c *gin.Context) {
	sessionID := c.Param("id")
	s.logger.Printf("[API] 📞 WebSocket connection request for session: %s", sessionID)

	if _, err := s.store.Get(c.Request.Context(), sessionID); err != nil {
		s.writeSessionError(c, err)
		return
	}

	s.streamsMu.Lock()
	if _, busy := s.streams[sessionID]; busy {
		s.streamsMu.Unlock()
		c.JSON(http.StatusConflict, gin.H{"error": "session already streaming"})
		return
	}
	// 先占位，避免并发连接同一个会话
	s.streams[sessionID] = nil
	s.streamsMu.Unlock()
	var owned *gateway.Conn
	defer func() { s.releaseStream(sessionID, owned) }()

	ws, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Printf("[API] ❌ Failed to upgrade websocket: %v", err)
		return
	}

	conn := gateway.NewConn(sessionID, ws, gateway.ConnConfig{
		QueueCapacity: s.config.Gateway.QueueCapacity,
		PingInterval:  s.config.Gateway.PingInterval,
	}, s.logger)
	defer conn.Close()

	s.streamsMu.Lock()
	s.streams[sessionID] = conn
	s.streamsMu.Unlock()
	owned = conn

	if err := conn.Start(); err != nil {
		s.logger.Printf("[API] ❌ Failed to start stream %s: %v", sessionID, err)
		return
	}

	player := playback.NewPlayer(conn, conn, s.logger)
	outcome, err := s.orchestratorFor(sessionID).Run(c.Request.Context(), sessionID, player)
	// 只有回到菜单的会话需要保留游标，其余结果释放副本
	if err != nil || outcome.Status != model.StatusMenu {
		s.dropSession(sessionID)
	}
	// 播放已经结束，客户端收到结果后即可重新连接
	s.releaseStream(sessionID, conn)
	if err != nil {
		s.logger.Printf("[API] ⚠️  Session %s stopped: %v", sessionID, err)
		_ = conn.SendError(err.Error())
		return
	}
	_ = conn.SendOutcome(outcome)
	s.logger.Printf("[API] ✅ Session %s finished with %s (input stats %+v)", sessionID, outcome.Status, conn.Stats())
}

// handleExportScript 以 PDF 形式下载全部场景的剧本。
func (s *Server) handleExportScript(c *gin.Context) {
	c.Header("Content-Type", "application/pdf")
	c.Header("Content-Disposition", `attachment; filename="script.pdf"`)
	c.Status(http.StatusOK)
	if err := export.WriteScript(c.Writer, s.game.Title, s.game.Scenes()); err != nil {
		s.logger.Printf("[API] ❌ Failed to export script: %v", err)
	}
}

// orchestratorFor 为会话取得（必要时创建）独立的游戏副本并包装成编排器。
func (s *Server) orchestratorFor(sessionID string) *orchestrator.Orchestrator {
	s.sessionsMu.Lock()
	g, ok := s.sessions[sessionID]
	if !ok {
		if len(s.sessions) >= maxCachedSessions {
			s.evictIdleSessionLocked()
		}
		g = s.game.Clone()
		s.sessions[sessionID] = g
	}
	s.sessionsMu.Unlock()
	return orchestrator.New(g, s.store, s.timeline, s.now, s.logger)
}

// evictIdleSessionLocked 丢弃一个没有在播放的会话副本，调用方持有 sessionsMu。
func (s *Server) evictIdleSessionLocked() {
	s.streamsMu.Lock()
	defer s.streamsMu.Unlock()
	for id := range s.sessions {
		if _, streaming := s.streams[id]; !streaming {
			delete(s.sessions, id)
			s.logger.Printf("[API] evicted cached scenes of idle session %s", id)
			return
		}
	}
}

func (s *Server) dropSession(sessionID string) {
	s.sessionsMu.Lock()
	delete(s.sessions, sessionID)
	s.sessionsMu.Unlock()
}

func (s *Server) cachedSessions() int {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	return len(s.sessions)
}

// releaseStream 只在占位仍属于 owner 时释放，避免删掉新连接的占位。
func (s *Server) releaseStream(sessionID string, owner *gateway.Conn) {
	s.streamsMu.Lock()
	defer s.streamsMu.Unlock()
	if current, ok := s.streams[sessionID]; ok && current == owner {
		delete(s.streams, sessionID)
	}
}

func (s *Server) activeStreams() int {
	s.streamsMu.Lock()
	defer s.streamsMu.Unlock()
	return len(s.streams)
}

func (s *Server) writeSessionError(c *gin.Context, err error) {
	if errors.Is(err, session.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	s.logger.Printf("[API] ❌ Failed to load session: %v", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "load session failed"})
}

// allowOrigin 未配置白名单时放行所有来源
func (s *Server) allowOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(s.config.Gateway.AllowedOrigins) == 0 {
		return true
	}
	for _, allowed := range s.config.Gateway.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

func (s *Server) corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && s.allowOrigin(c.Request) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
			c.Header("Access-Control-Allow-Headers", "Content-Type")
			c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// Addr 返回监听地址
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
}
