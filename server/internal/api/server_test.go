package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"novel-engine/server/internal/config"
	"novel-engine/server/internal/game"
	"novel-engine/server/internal/gateway"
	"novel-engine/server/internal/model"
	"novel-engine/server/internal/session"
	"novel-engine/server/internal/timeline"
	"novel-engine/server/internal/validate"
)

func buildGame(t *testing.T) *game.Game {
	t.Helper()
	hero, _ := model.NewCharacter("HERO", "", map[string]string{"DEFAULT": "h.png"})
	registry := model.NewRegistry()
	_ = registry.Add(hero)

	start, _ := model.NewScene("start", "bg.png")
	speak, _ := model.NewSpeak(hero, "Welcome", "")
	choice, _ := model.NewChoice(hero, "Where?", []model.ChoiceOption{
		{Target: model.To("room2"), Label: "Go"},
		{Target: model.End, Label: "End"},
	}, "")
	_ = start.Append(speak)
	_ = start.Append(choice)

	room, _ := model.NewScene("room2", "room.png")
	jump, _ := model.NewJump(hero, "Bye", model.End, "")
	_ = room.Append(jump)

	orphan, _ := model.NewScene("orphan", "x.png")

	g := game.New("Demo", "start", registry)
	_ = g.AddScene(start)
	_ = g.AddScene(room)
	_ = g.AddScene(orphan)
	return g
}

func newTestServer(t *testing.T) (*httptest.Server, *game.Game) {
	t.Helper()
	ts, srv := newServerWithHandle(t)
	return ts, srv.game
}

func newServerWithHandle(t *testing.T) (*httptest.Server, *Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	srv := NewServer(config.Default(), buildGame(t), session.NewInMemoryStore(), timeline.NewInMemoryStore(), nil)
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return ts, srv
}

func getJSON(t *testing.T, url string, wantStatus int, out any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		t.Fatalf("get %s: expected status %d, got %d", url, wantStatus, resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
}

func createSession(t *testing.T, baseURL string) string {
	t.Helper()
	resp, err := http.Post(baseURL+"/api/sessions", "application/json", bytes.NewReader([]byte(`{"language":"EN"}`)))
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var created createSessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.State.ActiveScene != "start" || created.State.Language != "en" {
		t.Fatalf("unexpected state: %+v", created.State)
	}
	return created.SessionID
}

// TestCatalogRoutes 验证场景、角色与可达性接口。
func TestCatalogRoutes(t *testing.T) {
	ts, _ := newTestServer(t)

	var scenes []sceneSummary
	getJSON(t, ts.URL+"/api/scenes", http.StatusOK, &scenes)
	if len(scenes) != 3 || scenes[0].Name != "start" || scenes[0].Actions != 2 {
		t.Fatalf("unexpected scenes: %+v", scenes)
	}

	var doc model.SceneDocument
	getJSON(t, ts.URL+"/api/scenes/start", http.StatusOK, &doc)
	if len(doc.Actions) != 2 || doc.Actions[1].Type != model.KindChoice {
		t.Fatalf("unexpected scene document: %+v", doc)
	}
	getJSON(t, ts.URL+"/api/scenes/nope", http.StatusNotFound, nil)

	var characters []model.CharacterDocument
	getJSON(t, ts.URL+"/api/characters", http.StatusOK, &characters)
	if len(characters) != 1 || characters[0].Name != "HERO" {
		t.Fatalf("unexpected characters: %+v", characters)
	}

	var report validate.Report
	getJSON(t, ts.URL+"/api/validate", http.StatusOK, &report)
	if len(report.Unreachable) != 1 || report.Unreachable[0] != "orphan" {
		t.Fatalf("unexpected report: %+v", report)
	}
}

// TestSessionNotFound 验证不存在的会话返回 404。
func TestSessionNotFound(t *testing.T) {
	ts, _ := newTestServer(t)
	getJSON(t, ts.URL+"/api/sessions/missing", http.StatusNotFound, nil)
	getJSON(t, ts.URL+"/api/sessions/missing/timeline", http.StatusNotFound, nil)
}

func readServerMessage(t *testing.T, ws *websocket.Conn) gateway.ServerMessage {
	t.Helper()
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg gateway.ServerMessage
	if err := ws.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

// TestStreamPlaysSession 验证通过 WebSocket 完整播放一局，并在 timeline 与存档中留下记录。
// 场景：确认欢迎台词，选择 room2，离开 room2 的跳转，最终 game_over。
func TestStreamPlaysSession(t *testing.T) {
	ts, template := newTestServer(t)
	sessionID := createSession(t, ts.URL)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/sessions/" + sessionID + "/stream"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.Close()

	if msg := readServerMessage(t, ws); msg.Type != gateway.MessageTypeSession {
		t.Fatalf("expected session message, got %+v", msg)
	}

	keys := []string{"enter", "enter", "space"}
	var frames []string
	for _, key := range keys {
		msg := readServerMessage(t, ws)
		if msg.Type != gateway.MessageTypeFrame {
			t.Fatalf("expected frame, got %+v", msg)
		}
		frames = append(frames, msg.Frame.Scene+":"+msg.Frame.Text)
		if err := ws.WriteJSON(gateway.ClientMessage{Type: gateway.MessageTypeInput, Key: key}); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if strings.Join(frames, "|") != "start:Welcome|start:Where?|room2:Bye" {
		t.Fatalf("unexpected frames: %v", frames)
	}

	msg := readServerMessage(t, ws)
	if msg.Type != gateway.MessageTypeOutcome || msg.Outcome.Status != model.StatusGameOver {
		t.Fatalf("expected game_over outcome, got %+v", msg)
	}

	var state model.SessionState
	getJSON(t, ts.URL+"/api/sessions/"+sessionID, http.StatusOK, &state)
	if state.ActiveScene != "start" || state.ScenesPlayed != 2 || state.LastStatus != model.StatusGameOver {
		t.Fatalf("unexpected state: %+v", state)
	}

	var events []model.Event
	getJSON(t, ts.URL+"/api/sessions/"+sessionID+"/timeline?after=1", http.StatusOK, &events)
	if len(events) != 4 || events[0].Seq != 2 {
		t.Fatalf("unexpected timeline: %+v", events)
	}

	// 模板游戏的游标不受会话播放影响
	start, _ := template.Scene("start")
	if start.Cursor() != 0 {
		t.Fatalf("template scene cursor changed")
	}
}

// playStream 连接会话并依次发送按键，每个按键前先读一帧，返回最终的结果消息。
func playStream(t *testing.T, baseURL, sessionID string, keys ...string) gateway.ServerMessage {
	t.Helper()
	url := "ws" + strings.TrimPrefix(baseURL, "http") + "/api/sessions/" + sessionID + "/stream"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.Close()

	if msg := readServerMessage(t, ws); msg.Type != gateway.MessageTypeSession {
		t.Fatalf("expected session message, got %+v", msg)
	}
	for _, key := range keys {
		if msg := readServerMessage(t, ws); msg.Type != gateway.MessageTypeFrame {
			t.Fatalf("expected frame, got %+v", msg)
		}
		if err := ws.WriteJSON(gateway.ClientMessage{Type: gateway.MessageTypeInput, Key: key}); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	msg := readServerMessage(t, ws)
	if msg.Type != gateway.MessageTypeOutcome {
		t.Fatalf("expected outcome, got %+v", msg)
	}
	return msg
}

// TestSessionScenesReleasedAfterEnding 验证创建会话不复制场景；回到菜单的会话保留副本，
// 剧情结束后副本被释放。
func TestSessionScenesReleasedAfterEnding(t *testing.T) {
	ts, srv := newServerWithHandle(t)
	sessionID := createSession(t, ts.URL)
	if n := srv.cachedSessions(); n != 0 {
		t.Fatalf("expected no cached scenes after create, got %d", n)
	}

	if msg := playStream(t, ts.URL, sessionID, "escape"); msg.Outcome.Status != model.StatusMenu {
		t.Fatalf("expected menu, got %+v", msg.Outcome)
	}
	if n := srv.cachedSessions(); n != 1 {
		t.Fatalf("expected menu session to keep its scenes, got %d", n)
	}

	// 恢复后重新展示欢迎台词，再选择结局
	if msg := playStream(t, ts.URL, sessionID, "enter", "down", "enter"); msg.Outcome.Status != model.StatusGameOver {
		t.Fatalf("expected game_over, got %+v", msg.Outcome)
	}
	if n := srv.cachedSessions(); n != 0 {
		t.Fatalf("expected scenes released after game_over, got %d", n)
	}
}

// TestExportScript 验证剧本导出为 PDF。
func TestExportScript(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, err := http.Get(ts.URL + "/api/export/script.pdf")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	_, _ = buf.ReadFrom(resp.Body)
	if resp.Header.Get("Content-Type") != "application/pdf" || !bytes.HasPrefix(buf.Bytes(), []byte("%PDF")) {
		t.Fatalf("expected pdf response, got %s", resp.Header.Get("Content-Type"))
	}
}
