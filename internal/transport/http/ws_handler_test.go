package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"quizmaster/internal/app"
	"quizmaster/internal/domain"
	"quizmaster/internal/infra/memory"
)

func TestWebSocketSessionFlow(t *testing.T) {
	server, progress := newTestServer(t)

	conn := dial(t, server, "/ws?category=math&userId=u1&name=Alice")
	defer conn.Close()

	var started struct {
		SessionID string `json:"sessionId"`
		Total     int    `json:"total"`
		Question  struct {
			Text    string   `json:"question"`
			Options []string `json:"options"`
		} `json:"question"`
	}
	readInto(t, conn, "started", &started)
	if started.SessionID == "" || started.Total != 2 {
		t.Fatalf("unexpected started payload %+v", started)
	}

	option := indexOf(started.Question.Options, correctText(started.Question.Text))
	send(t, conn, map[string]any{"type": "answer", "payload": map[string]any{"option": option}})

	var answered struct {
		Feedback struct {
			Correct bool `json:"correct"`
		} `json:"feedback"`
	}
	readInto(t, conn, "answered", &answered)
	if !answered.Feedback.Correct {
		t.Fatalf("expected correct feedback")
	}

	send(t, conn, map[string]any{"type": "next"})
	var question struct {
		CurrentIndex int `json:"currentIndex"`
		Question     struct {
			Text    string   `json:"question"`
			Options []string `json:"options"`
		} `json:"question"`
	}
	readInto(t, conn, "question", &question)
	if question.CurrentIndex != 1 {
		t.Fatalf("expected second question, got %d", question.CurrentIndex)
	}

	wrong := (indexOf(question.Question.Options, correctText(question.Question.Text)) + 1) % len(question.Question.Options)
	send(t, conn, map[string]any{"type": "answer", "payload": map[string]any{"option": wrong}})
	readInto(t, conn, "answered", nil)

	var finished struct {
		Reason  string         `json:"reason"`
		Outcome domain.Outcome `json:"outcome"`
		Review  struct {
			Questions []domain.Question `json:"questions"`
		} `json:"review"`
	}
	readInto(t, conn, "finished", &finished)
	if finished.Reason != "completed" || finished.Outcome.FinalScore != 10 || finished.Outcome.Total != 2 {
		t.Fatalf("unexpected finished payload %+v", finished)
	}
	if len(finished.Review.Questions) != 2 {
		t.Fatalf("expected review of 2 questions, got %d", len(finished.Review.Questions))
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		pool, _ := progress.WrongAnswers(context.Background(), "u1")
		if len(pool) == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected the missed question in the remediation pool, got %d", len(pool))
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestWebSocketIgnoresUnsupportedAndRejectsEarlyNext(t *testing.T) {
	server, _ := newTestServer(t)

	conn := dial(t, server, "/ws?category=math&mode=time_attack&duration=30")
	defer conn.Close()
	readInto(t, conn, "started", nil)

	send(t, conn, map[string]any{"type": "next"})
	var failure struct {
		Message string `json:"message"`
	}
	readInto(t, conn, "error", &failure)
	if failure.Message != domain.ErrQuestionNotAnswered.Error() {
		t.Fatalf("unexpected error %q", failure.Message)
	}

	send(t, conn, map[string]any{"type": "dance"})
	readInto(t, conn, "error", nil)

	send(t, conn, map[string]any{"type": "exit"})
	readInto(t, conn, "exited", nil)
}

func TestWebSocketUnknownCategory(t *testing.T) {
	server, _ := newTestServer(t)

	conn := dial(t, server, "/ws?category=astronomy")
	defer conn.Close()

	var failure struct {
		Message string `json:"message"`
	}
	readInto(t, conn, "error", &failure)
	if !strings.Contains(failure.Message, domain.ErrNoQuestions.Error()) {
		t.Fatalf("expected configuration error, got %q", failure.Message)
	}
}

func TestWebSocketRequiresCategory(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Get(server.URL + "/ws?userId=u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestWebSocketChallengeUsesStoredTarget(t *testing.T) {
	server, _ := newTestServer(t)

	body := strings.NewReader(`{"challengerId":"u2","challengerName":"Bob","targetId":"u1","categoryId":"math","scoreToBeat":20}`)
	resp, err := http.Post(server.URL+"/challenges", "application/json", body)
	if err != nil {
		t.Fatalf("post challenge: %v", err)
	}
	var challenge domain.Challenge
	if err := json.NewDecoder(resp.Body).Decode(&challenge); err != nil {
		t.Fatalf("decode challenge: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated || challenge.ID == "" {
		t.Fatalf("expected created challenge, got %d %+v", resp.StatusCode, challenge)
	}

	conn := dial(t, server, "/ws?userId=u1&name=Alice&challengeId="+challenge.ID+"&target=0&challenger=Mallory")
	defer conn.Close()
	var started struct {
		Total    int `json:"total"`
		Question struct {
			Text    string   `json:"question"`
			Options []string `json:"options"`
		} `json:"question"`
	}
	readInto(t, conn, "started", &started)
	if started.Total != 2 {
		t.Fatalf("expected the math bank, got %d questions", started.Total)
	}

	option := indexOf(started.Question.Options, correctText(started.Question.Text))
	send(t, conn, map[string]any{"type": "answer", "payload": map[string]any{"option": option}})
	readInto(t, conn, "answered", nil)
	send(t, conn, map[string]any{"type": "exit"})
	readInto(t, conn, "exited", nil)

	resp, err = http.Get(server.URL + "/challenges/" + challenge.ID)
	if err != nil {
		t.Fatalf("get challenge: %v", err)
	}
	defer resp.Body.Close()
	var stored domain.Challenge
	if err := json.NewDecoder(resp.Body).Decode(&stored); err != nil {
		t.Fatalf("decode stored challenge: %v", err)
	}
	if stored.Status != domain.ChallengePending || stored.ScoreToBeat != 20 {
		t.Fatalf("exited challenge must stay pending, got %+v", stored)
	}
}

func TestPlayerEndpoints(t *testing.T) {
	server, progress := newTestServer(t)
	_ = progress.UpdateHighScore(context.Background(), "u1", "math-classic", 20)

	resp, err := http.Get(server.URL + "/players/u1/progress")
	if err != nil {
		t.Fatalf("get progress: %v", err)
	}
	var got domain.Progress
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode progress: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || got.HighScores["math-classic"] != 20 {
		t.Fatalf("unexpected progress %d %+v", resp.StatusCode, got)
	}

	resp, err = http.Get(server.URL + "/challenges/missing")
	if err != nil {
		t.Fatalf("get challenge: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}

	resp, err = http.Post(server.URL+"/challenges", "application/json", strings.NewReader(`{"targetId":"u1","categoryId":"math"}`))
	if err != nil {
		t.Fatalf("post challenge: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected anonymous challenge to be rejected, got %d", resp.StatusCode)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	server, _ := newTestServer(t)

	for _, path := range []string{"/healthz", "/metrics"} {
		resp, err := http.Get(server.URL + path)
		if err != nil {
			t.Fatalf("get %s: %v", path, err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, resp.StatusCode)
		}
		if path == "/healthz" && string(body) != "ok" {
			t.Fatalf("unexpected health body %q", body)
		}
	}
}

var mathBank = []domain.Question{
	{Text: "What is 2 + 2?", Options: []string{"3", "4", "5"}, Correct: 1},
	{Text: "What is 3 * 3?", Options: []string{"6", "9", "12"}, Correct: 1},
}

func correctText(question string) string {
	for _, q := range mathBank {
		if q.Text == question {
			return q.CorrectOption()
		}
	}
	return ""
}

func indexOf(options []string, text string) int {
	for i, o := range options {
		if o == text {
			return i
		}
	}
	return -1
}

func newTestServer(t *testing.T) (*httptest.Server, *memory.ProgressStore) {
	t.Helper()
	progress := memory.NewProgressStore()
	questions := memory.NewQuestionRepository(memory.NewStaticQuestionLoader(map[string][]domain.Question{
		"math": mathBank,
	}), time.Minute)
	service := app.NewSessionService(memory.NewSessionStore(), questions,
		app.WithProgress(progress),
		app.WithChallenges(memory.NewChallengeStore()),
		app.WithFeedbackDelay(10*time.Millisecond),
	)
	server := httptest.NewServer(NewRouter(NewWSHandler(service), NewPlayerHandler(service)))
	t.Cleanup(server.Close)
	return server, progress
}

func dial(t *testing.T, server *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	u := "ws" + server.URL[len("http"):] + path
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msg map[string]any) {
	t.Helper()
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write %v: %v", msg["type"], err)
	}
}

// readInto skips tick messages and decodes the next message, which must be of type expect.
func readInto(t *testing.T, conn *websocket.Conn, expect string, into any) {
	t.Helper()
	for {
		var msg struct {
			Type    string          `json:"type"`
			Payload json.RawMessage `json:"payload"`
		}
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read json: %v", err)
		}
		if msg.Type == "tick" && expect != "tick" {
			continue
		}
		if msg.Type != expect {
			t.Fatalf("expected type %s, got %s", expect, msg.Type)
		}
		if into != nil {
			if err := json.Unmarshal(msg.Payload, into); err != nil {
				t.Fatalf("decode %s payload: %v", expect, err)
			}
		}
		return
	}
}
