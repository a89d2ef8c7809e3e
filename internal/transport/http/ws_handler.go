package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gorilla/websocket"

	"quizmaster/internal/app"
	"quizmaster/internal/domain"
	"quizmaster/internal/quiz"
)

type WSHandler struct {
	service  *app.SessionService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.SessionService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	Option *int `json:"option"`
}

type answeredPayload struct {
	Feedback quiz.AnswerFeedback `json:"feedback"`
	View     quiz.View           `json:"view"`
}

type finishedPayload struct {
	Reason  quiz.FinishReason `json:"reason"`
	Outcome *domain.Outcome   `json:"outcome"`
	Review  *domain.Review    `json:"review"`
	View    quiz.View         `json:"view"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades HTTP requests to websockets and runs one quiz session per connection.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	identity, config, err := parseSessionRequest(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	// The session outlives the request context only as long as the socket stays open.
	ctx := context.WithoutCancel(r.Context())

	view, err := h.service.Start(ctx, identity, config)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	sessionID := view.SessionID
	defer h.service.Discard(ctx, sessionID)

	events, cancel, err := h.service.Subscribe(ctx, sessionID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	eventsDone := make(chan struct{})

	// Only the writer goroutine touches the connection for writes.
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	go func() {
		defer close(eventsDone)
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				select {
				case send <- toOutbound(ev):
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	reply := func(msg outboundMessage[any]) {
		select {
		case send <- msg:
		case <-writerDone:
		}
	}
	replyError := func(message string) {
		reply(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: message}})
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil || payload.Option == nil {
				replyError("invalid answer payload")
				continue
			}
			// Accepted answers are echoed through the session's event stream.
			if _, err := h.service.SelectOption(ctx, sessionID, *payload.Option); err != nil {
				replyError(err.Error())
			}
		case "next":
			if _, err := h.service.Advance(ctx, sessionID); err != nil {
				replyError(err.Error())
			}
		case "exit":
			if err := h.service.Exit(ctx, sessionID); err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
				replyError(err.Error())
			}
		default:
			replyError("unsupported message type")
		}
	}

	close(closeSignals)
	<-eventsDone
	close(send)
	<-writerDone
}

func toOutbound(ev quiz.Event) outboundMessage[any] {
	switch ev.Type {
	case quiz.EventSnapshot, quiz.EventStarted:
		return outboundMessage[any]{Type: "started", Payload: ev.View}
	case quiz.EventAnswered:
		return outboundMessage[any]{Type: "answered", Payload: answeredPayload{Feedback: *ev.Feedback, View: ev.View}}
	case quiz.EventFinished:
		return outboundMessage[any]{Type: "finished", Payload: finishedPayload{
			Reason:  ev.Reason,
			Outcome: ev.Outcome,
			Review:  ev.Review,
			View:    ev.View,
		}}
	default:
		return outboundMessage[any]{Type: string(ev.Type), Payload: ev.View}
	}
}

// parseSessionRequest reads the session settings from the query. A challenge session is
// identified by challengeId alone; its category and target come from the stored challenge.
func parseSessionRequest(q url.Values) (domain.Identity, domain.SessionConfig, error) {
	identity := domain.Identity{UserID: q.Get("userId"), DisplayName: q.Get("name")}
	config := domain.SessionConfig{
		CategoryID: q.Get("category"),
		Mode:       domain.Mode(q.Get("mode")),
	}
	if challengeID := q.Get("challengeId"); challengeID != "" {
		config.Challenge = &domain.ChallengeSpec{ChallengeID: challengeID}
	} else if config.CategoryID == "" {
		return identity, config, errors.New("missing category")
	}

	var err error
	if config.QuestionCount, err = intParam(q, "count"); err != nil {
		return identity, config, err
	}
	if config.DurationSeconds, err = intParam(q, "duration"); err != nil {
		return identity, config, err
	}
	return identity, config, nil
}

func intParam(q url.Values, name string) (int, error) {
	raw := q.Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("invalid " + name)
	}
	return n, nil
}
