package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/snarg/callshield/internal/recognizer"
	"github.com/snarg/callshield/internal/scanner"
	"github.com/snarg/callshield/internal/session"
	"github.com/snarg/callshield/internal/verdict"
)

// The call socket speaks JSON text frames.
//
// Page → server:
//
//	{"type":"start","mode":"clarity"}            begin a call (mode optional)
//	{"type":"stop"}                              end the call
//	{"type":"microphone","granted":false,"error":"..."}  answer to a microphone request
//	{"type":"result","result_index":0,"results":[{"transcript":"...","is_final":true}]}
//	{"type":"end"}                               the recognizer ended
//	{"type":"error","code":"network"}            the recognizer failed
//	{"type":"unsupported"}                       no recognizer in this browser
//
// Server → page:
//
//	{"type":"state","state":"active","call_id":"..."}
//	{"type":"transcript","entry":{"kind":"transcript","text":"..."},"replace":true}
//	{"type":"alert","alert":{...},"replace":true}
//	{"type":"alert_note","text":"..."}
//	{"type":"summary","text":"..."}
//	{"type":"microphone"}                        ask for microphone access
//	{"type":"recognizer","action":"start"}       start or stop the recognizer
//	{"type":"error","error":"..."}               protocol error
const (
	typeStart       = "start"
	typeStop        = "stop"
	typeMicrophone  = "microphone"
	typeResult      = "result"
	typeEnd         = "end"
	typeError       = "error"
	typeUnsupported = "unsupported"

	typeState      = "state"
	typeTranscript = "transcript"
	typeAlert      = "alert"
	typeAlertNote  = "alert_note"
	typeSummary    = "summary"
	typeRecognizer = "recognizer"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	maxMessage = 64 << 10
)

type clientMessage struct {
	Type    string `json:"type"`
	Mode    string `json:"mode,omitempty"`
	Granted bool   `json:"granted,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
	recognizer.ResultEvent
}

type serverMessage struct {
	Type    string         `json:"type"`
	State   session.State  `json:"state,omitempty"`
	CallID  string         `json:"call_id,omitempty"`
	Entry   *session.Entry `json:"entry,omitempty"`
	Alert   *session.Alert `json:"alert,omitempty"`
	Replace bool           `json:"replace,omitempty"`
	Text    string         `json:"text,omitempty"`
	Action  string         `json:"action,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// CallHandler upgrades to a WebSocket and runs one session controller per
// connection. The page hosts the speech recognizer and microphone prompt;
// everything else happens here.
type CallHandler struct {
	phrases   *scanner.Library
	escalator session.Escalator
	defMode   verdict.Mode
	upgrader  websocket.Upgrader
	log       zerolog.Logger

	mu    sync.Mutex
	conns map[*session.Controller]*websocket.Conn
	wg    sync.WaitGroup
}

// NewCallHandler creates a CallHandler. escalator may be nil, in which case
// calls show keyword alerts only. Origins restricts the handshake the same
// way CORSWithOrigins does.
func NewCallHandler(phrases *scanner.Library, escalator session.Escalator, defMode verdict.Mode, origins []string, log zerolog.Logger) *CallHandler {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return &CallHandler{
		phrases:   phrases,
		escalator: escalator,
		defMode:   defMode,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(allowed) == 0 || origin == "" || allowed[origin]
			},
		},
		log:   log,
		conns: make(map[*session.Controller]*websocket.Conn),
	}
}

// ConnectionCount implements metrics.LiveStats.
func (h *CallHandler) ConnectionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// ActiveCallCount implements metrics.LiveStats.
func (h *CallHandler) ActiveCallCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for c := range h.conns {
		if c.Active() {
			n++
		}
	}
	return n
}

// PhraseReloads implements metrics.LiveStats.
func (h *CallHandler) PhraseReloads() int64 { return h.phrases.Reloads() }

// closeAll drops every call socket; each handler then ends its call.
func (h *CallHandler) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ws := range h.conns {
		ws.Close()
	}
}

func (h *CallHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		hlog.FromRequest(r).Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer ws.Close()

	conn := &callConn{
		ws:  ws,
		mic: make(chan clientMessage, 1),
		log: h.log.With().Str("remote", r.RemoteAddr).Logger(),
	}
	opts := session.Options{
		Phrases:    h.phrases,
		Microphone: conn,
		Recognizer: conn,
		Renderer:   conn,
		Log:        conn.log,
	}
	if h.escalator != nil {
		opts.Escalator = h.escalator
	}
	ctrl := session.NewController(opts)

	h.mu.Lock()
	h.conns[ctrl] = ws
	h.wg.Add(1)
	h.mu.Unlock()
	conn.log.Debug().Msg("call socket connected")

	ctx, cancel := context.WithCancel(context.Background())
	var starts sync.WaitGroup
	stopPing := conn.keepalive()

	defer func() {
		cancel()
		starts.Wait()
		ctrl.Close()
		stopPing()
		h.mu.Lock()
		delete(h.conns, ctrl)
		h.mu.Unlock()
		h.wg.Done()
		conn.log.Debug().Msg("call socket closed")
	}()

	ws.SetReadLimit(maxMessage)
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg clientMessage
		if err := ws.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				conn.log.Debug().Err(err).Msg("call socket read ended")
			}
			return
		}
		// Any traffic from the page counts as liveness.
		ws.SetReadDeadline(time.Now().Add(pongWait))

		switch msg.Type {
		case typeStart:
			mode, err := verdict.ParseMode(msg.Mode, h.defMode)
			if err != nil {
				conn.sendError(err.Error())
				continue
			}
			// Start blocks on the microphone answer, which arrives through
			// this loop.
			starts.Add(1)
			go func() {
				defer starts.Done()
				if err := ctrl.Start(ctx, mode); errors.Is(err, session.ErrAlreadyActive) {
					conn.sendError(err.Error())
				}
			}()
		case typeStop:
			if err := ctrl.Stop(); err != nil {
				conn.sendError(err.Error())
			}
		case typeMicrophone:
			select {
			case conn.mic <- msg:
			default:
				conn.log.Debug().Msg("unsolicited microphone answer")
			}
		case typeResult:
			ctrl.Driver().HandleResult(msg.ResultEvent)
		case typeEnd:
			ctrl.Driver().HandleEnd()
		case typeError:
			ctrl.Driver().HandleError(msg.Code)
		case typeUnsupported:
			ctrl.Unsupported()
		default:
			conn.sendError("unknown message type " + msg.Type)
		}
	}
}

// callConn adapts one WebSocket to the session's page-side collaborators.
// Writes are serialized; gorilla allows one concurrent writer.
type callConn struct {
	ws  *websocket.Conn
	wmu sync.Mutex
	mic chan clientMessage
	log zerolog.Logger
}

var errMicDenied = errors.New("permission denied")

func (c *callConn) send(m serverMessage) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.ws.WriteJSON(m); err != nil {
		c.log.Debug().Err(err).Str("type", m.Type).Msg("call socket write failed")
		return err
	}
	return nil
}

func (c *callConn) sendError(msg string) {
	c.send(serverMessage{Type: typeError, Error: msg})
}

// keepalive pings the page until the returned func is called.
func (c *callConn) keepalive() func() {
	done := make(chan struct{})
	go func() {
		t := time.NewTicker(pingPeriod)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-t.C:
				c.wmu.Lock()
				err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
				c.wmu.Unlock()
				if err != nil {
					return
				}
			}
		}
	}()
	return func() { close(done) }
}

func (c *callConn) Transcript(e session.Entry, replace bool) {
	c.send(serverMessage{Type: typeTranscript, Entry: &e, Replace: replace})
}

func (c *callConn) Alert(a session.Alert, replace bool) {
	c.send(serverMessage{Type: typeAlert, Alert: &a, Replace: replace})
}

func (c *callConn) AlertNote(text string) {
	c.send(serverMessage{Type: typeAlertNote, Text: text})
}

func (c *callConn) Summary(text string) {
	c.send(serverMessage{Type: typeSummary, Text: text})
}

func (c *callConn) State(s session.State, callID string) {
	c.send(serverMessage{Type: typeState, State: s, CallID: callID})
}

func (c *callConn) Start() error {
	return c.send(serverMessage{Type: typeRecognizer, Action: "start"})
}

func (c *callConn) Stop() error {
	return c.send(serverMessage{Type: typeRecognizer, Action: "stop"})
}

// RequestAccess asks the page to open the microphone and waits for its answer.
func (c *callConn) RequestAccess(ctx context.Context) error {
	select {
	case <-c.mic: // stale answer from an earlier request
	default:
	}
	if err := c.send(serverMessage{Type: typeMicrophone}); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case ans := <-c.mic:
		if ans.Granted {
			return nil
		}
		if ans.Error != "" {
			return errors.New(ans.Error)
		}
		return errMicDenied
	}
}
