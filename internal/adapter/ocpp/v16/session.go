package v16

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/seu-repo/ocpp-cs/internal/ports"
)

// DefaultCallTimeout bounds how long a server-initiated Call() waits for
// the charge point's CALLRESULT before giving up.
const DefaultCallTimeout = 10 * time.Second

type pendingCall struct {
	resultCh chan callOutcome
}

type callOutcome struct {
	payload json.RawMessage
	errCode string
	errDesc string
}

// Session is one live OCPP 1.6J WebSocket connection. All writes to the
// underlying connection go through a single writeLoop goroutine so
// concurrent Call()s and reply frames never interleave on the wire.
type Session struct {
	id   string
	conn *websocket.Conn
	log  *zap.Logger

	dispatch func(action string, payload json.RawMessage) (interface{}, error)

	sendCh chan []byte
	doneCh chan struct{}

	mu      sync.Mutex
	pending map[string]*pendingCall

	onClose func(s *Session)
}

func newSession(id string, conn *websocket.Conn, log *zap.Logger, dispatch func(action string, payload json.RawMessage) (interface{}, error), onClose func(*Session)) *Session {
	return &Session{
		id:       id,
		conn:     conn,
		log:      log,
		dispatch: dispatch,
		sendCh:   make(chan []byte, 64),
		doneCh:   make(chan struct{}),
		pending:  make(map[string]*pendingCall),
		onClose:  onClose,
	}
}

func (s *Session) ChargePointID() string { return s.id }

// run drives the session until the connection closes. It blocks the
// caller's goroutine (the accept handler), while writeLoop runs separately.
func (s *Session) run() {
	go s.writeLoop()
	defer s.teardown()

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn("ocpp session read error", zap.String("charge_point_id", s.id), zap.Error(err))
			}
			return
		}
		s.handleFrame(raw)
	}
}

func (s *Session) handleFrame(raw []byte) {
	msgType, uniqueID, action, payload, err := decodeFrame(raw)
	if err != nil {
		s.log.Warn("dropping malformed ocpp frame", zap.String("charge_point_id", s.id), zap.Error(err))
		return
	}

	switch msgType {
	case MessageTypeCall:
		result, err := s.dispatch(action, payload)
		var out []byte
		if err != nil {
			out, _ = encodeCallError(uniqueID, "InternalError", err.Error())
		} else {
			out, _ = encodeCallResult(uniqueID, result)
		}
		s.enqueue(out)
	case MessageTypeCallResult:
		s.resolve(uniqueID, callOutcome{payload: payload})
	case MessageTypeCallError:
		var parts []json.RawMessage
		_ = json.Unmarshal(raw, &parts)
		var code, desc string
		if len(parts) > 2 {
			_ = json.Unmarshal(parts[2], &code)
		}
		if len(parts) > 3 {
			_ = json.Unmarshal(parts[3], &desc)
		}
		s.resolve(uniqueID, callOutcome{errCode: code, errDesc: desc})
	}
}

func (s *Session) resolve(uniqueID string, outcome callOutcome) {
	s.mu.Lock()
	p, ok := s.pending[uniqueID]
	if ok {
		delete(s.pending, uniqueID)
	}
	s.mu.Unlock()
	if ok {
		p.resultCh <- outcome
	}
}

// Call issues a server-initiated OCPP request and waits for the matching
// CALLRESULT, bounded by ctx and DefaultCallTimeout, whichever is sooner.
func (s *Session) Call(ctx context.Context, action string, payload interface{}) (interface{}, error) {
	uniqueID := uuid.NewString()
	p := &pendingCall{resultCh: make(chan callOutcome, 1)}

	s.mu.Lock()
	s.pending[uniqueID] = p
	s.mu.Unlock()

	frame, err := encodeCall(uniqueID, action, payload)
	if err != nil {
		s.mu.Lock()
		delete(s.pending, uniqueID)
		s.mu.Unlock()
		return nil, fmt.Errorf("encode %s: %w", action, err)
	}
	s.enqueue(frame)

	timer := time.NewTimer(DefaultCallTimeout)
	defer timer.Stop()

	select {
	case outcome := <-p.resultCh:
		if outcome.errCode != "" {
			return nil, fmt.Errorf("charge point returned %s: %s", outcome.errCode, outcome.errDesc)
		}
		var result interface{}
		if len(outcome.payload) > 0 {
			_ = json.Unmarshal(outcome.payload, &result)
		}
		return result, nil
	case <-ctx.Done():
		s.mu.Lock()
		delete(s.pending, uniqueID)
		s.mu.Unlock()
		return nil, ctx.Err()
	case <-timer.C:
		s.mu.Lock()
		delete(s.pending, uniqueID)
		s.mu.Unlock()
		return nil, fmt.Errorf("%s timed out waiting for charge point response", action)
	case <-s.doneCh:
		return nil, fmt.Errorf("session closed before %s completed", action)
	}
}

func (s *Session) enqueue(frame []byte) {
	select {
	case s.sendCh <- frame:
	case <-s.doneCh:
	}
}

func (s *Session) writeLoop() {
	for {
		select {
		case frame := <-s.sendCh:
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				s.log.Warn("ocpp session write error", zap.String("charge_point_id", s.id), zap.Error(err))
				return
			}
		case <-s.doneCh:
			return
		}
	}
}

func (s *Session) Close(code int, reason string) error {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return s.conn.Close()
}

func (s *Session) teardown() {
	close(s.doneCh)
	s.conn.Close()
	if s.onClose != nil {
		s.onClose(s)
	}
}

var _ ports.Session = (*Session)(nil)
