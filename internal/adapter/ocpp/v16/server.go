package v16

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/seu-repo/ocpp-cs/internal/observability/telemetry"
	"github.com/seu-repo/ocpp-cs/internal/ports"
)

var upgrader = websocket.Upgrader{
	Subprotocols:    []string{"ocpp1.6"},
	CheckOrigin:     func(r *http.Request) bool { return true },
	HandshakeTimeout: 0,
}

// Server accepts OCPP 1.6J WebSocket connections and hands each accepted
// connection off to a Session for the lifetime of the TCP connection.
type Server struct {
	registry *Registry
	handlers *Handlers
	log      *zap.Logger
	http     *http.Server

	// AdmissionToken, when non-empty, must be presented by the charge
	// point as a "?token=" query parameter on the upgrade request.
	AdmissionToken string
}

func NewServer(registry *Registry, handlers *Handlers, log *zap.Logger) *Server {
	return &Server{registry: registry, handlers: handlers, log: log}
}

func (s *Server) Start(port int) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ocpp/1.6/", s.handleUpgrade)

	addr := fmt.Sprintf(":%d", port)
	s.http = &http.Server{Addr: addr, Handler: mux}
	s.log.Info("starting OCPP 1.6J server", zap.String("addr", addr))
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop shuts down the listener; charge point WebSocket connections that are
// already open are not closed by it. It is safe to call even if Start was
// never called.
func (s *Server) Stop() {
	if s.http == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.http.Shutdown(ctx); err != nil {
		s.log.Warn("OCPP server shutdown error", zap.Error(err))
	}
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	chargePointID, ok := parseChargePointID(r.URL.Path)
	if !ok {
		http.Error(w, "missing charge point identity", http.StatusBadRequest)
		return
	}

	if s.AdmissionToken != "" && r.URL.Query().Get("token") != s.AdmissionToken {
		s.log.Warn("rejecting connection with bad admission token", zap.String("charge_point_id", chargePointID))
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("websocket upgrade failed", zap.String("charge_point_id", chargePointID), zap.Error(err))
		return
	}

	dispatch := func(action string, payload json.RawMessage) (interface{}, error) {
		return s.handlers.HandleMessage(chargePointID, action, payload)
	}
	session := newSession(chargePointID, conn, s.log, dispatch, s.onSessionClosed)
	s.registry.Register(session)
	telemetry.OCPPConnectionsActive.Inc()
	s.log.Info("charge point connected", zap.String("charge_point_id", chargePointID))

	session.run()
}

func (s *Server) onSessionClosed(session *Session) {
	s.registry.unregisterIfCurrent(session.ChargePointID(), session)
	telemetry.OCPPConnectionsActive.Dec()
	s.log.Info("charge point disconnected", zap.String("charge_point_id", session.ChargePointID()))
}

// parseChargePointID extracts the last, percent-decoded path segment
// after "/ocpp/1.6/", which OCPP 1.6J charge points use to carry their
// identity in the WebSocket upgrade URL.
func parseChargePointID(path string) (string, bool) {
	const prefix = "/ocpp/1.6/"
	if !strings.HasPrefix(path, prefix) {
		return "", false
	}
	rest := strings.TrimPrefix(path, prefix)
	rest = strings.TrimPrefix(rest, "/")
	if rest == "" {
		return "", false
	}
	segments := strings.Split(rest, "/")
	last := segments[len(segments)-1]
	decoded, err := url.PathUnescape(last)
	if err != nil || decoded == "" {
		return "", false
	}
	return decoded, true
}

var _ ports.SessionRegistry = (*Registry)(nil)
