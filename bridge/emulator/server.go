// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package emulator provides a local stand-in for the API Gateway websocket
// front. It terminates real websocket connections and drives the same
// per-invocation lifecycle cycles the Lambda integration does: the
// handshake, every received frame and the teardown each become one
// discrete invocation of the application. The management API that API
// Gateway exposes for pushing frames to live connections is served on
// /@connections.
package emulator

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/wsbridge/wsbridge/bridge/connstore"
	"github.com/wsbridge/wsbridge/bridge/cycle"
	"github.com/wsbridge/wsbridge/bridge/events"
	"github.com/wsbridge/wsbridge/bridge/interop"
)

// defaultInvokeTimeout bounds one cycle invocation, matching the deadline
// the real gateway enforces on its integration calls. Without it an
// application suspended on a second receive would hold the frame loop
// forever.
const defaultInvokeTimeout = 29 * time.Second

// Server emulates the websocket gateway for one application.
type Server struct {
	app   interop.Application
	store connstore.Store

	invokeTimeout time.Duration
	upgrader      websocket.Upgrader

	mutex sync.RWMutex
	conns map[string]*liveConn
}

// liveConn serializes writes to one client socket.
type liveConn struct {
	mutex sync.Mutex
	ws    *websocket.Conn
}

func (c *liveConn) write(messageType int, data []byte) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.ws.WriteMessage(messageType, data)
}

func (c *liveConn) close(code int, reason string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	deadline := time.Now().Add(time.Second)
	_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
	_ = c.ws.Close()
}

// Option configures the Server.
type Option func(*Server)

// WithInvokeTimeout overrides the per-invocation deadline.
func WithInvokeTimeout(d time.Duration) Option {
	return func(s *Server) { s.invokeTimeout = d }
}

// New returns a Server driving the given application, persisting
// connection scopes in the given store.
func New(app interop.Application, store connstore.Store, opts ...Option) *Server {
	s := &Server{
		app:           app,
		store:         store,
		invokeTimeout: defaultInvokeTimeout,
		conns:         make(map[string]*liveConn),
		upgrader: websocket.Upgrader{
			// Local development tool; origin checks are the deployed
			// gateway's concern.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router returns the HTTP surface of the emulator: the websocket endpoint,
// the /@connections management API and /ping.
func (s *Server) Router() http.Handler {
	router := chi.NewRouter()
	router.Use(accessLogMiddleware())

	router.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("pong")); err != nil {
			log.WithError(err).Error("Failed to write 'pong' response")
		}
	})

	router.Get("/@connections/{connectionID}", newGetConnectionHandler(s).ServeHTTP)
	router.Post("/@connections/{connectionID}", newPostToConnectionHandler(s).ServeHTTP)
	router.Delete("/@connections/{connectionID}", newDeleteConnectionHandler(s).ServeHTTP)

	router.Get("/*", s.serveWebSocket)

	return router
}

// ListenAndServe runs the emulator until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Router()}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithField("addr", addr).Info("Websocket gateway emulator listening")
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// serveWebSocket turns one client connection into a sequence of gateway
// invocations: connect on upgrade, message per frame, disconnect on
// teardown.
func (s *Server) serveWebSocket(w http.ResponseWriter, r *http.Request) {
	connectionID := uuid.New().String()
	scope := scopeFromUpgrade(r, connectionID)

	ctx := r.Context()
	if err := s.store.PutScope(ctx, connectionID, scope); err != nil {
		log.WithError(err).Error("Failed to persist connection scope")
		http.Error(w, "connection store unavailable", http.StatusInternalServerError)
		return
	}

	// The connect invocation completes before the upgrade, exactly as the
	// real gateway resolves its connect integration before finishing the
	// client handshake.
	result := s.runCycle(interop.ConnectionRequest{
		Scope:        scope,
		MessageType:  interop.MessageTypeConnect,
		ConnectionID: connectionID,
	})
	if result.Status != http.StatusOK {
		_ = s.store.Delete(ctx, connectionID)
		http.Error(w, "handshake rejected", result.Status)
		return
	}

	responseHeader := http.Header{}
	for _, h := range result.Headers {
		responseHeader.Add(h.Name, h.Value)
	}
	ws, err := s.upgrader.Upgrade(w, r, responseHeader)
	if err != nil {
		log.WithError(err).Warn("Failed to upgrade to websocket")
		_ = s.store.Delete(ctx, connectionID)
		return
	}

	conn := &liveConn{ws: ws}
	s.addConn(connectionID, conn)
	log.WithField("connectionID", connectionID).Info("Connection established")

	s.readLoop(connectionID, scope, conn)

	s.removeConn(connectionID)
	_ = s.store.Delete(context.Background(), connectionID)
	_ = ws.Close()
	log.WithField("connectionID", connectionID).Info("Connection closed")
}

func (s *Server) readLoop(connectionID string, scope interop.RequestScope, conn *liveConn) {
	for {
		messageType, data, err := conn.ws.ReadMessage()
		if err != nil {
			s.runCycle(interop.ConnectionRequest{
				Scope:        scope,
				MessageType:  interop.MessageTypeDisconnect,
				ConnectionID: connectionID,
			})
			return
		}
		if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
			continue
		}

		c := cycle.New(interop.ConnectionRequest{
			Scope:        scope,
			MessageType:  interop.MessageTypeMessage,
			ConnectionID: connectionID,
			Body:         data,
		})
		result := s.invoke(c)

		// Unlike the HTTP-shaped gateway response, the emulator owns a real
		// socket and can push the captured sends to the client.
		for _, ev := range c.Sent() {
			if err := writeEvent(conn, ev); err != nil {
				log.WithError(err).Warn("Failed to push frame to client")
			}
		}
		if result.Status != http.StatusOK {
			conn.close(websocket.ClosePolicyViolation, "invocation failed")
			// The read loop observes the closed socket and issues the
			// disconnect invocation.
		}
	}
}

func writeEvent(conn *liveConn, ev events.Event) error {
	if ev.Bytes != nil {
		return conn.write(websocket.BinaryMessage, ev.Bytes)
	}
	return conn.write(websocket.TextMessage, []byte(ev.Text))
}

func (s *Server) runCycle(request interop.ConnectionRequest) interop.CycleResult {
	return s.invoke(cycle.New(request))
}

func (s *Server) invoke(c *cycle.Cycle) interop.CycleResult {
	ctx, cancel := context.WithTimeout(context.Background(), s.invokeTimeout)
	defer cancel()
	return c.Run(ctx, s.app)
}

func (s *Server) addConn(connectionID string, conn *liveConn) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.conns[connectionID] = conn
}

func (s *Server) removeConn(connectionID string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.conns, connectionID)
}

func (s *Server) conn(connectionID string) (*liveConn, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	conn, found := s.conns[connectionID]
	return conn, found
}

// scopeFromUpgrade captures the connection scope from the upgrade request.
// Header names are sorted so the persisted scope is deterministic.
func scopeFromUpgrade(r *http.Request, connectionID string) interop.RequestScope {
	names := make([]string, 0, len(r.Header))
	for name := range r.Header {
		names = append(names, name)
	}
	sort.Strings(names)

	var headers []interop.Header
	for _, name := range names {
		for _, value := range r.Header.Values(name) {
			headers = append(headers, interop.Header{Name: name, Value: value})
		}
	}

	return interop.RequestScope{
		Path:         r.URL.Path,
		QueryString:  r.URL.RawQuery,
		Headers:      headers,
		Client:       r.RemoteAddr,
		Server:       r.Host,
		Subprotocols: websocket.Subprotocols(r),
		ConnectionID: connectionID,
	}
}
