// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package emulator

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wsbridge/wsbridge/bridge/connstore"
	"github.com/wsbridge/wsbridge/bridge/echo"
	"github.com/wsbridge/wsbridge/bridge/events"
	"github.com/wsbridge/wsbridge/bridge/interop"
)

// recordingApp wraps the echo application and records the connection ids
// and event types it observes.
type recordingApp struct {
	mutex        sync.Mutex
	connectionID string
	eventTypes   []events.Type
	inner        interop.Application
}

func newRecordingApp() *recordingApp {
	return &recordingApp{inner: echo.New()}
}

func (a *recordingApp) Serve(ctx context.Context, scope interop.RequestScope, receive interop.ReceiveFunc, send interop.SendFunc) error {
	recordingReceive := interop.ReceiveFunc(func(ctx context.Context) (events.Event, error) {
		ev, err := receive(ctx)
		if err == nil {
			a.mutex.Lock()
			a.connectionID = scope.ConnectionID
			a.eventTypes = append(a.eventTypes, ev.Type)
			a.mutex.Unlock()
		}
		return ev, err
	})
	return a.inner.Serve(ctx, scope, recordingReceive, send)
}

func (a *recordingApp) seen() []events.Type {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return append([]events.Type(nil), a.eventTypes...)
}

func (a *recordingApp) id() string {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.connectionID
}

func startServer(t *testing.T, app interop.Application) (*httptest.Server, *connstore.InMemory) {
	t.Helper()
	store := connstore.NewInMemory()
	ts := httptest.NewServer(New(app, store, WithInvokeTimeout(2*time.Second)).Router())
	t.Cleanup(ts.Close)
	return ts, store
}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http")
}

func dial(t *testing.T, ts *httptest.Server, header http.Header) *websocket.Conn {
	t.Helper()
	ws, resp, err := websocket.DefaultDialer.Dial(wsURL(ts)+"/", header)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func TestEchoRoundTrip(t *testing.T) {
	ts, _ := startServer(t, echo.New())
	ws := dial(t, ts, nil)

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("hello")))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestSubprotocolNegotiated(t *testing.T) {
	ts, _ := startServer(t, echo.New())

	dialer := websocket.Dialer{Subprotocols: []string{"json", "text"}}
	ws, resp, err := dialer.Dial(wsURL(ts)+"/", nil)
	require.NoError(t, err)
	defer ws.Close()
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	assert.Equal(t, "json", ws.Subprotocol())
}

func TestRejectedHandshake(t *testing.T) {
	rejecting := interop.ApplicationFunc(func(ctx context.Context, scope interop.RequestScope, receive interop.ReceiveFunc, send interop.SendFunc) error {
		if _, err := receive(ctx); err != nil {
			return err
		}
		return send(ctx, events.Close(1002))
	})
	ts, store := startServer(t, rejecting)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts)+"/", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, 0, store.Size())
}

func TestConnectPersistsScopeUntilDisconnect(t *testing.T) {
	app := newRecordingApp()
	ts, store := startServer(t, app)

	ws := dial(t, ts, nil)
	assert.Equal(t, 1, store.Size())

	ws.Close()
	require.Eventually(t, func() bool { return store.Size() == 0 }, 2*time.Second, 10*time.Millisecond)
	seen := app.seen()
	assert.Equal(t, events.TypeConnect, seen[0])
	assert.Equal(t, events.TypeDisconnect, seen[len(seen)-1])
}

func TestManagementPostPushesFrame(t *testing.T) {
	app := newRecordingApp()
	ts, _ := startServer(t, app)
	ws := dial(t, ts, nil)

	require.Eventually(t, func() bool { return app.id() != "" }, 2*time.Second, 10*time.Millisecond)

	// The socket registers right after the upgrade completes; poll until
	// the management API sees it.
	require.Eventually(t, func() bool {
		resp, err := http.Post(ts.URL+"/@connections/"+app.id(), "text/plain", strings.NewReader("pushed"))
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	messageType, data, err := ws.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, messageType)
	assert.Equal(t, "pushed", string(data))
}

func TestManagementPostUnknownConnection(t *testing.T) {
	ts, _ := startServer(t, echo.New())

	resp, err := http.Post(ts.URL+"/@connections/unknown", "text/plain", strings.NewReader("x"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusGone, resp.StatusCode)
}

func TestManagementGetConnection(t *testing.T) {
	app := newRecordingApp()
	ts, _ := startServer(t, app)
	dial(t, ts, nil)

	require.Eventually(t, func() bool { return app.id() != "" }, 2*time.Second, 10*time.Millisecond)

	var body []byte
	require.Eventually(t, func() bool {
		resp, err := http.Get(ts.URL + "/@connections/" + app.id())
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return false
		}
		body, err = io.ReadAll(resp.Body)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
	assert.Contains(t, string(body), app.id())
}

func TestManagementDeleteClosesConnection(t *testing.T) {
	app := newRecordingApp()
	ts, store := startServer(t, app)
	ws := dial(t, ts, nil)

	require.Eventually(t, func() bool { return app.id() != "" }, 2*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		req, err := http.NewRequest(http.MethodDelete, ts.URL+"/@connections/"+app.id(), nil)
		if err != nil {
			return false
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusNoContent
	}, 2*time.Second, 10*time.Millisecond)

	_, _, err := ws.ReadMessage()
	assert.Error(t, err)
	require.Eventually(t, func() bool { return store.Size() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestPing(t *testing.T) {
	ts, _ := startServer(t, echo.New())

	resp, err := http.Get(ts.URL + "/ping")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "pong", string(body))
}
