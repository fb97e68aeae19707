// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package emulator

import (
	"io"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/render"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/wsbridge/wsbridge/bridge/connstore"
)

type errorResponse struct {
	Message string `json:"message"`
}

func renderGone(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusGone)
	render.JSON(w, r, &errorResponse{Message: "Connection is gone or never existed"})
}

type getConnectionHandler struct {
	server *Server
}

// ServeHTTP returns the stored scope of a live connection.
func (h *getConnectionHandler) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	connectionID := chi.URLParam(request, "connectionID")
	if _, found := h.server.conn(connectionID); !found {
		renderGone(writer, request)
		return
	}
	scope, err := h.server.store.GetScope(request.Context(), connectionID)
	if err == connstore.ErrNotFound {
		renderGone(writer, request)
		return
	}
	if err != nil {
		log.WithError(err).Error("Failed to load connection scope")
		writer.WriteHeader(http.StatusInternalServerError)
		return
	}
	render.JSON(writer, request, scope)
}

func newGetConnectionHandler(server *Server) http.Handler {
	return &getConnectionHandler{server: server}
}

type postToConnectionHandler struct {
	server *Server
}

// ServeHTTP pushes the request body to a live client connection, the way
// the gateway's @connections management API does. The body is written as
// a binary frame for application/octet-stream requests and as a text
// frame otherwise.
func (h *postToConnectionHandler) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	connectionID := chi.URLParam(request, "connectionID")
	conn, found := h.server.conn(connectionID)
	if !found {
		renderGone(writer, request)
		return
	}

	data, err := io.ReadAll(request.Body)
	if err != nil {
		log.WithError(err).Error("Failed to read management request body")
		writer.WriteHeader(http.StatusInternalServerError)
		return
	}

	messageType := websocket.TextMessage
	if request.Header.Get("Content-Type") == "application/octet-stream" {
		messageType = websocket.BinaryMessage
	}
	if err := conn.write(messageType, data); err != nil {
		log.WithError(err).Warn("Failed to write frame to client")
		renderGone(writer, request)
		return
	}
	writer.WriteHeader(http.StatusOK)
}

func newPostToConnectionHandler(server *Server) http.Handler {
	return &postToConnectionHandler{server: server}
}

type deleteConnectionHandler struct {
	server *Server
}

// ServeHTTP closes a live client connection. The read loop of the closed
// socket issues the disconnect invocation.
func (h *deleteConnectionHandler) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	connectionID := chi.URLParam(request, "connectionID")
	conn, found := h.server.conn(connectionID)
	if !found {
		renderGone(writer, request)
		return
	}
	conn.close(websocket.CloseNormalClosure, "closed by management API")
	writer.WriteHeader(http.StatusNoContent)
}

func newDeleteConnectionHandler(server *Server) http.Handler {
	return &deleteConnectionHandler{server: server}
}
