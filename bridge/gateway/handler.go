// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"context"
	"errors"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	log "github.com/sirupsen/logrus"

	"github.com/wsbridge/wsbridge/bridge/connstore"
	"github.com/wsbridge/wsbridge/bridge/cycle"
	"github.com/wsbridge/wsbridge/bridge/interop"
)

// HandlerFunc is the invocation signature expected by lambda.Start for a
// websocket-backed API Gateway integration.
type HandlerFunc func(ctx context.Context, req events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error)

// Option configures the Handler.
type Option func(*handler)

// WithBodyCapture forwards captured application sends into the invocation
// response body. Only useful behind transports able to interpret it.
func WithBodyCapture() Option {
	return func(h *handler) { h.captureBody = true }
}

type handler struct {
	app         interop.Application
	store       connstore.Store
	captureBody bool
}

// Handler returns the Lambda entrypoint adapting API Gateway websocket
// invocations to the application. Every invocation produces a response;
// application failures are mapped to status codes and never surface as
// invocation errors.
func Handler(app interop.Application, store connstore.Store, opts ...Option) HandlerFunc {
	h := &handler{app: app, store: store}
	for _, opt := range opts {
		opt(h)
	}
	return h.invoke
}

func (h *handler) invoke(ctx context.Context, req events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	mt, err := messageType(req)
	if err != nil {
		log.WithError(err).Warn("Unroutable websocket invocation")
		return events.APIGatewayProxyResponse{StatusCode: http.StatusBadRequest}, nil
	}

	connectionID := req.RequestContext.ConnectionID

	var scope interop.RequestScope
	switch mt {
	case interop.MessageTypeConnect:
		scope = scopeFromRequest(req)
		if err := h.store.PutScope(ctx, connectionID, scope); err != nil {
			log.WithError(err).Error("Failed to persist connection scope")
			return events.APIGatewayProxyResponse{StatusCode: http.StatusInternalServerError}, nil
		}
	default:
		scope, err = h.store.GetScope(ctx, connectionID)
		if errors.Is(err, connstore.ErrNotFound) {
			// Message invocations carry no handshake metadata of their own;
			// without a stored scope the application sees a minimal one.
			log.WithField("connectionID", connectionID).Warn("No stored scope for connection")
			scope = interop.RequestScope{Path: "/", ConnectionID: connectionID}
		} else if err != nil {
			log.WithError(err).Error("Failed to load connection scope")
			return events.APIGatewayProxyResponse{StatusCode: http.StatusInternalServerError}, nil
		}
	}

	body, err := requestBody(req)
	if err != nil {
		log.WithError(err).Warn("Failed to decode invocation body")
		return events.APIGatewayProxyResponse{StatusCode: http.StatusBadRequest}, nil
	}

	request := interop.ConnectionRequest{
		Scope:        scope,
		MessageType:  mt,
		ConnectionID: connectionID,
		Body:         body,
	}

	var opts []cycle.Option
	if h.captureBody {
		opts = append(opts, cycle.WithBodyCapture())
	}
	result := cycle.New(request, opts...).Run(ctx, h.app)

	switch mt {
	case interop.MessageTypeConnect:
		if result.Status != http.StatusOK {
			// Rejected handshakes never produce further invocations.
			if err := h.store.Delete(ctx, connectionID); err != nil {
				log.WithError(err).Warn("Failed to drop rejected connection scope")
			}
		}
	case interop.MessageTypeDisconnect:
		if err := h.store.Delete(ctx, connectionID); err != nil {
			log.WithError(err).Warn("Failed to drop disconnected connection scope")
		}
	}

	return proxyResponse(result), nil
}
