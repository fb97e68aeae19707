// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package gateway adapts API Gateway websocket proxy invocations to the
// lifecycle controller. It maps the gateway's event shapes onto the
// adapter's ConnectionRequest and CycleResult and owns scope persistence
// across invocations.
package gateway

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/aws/aws-lambda-go/events"

	"github.com/wsbridge/wsbridge/bridge/interop"
)

// messageType maps the gateway's event type discriminator onto the
// adapter's vocabulary.
func messageType(req events.APIGatewayWebsocketProxyRequest) (interop.MessageType, error) {
	switch req.RequestContext.EventType {
	case "CONNECT":
		return interop.MessageTypeConnect, nil
	case "MESSAGE":
		return interop.MessageTypeMessage, nil
	case "DISCONNECT":
		return interop.MessageTypeDisconnect, nil
	}
	return "", fmt.Errorf("%w: %q", interop.ErrUnknownMessageType, req.RequestContext.EventType)
}

// scopeFromRequest captures the connection scope of a connect invocation.
// Gateway header maps are unordered; names are sorted so the persisted
// scope is deterministic.
func scopeFromRequest(req events.APIGatewayWebsocketProxyRequest) interop.RequestScope {
	var headers []interop.Header
	names := make([]string, 0, len(req.Headers))
	for name := range req.Headers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		headers = append(headers, interop.Header{Name: name, Value: req.Headers[name]})
	}

	var subprotocols []string
	for _, proto := range strings.Split(headerValue(req.Headers, "Sec-WebSocket-Protocol"), ",") {
		if proto = strings.TrimSpace(proto); proto != "" {
			subprotocols = append(subprotocols, proto)
		}
	}

	path := req.Path
	if path == "" {
		path = "/"
	}

	return interop.RequestScope{
		Path:         path,
		QueryString:  encodeQuery(req),
		Headers:      headers,
		Client:       req.RequestContext.Identity.SourceIP,
		Server:       req.RequestContext.DomainName,
		Subprotocols: subprotocols,
		ConnectionID: req.RequestContext.ConnectionID,
	}
}

func headerValue(headers map[string]string, name string) string {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

func encodeQuery(req events.APIGatewayWebsocketProxyRequest) string {
	values := url.Values{}
	for name, vs := range req.MultiValueQueryStringParameters {
		for _, v := range vs {
			values.Add(name, v)
		}
	}
	if len(values) == 0 {
		for name, v := range req.QueryStringParameters {
			values.Set(name, v)
		}
	}
	return values.Encode()
}

// requestBody decodes the frame payload of a message invocation.
func requestBody(req events.APIGatewayWebsocketProxyRequest) ([]byte, error) {
	if req.IsBase64Encoded {
		return base64.StdEncoding.DecodeString(req.Body)
	}
	return []byte(req.Body), nil
}

// proxyResponse serializes a CycleResult back to the gateway shape. Bodies
// that are not valid UTF-8 are base64 encoded.
func proxyResponse(result interop.CycleResult) events.APIGatewayProxyResponse {
	resp := events.APIGatewayProxyResponse{
		StatusCode: result.Status,
	}
	if len(result.Headers) > 0 {
		resp.MultiValueHeaders = make(map[string][]string)
		for _, h := range result.Headers {
			resp.MultiValueHeaders[h.Name] = append(resp.MultiValueHeaders[h.Name], h.Value)
		}
	}
	if len(result.Body) > 0 {
		if utf8.Valid(result.Body) {
			resp.Body = string(result.Body)
		} else {
			resp.Body = base64.StdEncoding.EncodeToString(result.Body)
			resp.IsBase64Encoded = true
		}
	}
	return resp
}
