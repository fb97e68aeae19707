// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package interop defines the types shared between the gateway integration
// layer, the lifecycle controller and the application boundary.
package interop

import "errors"

// MessageType discriminates the three invocation kinds a gateway can
// deliver for a logical websocket session.
type MessageType string

const (
	MessageTypeConnect    MessageType = "connect"
	MessageTypeMessage    MessageType = "message"
	MessageTypeDisconnect MessageType = "disconnect"
)

// ErrUnknownMessageType returned when the transport reports an event kind
// outside the connect/message/disconnect vocabulary.
var ErrUnknownMessageType = errors.New("UnknownMessageType")

// ParseMessageType maps a transport-supplied discriminator onto a
// MessageType.
func ParseMessageType(s string) (MessageType, error) {
	switch MessageType(s) {
	case MessageTypeConnect, MessageTypeMessage, MessageTypeDisconnect:
		return MessageType(s), nil
	}
	return "", ErrUnknownMessageType
}

// Header is one ordered name/value pair.
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// RequestScope carries the protocol metadata of the logical websocket
// session. It is captured once, at connect time, and persisted by the
// surrounding system so that message and disconnect invocations can be
// correlated with the same session. The JSON form is what connection
// stores persist.
type RequestScope struct {
	Path         string   `json:"path"`
	QueryString  string   `json:"queryString,omitempty"`
	Headers      []Header `json:"headers,omitempty"`
	Client       string   `json:"client,omitempty"`
	Server       string   `json:"server,omitempty"`
	Subprotocols []string `json:"subprotocols,omitempty"`
	ConnectionID string   `json:"connectionId"`
}

// Header returns the value of the first header with the given name, or the
// empty string.
func (s RequestScope) Header(name string) string {
	for _, h := range s.Headers {
		if h.Name == name {
			return h.Value
		}
	}
	return ""
}

// ConnectionRequest is the immutable input of one gateway invocation.
type ConnectionRequest struct {
	Scope        RequestScope
	MessageType  MessageType
	ConnectionID string
	Body         []byte
}

// CycleResult is the single synchronous response handed back to the
// gateway integration layer for serialization to the transport.
type CycleResult struct {
	Status  int
	Headers []Header
	Body    []byte
}
