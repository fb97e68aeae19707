// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package events

// This package defines the websocket protocol event vocabulary exchanged
// between the lifecycle controller and the application task.
// Separate package for namespacing

// Type identifies one kind of protocol event.
type Type string

const (
	TypeConnect    Type = "websocket.connect"    // gateway opened a new logical connection
	TypeAccept     Type = "websocket.accept"     // application accepted the handshake
	TypeReceive    Type = "websocket.receive"    // gateway delivered one data frame
	TypeSend       Type = "websocket.send"       // application emitted one data frame
	TypeClose      Type = "websocket.close"      // application closed the connection
	TypeDisconnect Type = "websocket.disconnect" // gateway reported the client gone
)

// Event is one unit of the websocket protocol vocabulary. Which payload
// fields carry meaning depends on Type: data events use Bytes or Text,
// accept events may carry Subprotocol, close and disconnect events carry
// Code.
type Event struct {
	Type        Type
	Bytes       []byte
	Text        string
	Subprotocol string
	Code        int
}

// Payload returns the data carried by the event, regardless of whether it
// was supplied as a binary or a text frame.
func (e Event) Payload() []byte {
	if e.Bytes != nil {
		return e.Bytes
	}
	if e.Text != "" {
		return []byte(e.Text)
	}
	return nil
}

// Connect returns the event opening the handshake phase.
func Connect() Event {
	return Event{Type: TypeConnect}
}

// Accept returns the handshake acceptance event. The subprotocol may be
// empty when the application does not negotiate one.
func Accept(subprotocol string) Event {
	return Event{Type: TypeAccept, Subprotocol: subprotocol}
}

// Receive returns a data event addressed to the application.
func Receive(body []byte) Event {
	return Event{Type: TypeReceive, Bytes: body}
}

// Send returns a binary data event originated by the application.
func Send(body []byte) Event {
	return Event{Type: TypeSend, Bytes: body}
}

// SendText returns a text data event originated by the application.
func SendText(text string) Event {
	return Event{Type: TypeSend, Text: text}
}

// Close returns the event with which the application ends the connection.
func Close(code int) Event {
	return Event{Type: TypeClose, Code: code}
}

// Disconnect returns the event reporting that the client connection is gone.
func Disconnect(code int) Event {
	return Event{Type: TypeDisconnect, Code: code}
}
