// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPayload(t *testing.T) {
	assert.Equal(t, []byte("data"), Send([]byte("data")).Payload())
	assert.Equal(t, []byte("text"), SendText("text").Payload())
	assert.Nil(t, Connect().Payload())
	// An explicit empty byte slice still counts as a binary payload.
	assert.Equal(t, []byte{}, Receive([]byte{}).Payload())
}

func TestConstructors(t *testing.T) {
	assert.Equal(t, TypeConnect, Connect().Type)
	assert.Equal(t, TypeDisconnect, Disconnect(1000).Type)
	assert.Equal(t, 1000, Disconnect(1000).Code)
	assert.Equal(t, TypeAccept, Accept("json").Type)
	assert.Equal(t, "json", Accept("json").Subprotocol)
	assert.Equal(t, TypeClose, Close(1002).Type)
	assert.Equal(t, 1002, Close(1002).Code)
}
