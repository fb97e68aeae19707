// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package connstore persists connection scopes across gateway invocations.
// The gateway integration layer captures the scope of a connect invocation
// here and restores it when message and disconnect invocations arrive for
// the same connection identifier.
package connstore

import (
	"context"
	"errors"
	"sync"

	"github.com/wsbridge/wsbridge/bridge/interop"
)

// ErrNotFound returned when no scope is stored for a connection identifier.
var ErrNotFound = errors.New("ConnectionNotFound")

// Store is the key-value interface injected into the gateway layer,
// indexed by connection identifier.
type Store interface {
	PutScope(ctx context.Context, connectionID string, scope interop.RequestScope) error
	GetScope(ctx context.Context, connectionID string) (interop.RequestScope, error)
	Delete(ctx context.Context, connectionID string) error
}

// InMemory is a process-local Store used by the emulator and tests.
type InMemory struct {
	mutex  sync.RWMutex
	scopes map[string]interop.RequestScope
}

// NewInMemory returns an empty in-memory store.
func NewInMemory() *InMemory {
	return &InMemory{scopes: make(map[string]interop.RequestScope)}
}

// PutScope stores the scope for the connection identifier, replacing any
// previous value.
func (s *InMemory) PutScope(ctx context.Context, connectionID string, scope interop.RequestScope) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.scopes[connectionID] = scope
	return nil
}

// GetScope returns the stored scope or ErrNotFound.
func (s *InMemory) GetScope(ctx context.Context, connectionID string) (interop.RequestScope, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	scope, found := s.scopes[connectionID]
	if !found {
		return interop.RequestScope{}, ErrNotFound
	}
	return scope, nil
}

// Delete removes the scope for the connection identifier. Deleting an
// unknown identifier is not an error.
func (s *InMemory) Delete(ctx context.Context, connectionID string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.scopes, connectionID)
	return nil
}

// Size reports the number of stored scopes.
func (s *InMemory) Size() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.scopes)
}
