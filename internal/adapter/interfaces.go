// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RoamLog Authors

// Package adapter provides the transport layer between the engine and the
// remote trips endpoint.
//
// The primary abstraction is [RemoteAdapter], which decouples the sync
// engine and the cache router from the underlying protocol. The package
// ships an HTTP/REST implementation ([NewHTTPRemoteAdapter]) built on resty.
//
// Error values defined in errors.go are mapped from HTTP status codes and
// transport failures by mapHTTPError and classifyTransportError so that
// callers can use [errors.Is] for transport-agnostic error handling
// (e.g. [ErrConflict] for 409, [ErrTimeout] for an aborted fetch).
package adapter

import (
	"context"

	"github.com/roamlog/roamlog/models"
)

//go:generate mockgen -source=interfaces.go -destination=../mock/remote_adapter_mock.go -package=mock

// RemoteAdapter defines transport-agnostic communication with the remote
// endpoint. Implementations are responsible for serialization, auth header
// management, and mapping transport-level errors to the sentinel values
// defined in this package.
type RemoteAdapter interface {
	// SetToken stores the bearer token attached to all subsequent
	// authenticated requests.
	SetToken(token string)

	// Token returns the bearer token currently held by the adapter, or an
	// empty string if none has been set.
	Token() string

	// Replay pushes one queued operation to the endpoint implied by its
	// entity type and kind. Returns a taxonomy sentinel (wrapped) on
	// failure.
	Replay(ctx context.Context, op models.Operation) error

	// Fetch performs a raw HTTP-like request against the remote endpoint.
	// Used by the cache router for resource requests. A transport-level
	// failure returns a classified error and a zero response.
	Fetch(ctx context.Context, req models.Request) (models.Response, error)

	// FetchRemoteVersion reads the remote version marker used by the
	// lifecycle update check.
	FetchRemoteVersion(ctx context.Context) (string, error)
}

// RemoteEntity fetches the remote value of one entity, used during conflict
// detection to compare a queued update against the server state.
type RemoteEntity interface {
	GetEntity(ctx context.Context, entityType, id string) (map[string]any, error)
}
