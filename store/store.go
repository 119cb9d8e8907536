// Package store defines the aggregate persistence interface. Each entity
// package (entitlement, membership, role, apikey, grant, accessrequest,
// scoperule, auditlog) defines its own store interface and the composite
// Store embeds them all. Backends: Postgres, SQLite, MongoDB and Memory.
//
// Stores hold data and answer indexed reads. Decision logic lives in the
// engine.
package store

import (
	"context"
	"errors"

	"github.com/xraph/bastion/accessrequest"
	"github.com/xraph/bastion/apikey"
	"github.com/xraph/bastion/auditlog"
	"github.com/xraph/bastion/entitlement"
	"github.com/xraph/bastion/grant"
	"github.com/xraph/bastion/membership"
	"github.com/xraph/bastion/role"
	"github.com/xraph/bastion/scoperule"
)

var (
	// ErrNotFound is wrapped by every backend when an entity does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrConflict is wrapped when a uniqueness constraint rejects a write.
	ErrConflict = errors.New("store: conflict")

	// ErrNotPending is wrapped when an access request decision targets a
	// request that already left the pending state.
	ErrNotPending = errors.New("store: access request is not pending")
)

// Store is the aggregate persistence interface. A single backend implements
// all of the embedded stores.
type Store interface {
	entitlement.Store
	membership.Store
	role.Store
	apikey.Store
	grant.Store
	accessrequest.Store
	scoperule.Store
	auditlog.Store

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks database connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
