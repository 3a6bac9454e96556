/*
 * Copyright (c) "Neo4j"
 * Neo4j Sweden AB [https://neo4j.com]
 *
 * This file is part of Neo4j.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *      https://www.apache.org/licenses/LICENSE-2.0
 *
 *  Unless required by applicable law or agreed to in writing, software
 *  distributed under the License is distributed on an "AS IS" BASIS,
 *  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *  See the License for the specific language governing permissions and
 *  limitations under the License.
 */

// Package bolt3 implements the session layer of the Bolt v3 protocol: a
// single connection's HELLO/GOODBYE lifecycle, its at-most-one-active
// transaction invariant, and the pipelined request/response plumbing
// (Courier, Response, Result, Transaction) that sits underneath it.
// Framing, the handshake and PackStream encoding live one layer down,
// behind the Codec interface; connection pooling, routing and retry
// policy live one layer up and are out of scope here.
package bolt3

import (
	"context"
	"fmt"
	"net"

	"github.com/technige/bolt3/bolt3/internal/packstream"
	"github.com/technige/bolt3/log"
)

// NewCodec wraps conn in the PackStream codec this module ships, the
// one concrete Codec implementation outside callers are expected to
// use - internal/packstream is not importable from outside this
// package's own tree, so this is the supported way to get one.
func NewCodec(conn net.Conn) Codec { return packstream.New(conn) }

// DefaultUserAgent is sent in HELLO when a caller supplies none,
// following the driver's long-standing default.
const DefaultUserAgent = "bolt3-go/1.0"

// Bookmark is an opaque causal-consistency token returned by COMMIT and
// accepted by BEGIN.
type Bookmark string

// AuthToken carries the HELLO extras identifying and authenticating the
// client. Scheme is typically "basic" or "none"; Credentials is masked
// wherever the Courier logs HELLO.
type AuthToken struct {
	Scheme      string
	Principal   string
	Credentials string
	Realm       string
}

func (a AuthToken) extras(userAgent string) map[string]any {
	extras := map[string]any{
		"scheme":     a.Scheme,
		"user_agent": userAgent,
	}
	if a.Principal != "" {
		extras["principal"] = a.Principal
	}
	if a.Credentials != "" {
		extras["credentials"] = a.Credentials
	}
	if a.Realm != "" {
		extras["realm"] = a.Realm
	}
	return extras
}

// Connection is a single Bolt v3 session: one Courier, at most one live
// Transaction, and the HELLO/GOODBYE bracketing around both. It is not
// safe for concurrent use - Bolt v3 does not multiplex requests from
// more than one logical caller onto one wire.
type Connection struct {
	courier      *Courier
	log          log.Logger
	userAgent    string
	serverConnID string
	serverAgent  string
	tx           *Transaction
	helloDone    bool
	closed       bool
}

// Config configures a new Connection's HELLO.
type Config struct {
	UserAgent string
	Auth      AuthToken
	Logger    log.Logger
}

// NewConnection wraps an already-connected transport and codec. It does
// not perform the Bolt handshake or version negotiation - the caller
// must complete those before constructing a Connection.
func NewConnection(conn net.Conn, codec Codec, cfg Config) *Connection {
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &Connection{
		courier:   newCourier(conn, codec, cfg.Logger),
		log:       nonNilLogger(cfg.Logger),
		userAgent: userAgent,
	}
}

func nonNilLogger(l log.Logger) log.Logger {
	if l == nil {
		return log.Void
	}
	return l
}

// LocalChannelID returns the Courier's local correlation id, assigned
// the moment the Connection is constructed. It is distinct from
// ServerConnectionID, which the server only assigns once Init has
// completed.
func (c *Connection) LocalChannelID() string { return c.courier.LocalChannelID() }

// ServerConnectionID returns the connection id the server assigned in
// its HELLO SUCCESS, once Init has completed.
func (c *Connection) ServerConnectionID() string { return c.serverConnID }

// ServerAgent returns the server_agent string from HELLO SUCCESS.
func (c *Connection) ServerAgent() string { return c.serverAgent }

// Init performs the HELLO exchange. It must be called exactly once,
// before any Run or Begin.
func (c *Connection) Init(ctx context.Context, auth AuthToken) error {
	if c.helloDone {
		return &TransactionError{Message: "connection is already initialized"}
	}
	response := c.courier.writeHello(auth.extras(c.userAgent))
	if err := c.courier.send(ctx); err != nil {
		return err
	}
	outcome, err := response.GetSummary(ctx)
	if err != nil {
		return err
	}
	summary, ok := outcome.(*Summary)
	if !ok || !summary.Ok() {
		return fmt.Errorf("HELLO failed: %v", outcome)
	}
	if id, ok := summary.Metadata["connection_id"].(string); ok {
		c.serverConnID = id
	}
	if agent, ok := summary.Metadata["server"].(string); ok {
		c.serverAgent = agent
	}
	c.helloDone = true
	return nil
}

// Ready reports whether the connection can accept a new transaction:
// Init has completed and no transaction is active.
func (c *Connection) Ready() bool {
	return c.helloDone && !c.closed && (c.tx == nil || c.tx.Closed())
}

func (c *Connection) assertReady() error {
	if !c.helloDone {
		return &TransactionError{Message: "connection has not been initialized"}
	}
	if c.closed {
		return &TransactionError{Message: "connection is closed"}
	}
	if c.tx != nil && !c.tx.Closed() {
		return &TransactionError{Message: "a transaction is already active on this connection"}
	}
	return nil
}

// Run starts an auto-commit transaction for a single Cypher statement
// and returns its Result. discard selects DISCARD_ALL over PULL_ALL.
func (c *Connection) Run(ctx context.Context, cypher string, parameters map[string]any, cfg TransactionConfig, discard bool) (*Result, error) {
	if err := c.assertReady(); err != nil {
		return nil, err
	}
	tx, err := newTransaction(c.courier, cfg)
	if err != nil {
		return nil, err
	}
	c.tx = tx
	return tx.Run(ctx, cypher, parameters, discard)
}

// Begin starts an explicit transaction. Only one may be active on a
// connection at a time.
func (c *Connection) Begin(ctx context.Context, cfg TransactionConfig) (*Transaction, error) {
	if err := c.assertReady(); err != nil {
		return nil, err
	}
	tx, err := beginTransaction(ctx, c.courier, cfg)
	if err != nil {
		return nil, err
	}
	c.tx = tx
	return tx, nil
}

// TxWork is application code run inside an explicit transaction by
// RunTx. Returning an error rolls the transaction back; a nil error
// commits it.
type TxWork func(ctx context.Context, tx *Transaction) (any, error)

// RunTx brackets work in BEGIN/COMMIT or BEGIN/ROLLBACK, rolling back
// whenever work returns an error (including a panic recovered and
// re-raised as one) and otherwise committing. The inner Begin receives
// cfg unchanged, so cfg.Timeout applies to it.
func (c *Connection) RunTx(ctx context.Context, cfg TransactionConfig, work TxWork) (any, Bookmark, error) {
	tx, err := c.Begin(ctx, cfg)
	if err != nil {
		return nil, "", err
	}

	result, workErr := runTxWork(ctx, tx, work)
	if workErr != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return nil, "", fmt.Errorf("work failed (%v) and rollback also failed: %w", workErr, rbErr)
		}
		return nil, "", workErr
	}
	bookmark, err := tx.Commit(ctx)
	if err != nil {
		return nil, "", err
	}
	return result, bookmark, nil
}

func runTxWork(ctx context.Context, tx *Transaction, work TxWork) (result any, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("transaction function panicked: %v", p)
		}
	}()
	return work(ctx, tx)
}

// Reset forcibly returns the connection to a clean state, discarding
// any active transaction without committing or rolling it back. Use it
// to recover a connection after a caller decides not to wait for a
// transaction's own Commit/Rollback/fail bookkeeping.
func (c *Connection) Reset(ctx context.Context) error {
	if !c.helloDone {
		return &TransactionError{Message: "connection has not been initialized"}
	}
	response := c.courier.writeReset()
	if err := c.courier.send(ctx); err != nil {
		return err
	}
	if err := c.courier.fetch(ctx, nil); err != nil {
		return err
	}
	if c.tx != nil {
		c.tx.closed = true
		c.tx = nil
	}
	outcome, err := response.GetSummary(ctx)
	if err != nil {
		return err
	}
	if summary, ok := outcome.(*Summary); ok && !summary.Ok() {
		return fmt.Errorf("RESET failed: %v", summary)
	}
	return nil
}

// Close sends GOODBYE (best-effort) and tears down the transport. It is
// idempotent.
func (c *Connection) Close(ctx context.Context) error {
	if c.closed {
		return nil
	}
	c.closed = true
	if c.helloDone {
		c.courier.writeGoodbye()
		_ = c.courier.send(ctx)
	}
	return c.courier.closeTransport()
}
