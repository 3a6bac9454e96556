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

package bolt3

import (
	"context"
	"time"
)

// TransactionConfig carries the BEGIN/RUN extras a caller may supply:
// access mode, causal-consistency bookmarks, a server-side execution
// timeout and application metadata.
type TransactionConfig struct {
	Readonly  bool
	Bookmarks []string
	Timeout   time.Duration
	Metadata  map[string]any
}

// Transaction implements the Bolt v3 per-connection transaction state
// machine: OPEN until commit, rollback or a server FAILURE closes it.
// It owns the courier handle and the extras map; the Connection that
// created it reads its Closed flag, and Connection.Reset closes it.
type Transaction struct {
	courier    *Courier
	autocommit bool
	closed     bool
	failure    error
	extras     map[string]any
}

func validateExtrasValue(key string, v any) error {
	switch v.(type) {
	case nil, bool, int, int64, float64, string, []any, []string, map[string]any:
		return nil
	default:
		return &ExtrasError{Key: key, Value: v}
	}
}

func newTransaction(courier *Courier, cfg TransactionConfig) (*Transaction, error) {
	tx := &Transaction{courier: courier, autocommit: true, extras: map[string]any{}}
	if cfg.Readonly {
		tx.extras["mode"] = "R"
	}
	if len(cfg.Bookmarks) > 0 {
		bookmarks := make([]string, len(cfg.Bookmarks))
		copy(bookmarks, cfg.Bookmarks)
		tx.extras["bookmarks"] = bookmarks
	}
	if cfg.Timeout > 0 {
		tx.extras["tx_timeout"] = int(cfg.Timeout / time.Millisecond)
	}
	if len(cfg.Metadata) > 0 {
		for k, v := range cfg.Metadata {
			if err := validateExtrasValue(k, v); err != nil {
				return nil, err
			}
		}
		tx.extras["tx_metadata"] = cfg.Metadata
	}
	return tx, nil
}

// beginTransaction writes BEGIN and, for bookmarked transactions,
// eagerly syncs so a BEGIN-time failure surfaces immediately instead
// of being deferred to the next message.
func beginTransaction(ctx context.Context, courier *Courier, cfg TransactionConfig) (*Transaction, error) {
	tx, err := newTransaction(courier, cfg)
	if err != nil {
		return nil, err
	}
	tx.autocommit = false
	courier.writeBegin(tx.extras)
	if len(cfg.Bookmarks) > 0 {
		if err := courier.send(ctx); err != nil {
			return nil, err
		}
		if err := courier.fetch(ctx, nil); err != nil {
			return nil, err
		}
	}
	return tx, nil
}

// Autocommit reports whether this transaction is an implicit,
// single-RUN transaction rather than an explicit BEGIN...COMMIT one.
func (tx *Transaction) Autocommit() bool { return tx.autocommit }

// Closed reports whether the transaction has reached its CLOSED state.
func (tx *Transaction) Closed() bool { return tx.closed }

// Failure returns the error that closed this transaction via Fail, if
// any.
func (tx *Transaction) Failure() error { return tx.failure }

func (tx *Transaction) assertOpen() error {
	if tx.closed {
		return &TransactionError{Message: "transaction is already closed"}
	}
	return nil
}

// Run issues RUN followed by DISCARD_ALL or PULL_ALL, returning a
// Result bound to the two resulting Responses. An auto-commit
// transaction flushes immediately and is closed once the flush
// completes, successfully or not.
func (tx *Transaction) Run(ctx context.Context, cypher string, parameters map[string]any, discard bool) (*Result, error) {
	if err := tx.assertOpen(); err != nil {
		return nil, err
	}
	extras := map[string]any{}
	if tx.autocommit {
		extras = tx.extras
	}
	head := tx.courier.writeRun(cypher, parameters, extras)
	var body *Response
	if discard {
		body = tx.courier.writeDiscardAll()
	} else {
		body = tx.courier.writePullAll()
	}
	if tx.autocommit {
		err := tx.courier.send(ctx)
		tx.closed = true
		if err != nil {
			return nil, err
		}
	}
	return newResult(tx, head, body), nil
}

// Evaluate runs cypher and returns the value at key (an int index or a
// string field name) of its single record, or def when there is no
// record or no such key. There is no default key: a nil key yields def.
func (tx *Transaction) Evaluate(ctx context.Context, cypher string, parameters map[string]any, key any, def any) (any, error) {
	result, err := tx.Run(ctx, cypher, parameters, false)
	if err != nil {
		return nil, err
	}
	record, err := result.Single(ctx)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return def, nil
	}
	return record.Value(key, def), nil
}

// Commit closes an explicit transaction, returning the bookmark the
// server's COMMIT SUCCESS carried.
func (tx *Transaction) Commit(ctx context.Context) (Bookmark, error) {
	if err := tx.assertOpen(); err != nil {
		return "", err
	}
	if tx.autocommit {
		return "", &TransactionError{Message: "cannot explicitly commit an auto-commit transaction"}
	}
	defer func() { tx.closed = true }()
	commit := tx.courier.writeCommit()
	if err := tx.courier.send(ctx); err != nil {
		return "", err
	}
	if err := tx.courier.fetch(ctx, nil); err != nil {
		return "", err
	}
	outcome, err := commit.GetSummary(ctx)
	if err != nil {
		return "", err
	}
	summary, _ := outcome.(*Summary)
	if summary == nil {
		return "", nil
	}
	return Bookmark(summary.Bookmark()), nil
}

// Rollback closes an explicit transaction without committing it.
func (tx *Transaction) Rollback(ctx context.Context) error {
	if err := tx.assertOpen(); err != nil {
		return err
	}
	if tx.autocommit {
		return &TransactionError{Message: "cannot explicitly rollback an auto-commit transaction"}
	}
	defer func() { tx.closed = true }()
	tx.courier.writeRollback()
	if err := tx.courier.send(ctx); err != nil {
		return err
	}
	return tx.courier.fetch(ctx, nil)
}

// fail is invoked internally with a server FAILURE. On the first call
// it resets the connection, closes the transaction, records the
// failure and returns it; a server FAILURE poisons every subsequently
// pipelined request (they come back IGNORED), and RESET is the
// server-defined recovery mechanism back to a clean session. Every
// subsequent call is a no-op, returning nil - the failure is already
// recorded.
func (tx *Transaction) fail(ctx context.Context, failure error) error {
	if tx.failure != nil {
		return nil
	}
	tx.courier.writeReset()
	if err := tx.courier.send(ctx); err != nil {
		tx.closed = true
		tx.failure = failure
		return err
	}
	if err := tx.courier.fetch(ctx, nil); err != nil {
		tx.closed = true
		tx.failure = failure
		return err
	}
	tx.closed = true
	tx.failure = failure
	return failure
}
