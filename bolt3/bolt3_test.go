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
	"fmt"
	"strings"
	"testing"

	"github.com/technige/bolt3/bolt3/internal/testutil"
)

// capturingLogger records every Debugf line, formatted, so a test can
// inspect exactly what Courier would have written to the wire trace.
type capturingLogger struct {
	lines []string
}

func (l *capturingLogger) Debugf(name, id, msg string, args ...any) {
	l.lines = append(l.lines, fmt.Sprintf(msg, args...))
}
func (l *capturingLogger) Infof(name, id, msg string, args ...any)  {}
func (l *capturingLogger) Warnf(name, id, msg string, args ...any)  {}
func (l *capturingLogger) Errorf(name, id, msg string, args ...any) {}
func (l *capturingLogger) Error(name, id string, err error)         {}

// Init's HELLO extras must never reach the log with a plaintext
// credentials entry, and a successful HELLO must capture the server's
// connection id and agent string.
func TestInitMasksCredentialsAndCapturesServerIdentity(t *testing.T) {
	logger := &capturingLogger{}
	courier, server := newFakeServerWithLogger(t, logger)
	done := make(chan struct{})
	go func() {
		defer close(done)
		hello := server.expect(tagHello)
		extras, _ := hello.Fields[0].(map[string]any)
		testutil.AssertMapHas(t, extras, "credentials", "secret-pw")
		server.sendSuccess(map[string]any{
			"connection_id": "conn-1",
			"server":        "Neo4j/5.0",
		})
	}()

	conn := &Connection{courier: courier, log: logger, userAgent: "boltcli-test"}
	err := conn.Init(context.Background(), AuthToken{Scheme: "basic", Principal: "neo4j", Credentials: "secret-pw"})
	testutil.AssertNoError(t, err)
	testutil.AssertEquals(t, conn.ServerConnectionID(), "conn-1")
	testutil.AssertEquals(t, conn.ServerAgent(), "Neo4j/5.0")
	<-done

	found := false
	for _, line := range logger.lines {
		if !strings.Contains(line, "HELLO") {
			continue
		}
		found = true
		testutil.AssertFalse(t, strings.Contains(line, "secret-pw"))
		testutil.AssertTrue(t, strings.Contains(line, redactedCredentials))
	}
	testutil.AssertTrue(t, found)
}

// A FAILURE reply to HELLO fails Init instead of marking the connection
// initialized.
func TestInitFailsOnServerFailure(t *testing.T) {
	courier, server := newFakeServer(t)
	done := make(chan struct{})
	go func() {
		defer close(done)
		server.expect(tagHello)
		server.sendFailure("Neo.ClientError.Security.Unauthorized", "bad credentials")
	}()

	conn := &Connection{courier: courier}
	err := conn.Init(context.Background(), AuthToken{Scheme: "basic", Principal: "neo4j", Credentials: "wrong"})
	testutil.AssertError(t, err)
	_, ok := asFailure(err)
	testutil.AssertTrue(t, ok)
	testutil.AssertFalse(t, conn.helloDone)
	<-done
}

// S1: auto-commit read - RUN+PULL_ALL pipelined, two records then a
// successful summary, queue drained in order.
func TestAutoCommitRead(t *testing.T) {
	courier, server := newFakeServer(t)
	done := make(chan struct{})
	go func() {
		defer close(done)
		server.expect(tagRun)
		server.expect(tagPullAll)
		server.sendSuccess(map[string]any{"fields": []any{"n"}})
		server.sendRecord([]any{int64(1)})
		server.sendRecord([]any{int64(2)})
		server.sendSuccess(map[string]any{"type": "r"})
	}()

	tx, err := newTransaction(courier, TransactionConfig{})
	testutil.AssertNoError(t, err)
	result, err := tx.Run(context.Background(), "MATCH (n) RETURN n", nil, false)
	testutil.AssertNoError(t, err)

	var got []int64
	for result.Next(context.Background()) {
		got = append(got, result.Record().Values[0].(int64))
	}
	testutil.AssertNoError(t, result.Err())
	testutil.AssertEquals(t, got, []int64{1, 2})
	testutil.AssertTrue(t, tx.Closed())
	<-done
}

// S2: explicit transaction with bookmarks syncs BEGIN eagerly, runs a
// statement, and COMMIT returns the new bookmark.
func TestExplicitTransactionCommitWithBookmark(t *testing.T) {
	courier, server := newFakeServer(t)
	done := make(chan struct{})
	go func() {
		defer close(done)
		begin := server.expect(tagBegin)
		extras, _ := begin.Fields[0].(map[string]any)
		testutil.AssertMapHas(t, extras, "bookmarks", []any{"bm-1"})
		server.sendSuccess(map[string]any{})
		server.expect(tagRun)
		server.expect(tagPullAll)
		server.sendSuccess(map[string]any{"fields": []any{}})
		server.sendSuccess(map[string]any{})
		server.expect(tagCommit)
		server.sendSuccess(map[string]any{"bookmark": "bm-2"})
	}()

	tx, err := beginTransaction(context.Background(), courier, TransactionConfig{Bookmarks: []string{"bm-1"}})
	testutil.AssertNoError(t, err)
	result, err := tx.Run(context.Background(), "CREATE (n)", nil, false)
	testutil.AssertNoError(t, err)
	_, err = result.Consume(context.Background())
	testutil.AssertNoError(t, err)
	bookmark, err := tx.Commit(context.Background())
	testutil.AssertNoError(t, err)
	testutil.AssertEquals(t, string(bookmark), "bm-2")
	<-done
}

// S3: a FAILURE mid-stream raises a *FailureError, drives exactly one
// RESET, and closes the transaction idempotently.
func TestServerFailureMidStream(t *testing.T) {
	courier, server := newFakeServer(t)
	done := make(chan struct{})
	resets := 0
	go func() {
		defer close(done)
		server.expect(tagBegin)
		server.expect(tagRun)
		server.expect(tagPullAll)
		server.sendSuccess(map[string]any{})
		server.sendSuccess(map[string]any{"fields": []any{"n"}})
		server.sendFailure("Neo.ClientError.Statement.SyntaxError", "boom")
		resets++
		server.expect(tagReset)
		server.sendSuccess(map[string]any{})
	}()

	tx, err := beginTransaction(context.Background(), courier, TransactionConfig{})
	testutil.AssertNoError(t, err)
	result, err := tx.Run(context.Background(), "RETURN 1", nil, false)
	testutil.AssertNoError(t, err)

	for result.Next(context.Background()) {
	}
	testutil.AssertError(t, result.Err())
	testutil.AssertErrorCode(t, result.Err(), "Neo.ClientError.Statement.SyntaxError")
	testutil.AssertTrue(t, tx.Closed())

	// Second failure notification is a no-op: fail is idempotent.
	again := tx.fail(context.Background(), result.Err())
	testutil.AssertNil(t, again)
	<-done
	testutil.AssertEquals(t, resets, 1)
}

// S4: pipelined RUN+DISCARD_ALL auto-commit - both requests flushed
// together, and the transaction is closed once send returns even
// though neither reply has arrived yet.
func TestPipelinedAutoCommitDiscard(t *testing.T) {
	courier, server := newFakeServer(t)
	done := make(chan struct{})
	go func() {
		defer close(done)
		server.expect(tagRun)
		server.expect(tagDiscardAll)
		server.sendSuccess(map[string]any{"fields": []any{}})
		server.sendSuccess(map[string]any{"type": "w"})
	}()

	tx, err := newTransaction(courier, TransactionConfig{})
	testutil.AssertNoError(t, err)
	result, err := tx.Run(context.Background(), "CREATE (n)", nil, true)
	testutil.AssertNoError(t, err)
	testutil.AssertTrue(t, tx.Closed())

	summary, err := result.Consume(context.Background())
	testutil.AssertNoError(t, err)
	testutil.AssertTrue(t, summary.Ok())
	<-done
}

// S5: an illegal server message marks the connection defunct and does
// not consume the head response's slot in the queue.
func TestIllegalServerMessage(t *testing.T) {
	courier, server := newFakeServer(t)
	done := make(chan struct{})
	go func() {
		defer close(done)
		server.expect(tagRun)
		server.expect(tagPullAll)
		server.send(0x55)
	}()

	tx, err := newTransaction(courier, TransactionConfig{})
	testutil.AssertNoError(t, err)
	result, err := tx.Run(context.Background(), "RETURN 1", nil, false)
	testutil.AssertNoError(t, err)

	result.Next(context.Background())
	testutil.AssertError(t, result.Err())
	_, ok := result.Err().(*ProtocolError)
	testutil.AssertTrue(t, ok)
	testutil.AssertTrue(t, courier.defunct)
	<-done
}

// S6: a caller-raised error inside RunTx's work function rolls the
// transaction back instead of committing it.
func TestRunTxRollsBackOnCallerError(t *testing.T) {
	courier, server := newFakeServer(t)
	done := make(chan struct{})
	go func() {
		defer close(done)
		server.expect(tagBegin)
		server.expect(tagRollback)
		server.sendSuccess(map[string]any{})
		server.sendSuccess(map[string]any{})
	}()

	c := &Connection{courier: courier, helloDone: true}
	boom := fmt.Errorf("caller work failed")
	_, _, err := c.RunTx(context.Background(), TransactionConfig{}, func(ctx context.Context, tx *Transaction) (any, error) {
		return nil, boom
	})
	testutil.AssertError(t, err)
	testutil.AssertEquals(t, err, boom)
	<-done
}

// Connection.Reset discards an active transaction without committing
// or rolling it back, and requires HELLO to have completed first.
func TestConnectionReset(t *testing.T) {
	courier, server := newFakeServer(t)
	done := make(chan struct{})
	go func() {
		defer close(done)
		server.expect(tagBegin)
		server.expect(tagReset)
		server.sendSuccess(map[string]any{})
		server.sendSuccess(map[string]any{})
	}()

	c := &Connection{courier: courier, helloDone: true}
	tx, err := c.Begin(context.Background(), TransactionConfig{})
	testutil.AssertNoError(t, err)
	testutil.AssertFalse(t, tx.Closed())

	err = c.Reset(context.Background())
	testutil.AssertNoError(t, err)
	<-done
}

func TestConnectionResetBeforeHelloFails(t *testing.T) {
	c := &Connection{}
	err := c.Reset(context.Background())
	testutil.AssertError(t, err)
}

// A FAILURE on one pipelined statement causes every later statement
// already pipelined ahead of the RESET to come back IGNORED. GetHeader
// and Consume must report that as falsy without treating it as an
// error - only the statement that actually failed gets a FailureError.
func TestIgnoredAfterEarlierFailureIsNotAnError(t *testing.T) {
	courier, server := newFakeServer(t)
	done := make(chan struct{})
	go func() {
		defer close(done)
		server.expect(tagBegin)
		server.expect(tagRun)
		server.expect(tagPullAll)
		server.expect(tagRun)
		server.expect(tagPullAll)
		server.sendSuccess(map[string]any{})
		server.sendFailure("Neo.ClientError.Statement.ArithmeticError", "boom")
		server.expect(tagReset)
		server.sendIgnored()
		server.sendIgnored()
		server.sendIgnored()
		server.sendSuccess(map[string]any{})
	}()

	tx, err := beginTransaction(context.Background(), courier, TransactionConfig{})
	testutil.AssertNoError(t, err)
	result1, err := tx.Run(context.Background(), "RETURN 1/0", nil, false)
	testutil.AssertNoError(t, err)
	result2, err := tx.Run(context.Background(), "RETURN 2", nil, false)
	testutil.AssertNoError(t, err)

	_, err1 := result1.GetHeader(context.Background())
	testutil.AssertError(t, err1)
	_, ok := asFailure(err1)
	testutil.AssertTrue(t, ok)

	outcome2, err2 := result2.GetHeader(context.Background())
	testutil.AssertNoError(t, err2)
	testutil.AssertEquals(t, outcome2, Ignored)
	testutil.AssertFalse(t, outcome2.Ok())

	summary2, err2 := result2.Consume(context.Background())
	testutil.AssertNoError(t, err2)
	testutil.AssertNil(t, summary2)
	<-done
}

func TestResultFieldsCached(t *testing.T) {
	courier, server := newFakeServer(t)
	done := make(chan struct{})
	calls := 0
	go func() {
		defer close(done)
		server.expect(tagRun)
		server.expect(tagPullAll)
		calls++
		server.sendSuccess(map[string]any{"fields": []any{"a", "b"}})
		server.sendSuccess(map[string]any{})
	}()

	tx, err := newTransaction(courier, TransactionConfig{})
	testutil.AssertNoError(t, err)
	result, err := tx.Run(context.Background(), "RETURN 1,2", nil, false)
	testutil.AssertNoError(t, err)

	fields1, err := result.Fields(context.Background())
	testutil.AssertNoError(t, err)
	fields2, err := result.Fields(context.Background())
	testutil.AssertNoError(t, err)
	testutil.AssertEquals(t, fields1, fields2)
	testutil.AssertEquals(t, calls, 1)
	_, err = result.Consume(context.Background())
	testutil.AssertNoError(t, err)
	<-done
}

func TestRecordValueByIndexAndName(t *testing.T) {
	record := &Record{Keys: []string{"a", "b"}, Values: []any{1, "two"}}
	testutil.AssertEquals(t, record.Value(0, nil), 1)
	testutil.AssertEquals(t, record.Value("b", nil), "two")
	testutil.AssertEquals(t, record.Value("missing", "default"), "default")
	testutil.AssertEquals(t, record.Value(5, "default"), "default")
}
