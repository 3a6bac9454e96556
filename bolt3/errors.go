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
	"fmt"
	"net"

	pkgerrors "github.com/pkg/errors"
)

// ConnectionLostError means the transport terminated unexpectedly. It
// is raised from Send and suppressed only inside Connection.Close,
// where GOODBYE is best-effort.
type ConnectionLostError struct {
	RemoteAddr net.Addr
	Cause      error
}

func (e *ConnectionLostError) Error() string {
	return fmt.Sprintf("connection to %v lost: %v", e.RemoteAddr, e.Cause)
}

func (e *ConnectionLostError) Unwrap() error { return e.Cause }

func newConnectionLostError(remote net.Addr, cause error, action string) *ConnectionLostError {
	return &ConnectionLostError{RemoteAddr: remote, Cause: pkgerrors.Wrap(cause, action)}
}

// ProtocolError means a non-Structure or unrecognized-tag message was
// received. The connection it came from must be considered defunct.
type ProtocolError struct {
	RemoteAddr net.Addr
	Message    string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("received illegal message from %v: %s", e.RemoteAddr, e.Message)
}

// FailureError wraps a server-sent FAILURE reply. It carries the
// response it terminated so callers that need it (Transaction.fail)
// can inspect which request failed.
type FailureError struct {
	Code       string
	Message    string
	RemoteAddr net.Addr
	Response   *Response
}

func (e *FailureError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// TransactionError reports misuse of the transaction state machine:
// operating on a closed transaction, committing or rolling back an
// auto-commit transaction, or starting a transaction while another is
// active on the same connection.
type TransactionError struct {
	Message string
}

func (e *TransactionError) Error() string { return e.Message }

// ExtrasError reports a BEGIN/RUN extras value of a type the wire
// codec cannot represent, naming the offending extras key so a
// caller can tell which piece of tx metadata to fix.
type ExtrasError struct {
	Key   string
	Value any
}

func (e *ExtrasError) Error() string {
	return fmt.Sprintf("unsupported type for %s: %#v", e.Key, e.Value)
}

// asFailure reports whether err is a *FailureError, following any
// pkg/errors Cause chain to its root. Wrapping made with fmt.Errorf's
// %w is not unwrapped.
func asFailure(err error) (*FailureError, bool) {
	if err == nil {
		return nil, false
	}
	if failure, ok := err.(*FailureError); ok {
		return failure, true
	}
	cause := pkgerrors.Cause(err)
	failure, ok := cause.(*FailureError)
	return failure, ok
}
