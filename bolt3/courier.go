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
	"net"

	"github.com/google/uuid"

	"github.com/technige/bolt3/bolt3/internal/packstream"
	"github.com/technige/bolt3/log"
)

const logName = "bolt3"

// redactedCredentials replaces a HELLO extras' credentials entry in
// log output.
const redactedCredentials = "*******"

// Courier owns the duplex byte stream and the response queue. Every
// request flows through it; every server message is dispatched by it,
// merging the write and read sides into a single owner of both
// directions.
type Courier struct {
	codec   Codec
	conn    net.Conn
	log     log.Logger
	outbox  []*packstream.Structure
	queue   []*Response
	localID string
	defunct bool
}

func newCourier(conn net.Conn, codec Codec, logger log.Logger) *Courier {
	if logger == nil {
		logger = log.Void
	}
	return &Courier{
		codec:   codec,
		conn:    conn,
		log:     logger,
		localID: uuid.NewString()[:8],
	}
}

// LocalChannelID identifies this Courier for log correlation. It is
// distinct from the server-issued connection id HELLO returns (Open
// Question b): this one is purely local and never sent on the wire.
func (c *Courier) LocalChannelID() string { return c.localID }

func (c *Courier) remoteAddr() net.Addr {
	if c.conn == nil {
		return nil
	}
	return c.conn.RemoteAddr()
}

func maskCredentials(extras map[string]any) map[string]any {
	if _, ok := extras["credentials"]; !ok {
		return extras
	}
	masked := make(map[string]any, len(extras))
	for k, v := range extras {
		if k == "credentials" {
			masked[k] = redactedCredentials
			continue
		}
		masked[k] = v
	}
	return masked
}

func (c *Courier) writeHello(extras map[string]any) *Response {
	c.log.Debugf(logName, c.localID, "C: HELLO %v", maskCredentials(extras))
	return c.write(&packstream.Structure{Tag: tagHello, Fields: []any{extras}})
}

func (c *Courier) writeGoodbye() *Response {
	c.log.Debugf(logName, c.localID, "C: GOODBYE")
	return c.write(&packstream.Structure{Tag: tagGoodbye})
}

func (c *Courier) writeReset() *Response {
	c.log.Debugf(logName, c.localID, "C: RESET")
	return c.write(&packstream.Structure{Tag: tagReset})
}

func (c *Courier) writeRun(cypher string, parameters map[string]any, extras map[string]any) *Response {
	if parameters == nil {
		parameters = map[string]any{}
	}
	if extras == nil {
		extras = map[string]any{}
	}
	c.log.Debugf(logName, c.localID, "C: RUN %q %v %v", cypher, parameters, extras)
	return c.write(&packstream.Structure{Tag: tagRun, Fields: []any{cypher, parameters, extras}})
}

func (c *Courier) writeBegin(extras map[string]any) *Response {
	c.log.Debugf(logName, c.localID, "C: BEGIN %v", extras)
	return c.write(&packstream.Structure{Tag: tagBegin, Fields: []any{extras}})
}

func (c *Courier) writeCommit() *Response {
	c.log.Debugf(logName, c.localID, "C: COMMIT")
	return c.write(&packstream.Structure{Tag: tagCommit})
}

func (c *Courier) writeRollback() *Response {
	c.log.Debugf(logName, c.localID, "C: ROLLBACK")
	return c.write(&packstream.Structure{Tag: tagRollback})
}

func (c *Courier) writeDiscardAll() *Response {
	c.log.Debugf(logName, c.localID, "C: DISCARD_ALL")
	return c.write(&packstream.Structure{Tag: tagDiscardAll})
}

func (c *Courier) writePullAll() *Response {
	c.log.Debugf(logName, c.localID, "C: PULL_ALL")
	return c.write(&packstream.Structure{Tag: tagPullAll})
}

// write buffers a request and appends a fresh Response to the queue in
// the same call, so the two can never drift apart.
// The write is buffered, not flushed: callers decide when to Send.
func (c *Courier) write(msg *packstream.Structure) *Response {
	c.outbox = append(c.outbox, msg)
	response := newResponse(c)
	c.queue = append(c.queue, response)
	return response
}

// send flushes the outbound buffer in call order.
func (c *Courier) send(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.log.Debugf(logName, c.localID, "C: <SEND>")
	for len(c.outbox) > 0 {
		msg := c.outbox[0]
		c.outbox = c.outbox[1:]
		if err := c.codec.WriteMessage(msg); err != nil {
			return newConnectionLostError(c.remoteAddr(), err, "write message")
		}
	}
	return nil
}

// fetch reads zero or more inbound messages, dispatching each to the
// head Response, until the queue is empty or stop returns true. stop
// may be nil, meaning "drain the whole queue" (used by Commit,
// Rollback and Fail, which need every pipelined reply consumed before
// proceeding). If a FAILURE reply is consumed, fetch returns a
// *FailureError instead of nil.
//
// A reply can only exist for a request that has actually been written,
// so fetch flushes any buffered outbox first - this is what makes a
// lazily pipelined BEGIN or RUN resolve once a caller finally asks for
// a record or summary, without every write needing its own explicit
// send.
func (c *Courier) fetch(ctx context.Context, stop func() bool) error {
	if len(c.outbox) > 0 {
		if err := c.send(ctx); err != nil {
			return err
		}
	}
	for len(c.queue) > 0 && (stop == nil || !stop()) {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg, err := c.codec.ReadMessage()
		if err != nil {
			return newConnectionLostError(c.remoteAddr(), err, "read message")
		}
		structure, ok := msg.(*packstream.Structure)
		if !ok {
			c.defunct = true
			return &ProtocolError{RemoteAddr: c.remoteAddr(), Message: fmt.Sprintf("illegal message type %T", msg)}
		}
		if err := c.dispatch(structure); err != nil {
			return err
		}
	}
	return nil
}

// dispatch applies one inbound message to the head of the response
// queue. A FAILURE reply yields
// a *FailureError; an unrecognized tag yields a *ProtocolError and
// marks the connection defunct, without touching the queue.
func (c *Courier) dispatch(structure *packstream.Structure) error {
	switch structure.Tag {
	case tagRecord:
		values, _ := structure.Fields[0].([]any)
		c.log.Debugf(logName, c.localID, "S: RECORD %v", values)
		c.queue[0].putRecord(values)
		return nil
	case tagSuccess:
		metadata, _ := structure.Fields[0].(map[string]any)
		c.log.Debugf(logName, c.localID, "S: SUCCESS %v", metadata)
		head := c.dequeue()
		head.putSummary(&Summary{Metadata: metadata, Success: true})
		return nil
	case tagIgnored:
		c.log.Debugf(logName, c.localID, "S: IGNORED")
		head := c.dequeue()
		head.putSummary(Ignored)
		return nil
	case tagFailure:
		metadata, _ := structure.Fields[0].(map[string]any)
		c.log.Debugf(logName, c.localID, "S: FAILURE %v", metadata)
		head := c.dequeue()
		summary := &Summary{Metadata: metadata, Success: false}
		head.putSummary(summary)
		code, _ := metadata["code"].(string)
		message, _ := metadata["message"].(string)
		return &FailureError{Code: code, Message: message, RemoteAddr: c.remoteAddr(), Response: head}
	default:
		c.defunct = true
		return &ProtocolError{
			RemoteAddr: c.remoteAddr(),
			Message:    fmt.Sprintf("illegal message structure tag 0x%02X", structure.Tag),
		}
	}
}

func (c *Courier) dequeue() *Response {
	head := c.queue[0]
	c.queue = c.queue[1:]
	return head
}

// isEmpty reports whether every written request has had its summary
// consumed.
func (c *Courier) isEmpty() bool { return len(c.queue) == 0 }

// closeTransport tears down the underlying connection exactly once.
// Called by Connection.Close after best-effort GOODBYE.
func (c *Courier) closeTransport() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}
