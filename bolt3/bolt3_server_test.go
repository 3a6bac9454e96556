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
	"net"
	"testing"

	"github.com/technige/bolt3/bolt3/internal/packstream"
	"github.com/technige/bolt3/log"
)

// fakeServer is a hand-driven Bolt3 peer sitting on the far end of a
// net.Pipe, used to script server replies without a real TCP listener.
type fakeServer struct {
	t    *testing.T
	conn net.Conn
	ps   *packstream.PackStream
}

func newFakeServer(t *testing.T) (*Courier, *fakeServer) {
	t.Helper()
	return newFakeServerWithLogger(t, nil)
}

func newFakeServerWithLogger(t *testing.T, logger log.Logger) (*Courier, *fakeServer) {
	t.Helper()
	clientConn, serverConn := net.Pipe()
	codec := packstream.New(clientConn)
	courier := newCourier(clientConn, codec, logger)
	server := &fakeServer{t: t, conn: serverConn, ps: packstream.New(serverConn)}
	t.Cleanup(func() { _ = clientConn.Close(); _ = serverConn.Close() })
	return courier, server
}

func (s *fakeServer) expect(tag byte) *packstream.Structure {
	s.t.Helper()
	msg, err := s.ps.ReadMessage()
	if err != nil {
		s.t.Fatalf("server read failed: %v", err)
	}
	structure, ok := msg.(*packstream.Structure)
	if !ok {
		s.t.Fatalf("server expected a structure, got %T", msg)
	}
	if structure.Tag != tag {
		s.t.Fatalf("server expected tag 0x%02X, got 0x%02X", tag, structure.Tag)
	}
	return structure
}

func (s *fakeServer) send(tag byte, fields ...any) {
	s.t.Helper()
	if err := s.ps.WriteMessage(&packstream.Structure{Tag: tag, Fields: fields}); err != nil {
		s.t.Fatalf("server write failed: %v", err)
	}
}

func (s *fakeServer) sendSuccess(metadata map[string]any) { s.send(tagSuccess, metadata) }
func (s *fakeServer) sendRecord(values []any)             { s.send(tagRecord, values) }
func (s *fakeServer) sendIgnored()                        { s.send(tagIgnored) }
func (s *fakeServer) sendFailure(code, message string) {
	s.send(tagFailure, map[string]any{"code": code, "message": message})
}
