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

import "github.com/technige/bolt3/bolt3/internal/packstream"

// Message tags.
const (
	tagHello      = 0x01
	tagGoodbye    = 0x02
	tagReset      = 0x0F
	tagRun        = 0x10
	tagBegin      = 0x11
	tagCommit     = 0x12
	tagRollback   = 0x13
	tagDiscardAll = 0x2F
	tagPullAll    = 0x3F

	tagSuccess = 0x70
	tagRecord  = 0x71
	tagIgnored = 0x7E
	tagFailure = 0x7F
)

// Codec is the external, out-of-scope collaborator that frames Bolt
// messages over a duplex byte stream. Courier depends only on this
// interface; internal/packstream.PackStream is the one concrete
// implementation this module ships (see DESIGN.md for why it isn't
// pulled from a third-party library).
type Codec interface {
	// ReadMessage decodes the next top-level value. For well-formed
	// traffic this is always a *packstream.Structure; Courier treats
	// anything else as an illegal message.
	ReadMessage() (any, error)
	// WriteMessage encodes and flushes a single structure.
	WriteMessage(*packstream.Structure) error
}
