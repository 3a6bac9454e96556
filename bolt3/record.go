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

// Record is an ordered tuple of typed values zipped with the field
// names carried by the owning Result's RUN header.
// It intentionally stays an opaque tuple of any - materializing graph
// types (nodes, relationships, paths) is a named Non-goal.
type Record struct {
	Keys   []string
	Values []any
}

// Get returns the value for a named field and whether it was present.
func (r *Record) Get(key string) (any, bool) {
	for i, k := range r.Keys {
		if k == key {
			return r.Values[i], true
		}
	}
	return nil, false
}

// Value looks a field up by either positional index (int) or name
// (string), returning def if the key is out of range or unknown.
func (r *Record) Value(key any, def any) any {
	switch k := key.(type) {
	case int:
		if k < 0 || k >= len(r.Values) {
			return def
		}
		return r.Values[k]
	case string:
		if v, ok := r.Get(k); ok {
			return v
		}
		return def
	default:
		return def
	}
}
