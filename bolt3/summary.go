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
	"sort"
	"strings"
)

// Outcome is whatever a request's terminal reply resolves to: a
// Summary (success or failure) or the singleton Ignored sentinel.
// Ok reports whether the outcome should be treated as truthy, mirroring
// the source's use of Python's __bool__ on Summary/IgnoredType.
type Outcome interface {
	Ok() bool
}

// Summary is the immutable {metadata, success} pair a SUCCESS or
// FAILURE reply resolves to.
type Summary struct {
	Metadata map[string]any
	Success  bool
}

// Ok reports success.
func (s *Summary) Ok() bool {
	return s != nil && s.Success
}

// Code returns the server error code carried by a failed Summary's
// metadata, or "" if the summary is successful or lacks one.
func (s *Summary) Code() string {
	code, _ := s.Metadata["code"].(string)
	return code
}

// Message returns the server error message carried by a failed
// Summary's metadata, or "" otherwise.
func (s *Summary) Message() string {
	msg, _ := s.Metadata["message"].(string)
	return msg
}

// Bookmark returns the bookmark entry of a COMMIT SUCCESS's metadata,
// or "" if absent.
func (s *Summary) Bookmark() string {
	bookmark, _ := s.Metadata["bookmark"].(string)
	return bookmark
}

func (s *Summary) String() string {
	keys := make([]string, 0, len(s.Metadata))
	for k := range s.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%#v", k, s.Metadata[k])
	}
	return fmt.Sprintf("<Summary %s>", strings.Join(parts, " "))
}

// ignoredSentinel is the zero-sized tagged variant standing in for an
// IGNORED reply. It is distinct from both a successful and a failed
// Summary and must never be conflated with nil - a nil Outcome means
// "no terminal reply has arrived yet", not "ignored".
type ignoredSentinel struct{}

func (ignoredSentinel) Ok() bool       { return false }
func (ignoredSentinel) String() string { return "Ignored" }

// Ignored is the canonical singleton representing an IGNORED reply: a
// request that was skipped because an earlier request in the pipeline
// had already failed. It is not an error.
var Ignored Outcome = ignoredSentinel{}
