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

import "context"

// Response is the reply buffer for a single outstanding request: a
// FIFO of pending record field-vectors plus an optional terminal
// summary. It holds no direct transport access - everything it does
// beyond bookkeeping is driving Courier.fetch with a stop predicate.
type Response struct {
	courier *Courier
	records [][]any
	summary Outcome
	// result is a non-owning, diagnostic-only back reference set once
	// the owning Result is constructed.
	result *Result
}

func newResponse(courier *Courier) *Response {
	return &Response{courier: courier}
}

// putRecord appends a record's field vector. Called only by Courier,
// and only while no terminal summary has been assigned yet.
func (r *Response) putRecord(values []any) {
	r.records = append(r.records, values)
}

// putSummary assigns the terminal summary. Called only by Courier, at
// most once per Response.
func (r *Response) putSummary(summary Outcome) {
	r.summary = summary
}

// GetRecord pops and returns the next buffered record, driving the
// Courier's read loop just enough to produce one if none is buffered
// yet. A nil slice with a nil error means end-of-records: the summary
// has arrived and no further records will.
//
// Records must be drained before end-of-records is reported even once
// the summary has also arrived, because RECORD messages necessarily
// precede the terminal summary on the wire and are already sitting in
// the FIFO by the time it does.
func (r *Response) GetRecord(ctx context.Context) ([]any, error) {
	for {
		if len(r.records) > 0 {
			values := r.records[0]
			r.records = r.records[1:]
			return values, nil
		}
		if r.summary != nil {
			return nil, nil
		}
		if err := r.courier.fetch(ctx, func() bool {
			return len(r.records) > 0 || r.summary != nil
		}); err != nil {
			return nil, err
		}
	}
}

// GetSummary drives the Courier's read loop until this Response's
// terminal summary has arrived, then returns it.
func (r *Response) GetSummary(ctx context.Context) (Outcome, error) {
	if r.summary == nil {
		if err := r.courier.fetch(ctx, func() bool { return r.summary != nil }); err != nil {
			return nil, err
		}
	}
	return r.summary, nil
}
