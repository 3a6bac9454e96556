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
)

// Result is a lazy, demand-driven record stream over a RUN/PULL_ALL (or
// RUN/DISCARD_ALL) Response pair: head carries the field-name header,
// body carries the records and the run-level summary.
type Result struct {
	tx   *Transaction
	head *Response
	body *Response

	fields  []string
	current *Record
	summary *Summary
	err     error
}

func newResult(tx *Transaction, head, body *Response) *Result {
	r := &Result{tx: tx, head: head, body: body}
	head.result, body.result = r, r
	return r
}

// GetHeader resolves the RUN header's raw Outcome: the Summary carrying
// the "fields" metadata on success, or Ignored if this request was
// skipped after an earlier pipelined request failed. A *FailureError is
// routed through Transaction.fail before being returned, same as Fields
// and Consume.
func (r *Result) GetHeader(ctx context.Context) (Outcome, error) {
	outcome, err := r.head.GetSummary(ctx)
	if err != nil {
		return nil, r.recordFailure(ctx, err)
	}
	return outcome, nil
}

// Fields resolves and caches the RUN header's field names, fetching the
// head Response's summary on first call only. An Ignored header (the
// RUN was skipped after an earlier failure) yields an empty slice, the
// same as a RUN that genuinely returns no columns - callers that need
// to tell the two apart should use GetHeader directly.
func (r *Result) Fields(ctx context.Context) ([]string, error) {
	if r.fields != nil {
		return r.fields, nil
	}
	outcome, err := r.GetHeader(ctx)
	if err != nil {
		return nil, err
	}
	if outcome == Ignored {
		r.fields = []string{}
		return r.fields, nil
	}
	summary, _ := outcome.(*Summary)
	names, _ := summary.Metadata["fields"].([]any)
	fields := make([]string, 0, len(names))
	for _, n := range names {
		if s, ok := n.(string); ok {
			fields = append(fields, s)
		}
	}
	r.fields = fields
	return r.fields, nil
}

// Next advances to the next record, returning false at end-of-stream or
// on error; inspect Err after a false return to distinguish the two.
func (r *Result) Next(ctx context.Context) bool {
	if r.err != nil {
		return false
	}
	values, err := r.body.GetRecord(ctx)
	if err != nil {
		r.err = r.recordFailure(ctx, err)
		return false
	}
	if values == nil {
		r.current = nil
		return false
	}
	fields, err := r.Fields(ctx)
	if err != nil {
		r.err = err
		return false
	}
	r.current = &Record{Keys: fields, Values: values}
	return true
}

// Record returns the record produced by the most recent successful
// Next call.
func (r *Result) Record() *Record { return r.current }

// Err returns the error, if any, that ended iteration.
func (r *Result) Err() error { return r.err }

// Consume discards any remaining records and returns the run's terminal
// summary.
func (r *Result) Consume(ctx context.Context) (*Summary, error) {
	for r.Next(ctx) {
	}
	if r.err != nil {
		return nil, r.err
	}
	return r.consumeSummary(ctx)
}

func (r *Result) consumeSummary(ctx context.Context) (*Summary, error) {
	if r.summary != nil {
		return r.summary, nil
	}
	outcome, err := r.body.GetSummary(ctx)
	if err != nil {
		return nil, r.recordFailure(ctx, err)
	}
	if summary, ok := outcome.(*Summary); ok {
		r.summary = summary
		return summary, nil
	}
	return nil, nil
}

// Single returns the sole record of a single-record result. A
// zero-record result yields (nil, nil); a result with more than one
// record yields its first record and a non-nil warning error rather
// than failing outright.
func (r *Result) Single(ctx context.Context) (*Record, error) {
	if !r.Next(ctx) {
		return nil, r.err
	}
	first := r.current
	extra := r.Next(ctx)
	if r.err != nil {
		return first, r.err
	}
	if extra {
		for r.Next(ctx) {
		}
		return first, fmt.Errorf("expected a single record but result contains more than one")
	}
	return first, nil
}

// recordFailure routes a FailureError surfaced while fetching through
// Transaction.fail, so RESET recovery and failure bookkeeping happen in
// one place, returning whatever fail reports (nil on the second and
// later occurrence of the same failure).
func (r *Result) recordFailure(ctx context.Context, err error) error {
	if _, ok := asFailure(err); ok && r.tx != nil {
		return r.tx.fail(ctx, err)
	}
	return err
}
