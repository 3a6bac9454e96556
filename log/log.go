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

// Package log defines the driver-wide logging contract: a small Logger
// interface the rest of the module depends on, plus a BoltLogger seam
// for raw wire traces. Nothing in bolt3 reaches for a logging library
// directly - it reaches for this interface, and a caller picks the
// backing implementation.
package log

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Logger is the sink every bolt3 component writes debug/info/warn/error
// lines to, always tagged with the name of the component and a log id
// (for the Courier's wire trace, its local channel id). Both are passed
// as arguments, not formatted into the message; the logrus-backed
// Logger records them as the "component" and "id" fields.
type Logger interface {
	Debugf(name, id, msg string, args ...any)
	Infof(name, id, msg string, args ...any)
	Warnf(name, id, msg string, args ...any)
	Errorf(name, id, msg string, args ...any)
	Error(name, id string, err error)
}

// BoltLogger is a seam for raw protocol trace lines ("C: RUN ...",
// "S: SUCCESS ..."), kept separate from Logger. Nothing in bolt3
// accepts or calls a BoltLogger: the Courier writes its wire trace
// through Logger.Debugf only.
type BoltLogger interface {
	LogClientMessage(context, msg string, args ...any)
	LogServerMessage(context, msg string, args ...any)
}

// logrusLogger adapts logrus to the Logger contract instead of
// hand-rolling a formatter and level filter.
type logrusLogger struct {
	entry *logrus.Logger
}

// NewLogrusLogger returns a Logger backed by a logrus.Logger.
func NewLogrusLogger(l *logrus.Logger) Logger {
	if l == nil {
		l = logrus.New()
	}
	return &logrusLogger{entry: l}
}

func (l *logrusLogger) fields(name, id string) logrus.Fields {
	return logrus.Fields{"component": name, "id": id}
}

func (l *logrusLogger) Debugf(name, id, msg string, args ...any) {
	l.entry.WithFields(l.fields(name, id)).Debugf(msg, args...)
}

func (l *logrusLogger) Infof(name, id, msg string, args ...any) {
	l.entry.WithFields(l.fields(name, id)).Infof(msg, args...)
}

func (l *logrusLogger) Warnf(name, id, msg string, args ...any) {
	l.entry.WithFields(l.fields(name, id)).Warnf(msg, args...)
}

func (l *logrusLogger) Errorf(name, id, msg string, args ...any) {
	l.entry.WithFields(l.fields(name, id)).Errorf(msg, args...)
}

func (l *logrusLogger) Error(name, id string, err error) {
	l.entry.WithFields(l.fields(name, id)).Error(err)
}

// Void discards every log line. Useful for tests that don't care about
// the wire trace.
var Void Logger = voidLogger{}

type voidLogger struct{}

func (voidLogger) Debugf(string, string, string, ...any) {}
func (voidLogger) Infof(string, string, string, ...any)  {}
func (voidLogger) Warnf(string, string, string, ...any)  {}
func (voidLogger) Errorf(string, string, string, ...any) {}
func (voidLogger) Error(string, string, error)           {}

// ConsoleBoltLogger prints wire traces to stdout via fmt, a convenience
// for ad hoc debugging without wiring up a full Logger.
type ConsoleBoltLogger struct{}

func (ConsoleBoltLogger) LogClientMessage(ctx context, msg string, args ...any) {
	fmt.Printf("[%s] C: %s\n", ctx, fmt.Sprintf(msg, args...))
}

func (ConsoleBoltLogger) LogServerMessage(ctx context, msg string, args ...any) {
	fmt.Printf("[%s] S: %s\n", ctx, fmt.Sprintf(msg, args...))
}

// context is the per-connection tag ("#XXXX") a BoltLogger call is
// scoped to. It is an alias for string, not the standard library's
// context.Context - Bolt's own log-id context, not cancellation context.
type context = string
