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

// Command boltcli dials a single Bolt v3 connection and drives it from a
// line-oriented script read on stdin, printing one JSON object per
// response on stdout. It exists to exercise bolt3.Connection from a
// shell or a test harness without pulling in a full driver: one socket,
// one transaction at a time, no pooling or routing.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/technige/bolt3/bolt3"
	"github.com/technige/bolt3/log"
)

// session holds the one live connection and at most one open explicit
// transaction a script line can address.
type session struct {
	conn *bolt3.Connection
	tx   *bolt3.Transaction
	out  *json.Encoder
}

func (s *session) writeResponse(name string, data any) {
	_ = s.out.Encode(map[string]any{"name": name, "data": data})
}

func (s *session) writeError(err error) {
	s.writeResponse("Error", map[string]any{"msg": err.Error()})
}

func (s *session) activeTx() (*bolt3.Transaction, error) {
	if s.tx == nil {
		return nil, fmt.Errorf("no active transaction: call BEGIN first")
	}
	return s.tx, nil
}

// handle parses and executes one line of the script. Every recognized
// command except QUIT produces exactly one response line, even on
// failure; QUIT writes nothing and returns false to end the loop.
func (s *session) handle(ctx context.Context, line string) bool {
	fields := strings.SplitN(strings.TrimSpace(line), " ", 2)
	if len(fields) == 0 || fields[0] == "" {
		return true
	}
	command := fields[0]
	rest := ""
	if len(fields) == 2 {
		rest = fields[1]
	}

	switch command {
	case "QUIT":
		return false
	case "HELLO":
		auth := bolt3.AuthToken{Scheme: "none"}
		if rest != "" {
			auth.Scheme = "basic"
			parts := strings.SplitN(rest, " ", 2)
			auth.Principal = parts[0]
			if len(parts) == 2 {
				auth.Credentials = parts[1]
			}
		}
		if err := s.conn.Init(ctx, auth); err != nil {
			s.writeError(err)
			break
		}
		s.writeResponse("Connection", map[string]any{
			"id":     s.conn.LocalChannelID(),
			"server": s.conn.ServerAgent(),
		})
	case "BEGIN":
		tx, err := s.conn.Begin(ctx, bolt3.TransactionConfig{})
		if err != nil {
			s.writeError(err)
			break
		}
		s.tx = tx
		s.writeResponse("Transaction", map[string]any{"autocommit": false})
	case "RUN":
		s.run(ctx, rest, false)
	case "RUN_DISCARD":
		s.run(ctx, rest, true)
	case "COMMIT":
		tx, err := s.activeTx()
		if err != nil {
			s.writeError(err)
			break
		}
		bookmark, err := tx.Commit(ctx)
		s.tx = nil
		if err != nil {
			s.writeError(err)
			break
		}
		s.writeResponse("Bookmark", map[string]any{"bookmark": string(bookmark)})
	case "ROLLBACK":
		tx, err := s.activeTx()
		if err != nil {
			s.writeError(err)
			break
		}
		err = tx.Rollback(ctx)
		s.tx = nil
		if err != nil {
			s.writeError(err)
			break
		}
		s.writeResponse("Success", nil)
	case "RESET":
		if err := s.conn.Reset(ctx); err != nil {
			s.writeError(err)
			break
		}
		s.tx = nil
		s.writeResponse("Success", nil)
	case "GOODBYE":
		if err := s.conn.Close(ctx); err != nil {
			s.writeError(err)
			break
		}
		s.writeResponse("Success", nil)
	default:
		s.writeError(fmt.Errorf("unrecognized command %q", command))
	}
	return true
}

// run drives an auto-commit statement if no explicit transaction is
// open, or pipelines onto the active one otherwise, then drains every
// record before reporting the summary.
func (s *session) run(ctx context.Context, cypher string, discard bool) {
	var result *bolt3.Result
	var err error
	if s.tx != nil {
		result, err = s.tx.Run(ctx, cypher, nil, discard)
	} else {
		result, err = s.conn.Run(ctx, cypher, nil, bolt3.TransactionConfig{}, discard)
	}
	if err != nil {
		s.writeError(err)
		return
	}

	records := make([][]any, 0)
	for result.Next(ctx) {
		records = append(records, result.Record().Values)
	}
	if err := result.Err(); err != nil {
		s.writeError(err)
		return
	}
	summary, err := result.Consume(ctx)
	if err != nil {
		s.writeError(err)
		return
	}
	fields, _ := result.Fields(ctx)
	s.writeResponse("Records", map[string]any{
		"fields":  fields,
		"records": records,
		"success": summary.Ok(),
	})
}

func runScript(address, userAgent string) error {
	conn, err := net.DialTimeout("tcp", address, 10*time.Second)
	if err != nil {
		return fmt.Errorf("dial %s: %w", address, err)
	}
	defer conn.Close()

	logger := log.NewLogrusLogger(logrus.StandardLogger())
	boltConn := bolt3.NewConnection(conn, bolt3.NewCodec(conn), bolt3.Config{
		UserAgent: userAgent,
		Logger:    logger,
	})

	s := &session{conn: boltConn, out: json.NewEncoder(os.Stdout)}
	scanner := bufio.NewScanner(os.Stdin)
	ctx := context.Background()
	for scanner.Scan() {
		if !s.handle(ctx, scanner.Text()) {
			break
		}
	}
	return scanner.Err()
}

func main() {
	var address string
	var userAgent string

	root := &cobra.Command{
		Use:   "boltcli",
		Short: "Drive a single Bolt v3 connection from a line-oriented stdin script",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScript(address, userAgent)
		},
	}
	root.Flags().StringVar(&address, "address", "127.0.0.1:7687", "host:port of the Bolt v3 server")
	root.Flags().StringVar(&userAgent, "user-agent", bolt3.DefaultUserAgent, "user_agent sent in HELLO")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
