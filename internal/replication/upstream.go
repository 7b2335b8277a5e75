/*
 * Licensed to the Apache Software Foundation (ASF) under one or more
 * contributor license agreements. See the NOTICE file distributed with
 * this work for additional information regarding copyright ownership.
 * The ASF licenses this file to You under the Apache License, Version 2.0
 * (the "License"); you may not use this file except in compliance with
 * the License. You may obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package replication

import (
	"context"
	"time"

	"github.com/go-errors/errors"
	"github.com/jackc/pglogrepl"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgproto3"
	"github.com/noctarius/event-connectors/internal/faults"
	"github.com/noctarius/event-connectors/internal/logging"
	"github.com/noctarius/event-connectors/spi/config"
)

// ReplicationStream is the upstream logical replication connection as
// seen by a session.
type ReplicationStream interface {
	StartReplication(ctx context.Context, command ReplicationCommand) error
	// ReceiveMessage waits for the next backend message until deadline.
	// A nil message without error means the deadline passed.
	ReceiveMessage(ctx context.Context, deadline time.Time) (pgproto3.BackendMessage, error)
	SendStatusUpdate(ctx context.Context, payload []byte) error
	Close(ctx context.Context) error
}

type UpstreamProvider = func(ctx context.Context, c *config.Config) (ReplicationStream, error)

type pgReplicationStream struct {
	logger *logging.Logger
	conn   *pgconn.PgConn
}

// NewPgReplicationStream opens a replication-mode connection using
// postgresql.connection and, if set, postgresql.password.
func NewPgReplicationStream(
	ctx context.Context, c *config.Config,
) (ReplicationStream, error) {

	logger, err := logging.NewLogger("ReplicationStream")
	if err != nil {
		return nil, err
	}

	connection := config.GetOrDefault(c, config.PropertyPostgresqlConnection, "")
	if connection == "" {
		return nil, errors.Errorf("no database connection configured (%s)", config.PropertyPostgresqlConnection)
	}

	connConfig, err := pgconn.ParseConfig(connection)
	if err != nil {
		return nil, errors.Wrap(err, 0)
	}
	if password := config.GetOrDefault(c, config.PropertyPostgresqlPassword, ""); password != "" {
		connConfig.Password = password
	}
	connConfig.RuntimeParams["replication"] = "database"

	conn, err := pgconn.ConnectConfig(ctx, connConfig)
	if err != nil {
		return nil, faults.Wrap(faults.ConnectionError, err, "failed to connect to %s:%d", connConfig.Host, connConfig.Port)
	}

	identification, err := pglogrepl.IdentifySystem(ctx, conn)
	if err != nil {
		conn.Close(ctx)
		return nil, faults.Wrap(faults.ConnectionError, err, "IDENTIFY_SYSTEM failed")
	}
	logger.Infof("SystemId: %s, Timeline: %d, XLogPos: %s, DatabaseName: %s",
		identification.SystemID, identification.Timeline, identification.XLogPos, identification.DBName,
	)

	return &pgReplicationStream{
		logger: logger,
		conn:   conn,
	}, nil
}

func (p *pgReplicationStream) StartReplication(
	ctx context.Context, command ReplicationCommand,
) error {

	p.logger.Infof("Issuing %s", command)
	return pglogrepl.StartReplication(ctx, p.conn, command.QuotedSlot(), pglogrepl.LSN(command.StartLSN),
		pglogrepl.StartReplicationOptions{
			Mode:       pglogrepl.LogicalReplication,
			PluginArgs: command.PluginArguments(),
		},
	)
}

func (p *pgReplicationStream) ReceiveMessage(
	ctx context.Context, deadline time.Time,
) (pgproto3.BackendMessage, error) {

	receiveCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	msg, err := p.conn.ReceiveMessage(receiveCtx)
	if err != nil {
		if pgconn.Timeout(err) && ctx.Err() == nil {
			return nil, nil
		}
		return nil, errors.Wrap(err, 0)
	}
	return msg, nil
}

func (p *pgReplicationStream) SendStatusUpdate(
	ctx context.Context, payload []byte,
) error {

	p.conn.Frontend().Send(&pgproto3.CopyData{Data: payload})
	if err := p.conn.Frontend().Flush(); err != nil {
		return errors.Wrap(err, 0)
	}
	return ctx.Err()
}

func (p *pgReplicationStream) Close(
	ctx context.Context,
) error {

	if _, err := pglogrepl.SendStandbyCopyDone(ctx, p.conn); err != nil {
		p.logger.Debugf("CopyDone on close failed: %v", err)
	}
	return p.conn.Close(ctx)
}
