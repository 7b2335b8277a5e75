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

package sqlsink

import (
	"context"

	"github.com/go-errors/errors"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/noctarius/event-connectors/internal/faults"
	"github.com/noctarius/event-connectors/internal/logging"
	"github.com/noctarius/event-connectors/internal/stats"
	"github.com/noctarius/event-connectors/spi/config"
	"github.com/noctarius/event-connectors/spi/encoding"
	"github.com/noctarius/event-connectors/spi/sink"
	"github.com/noctarius/event-connectors/spi/transform"
)

// Db executes statements, *pgxpool.Pool satisfies it.
type Db interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Close()
}

type DbProvider = func(ctx context.Context, c *config.Config) (Db, error)

type Providers struct {
	Sink      sink.Provider
	Transform func(c *config.Config) (transform.Selector, error)
	Db        DbProvider
	Reporter  *stats.Reporter
}

// Connector consumes operations from a topic and applies them to a
// Postgres database.
type Connector struct {
	logger   *logging.Logger
	reporter *stats.Reporter
	decoder  *encoding.JsonDecoder
	sink     sink.Sink
	consumer sink.Consumer
	selector transform.Selector
	db       Db
	topic    string
}

// NewPgxPool connects a pool to sqlsink.connection.
func NewPgxPool(
	ctx context.Context, c *config.Config,
) (Db, error) {

	connection := config.GetOrDefault(c, config.PropertySqlSinkConnection, "")
	if connection == "" {
		return nil, errors.Errorf("no database configured (%s)", config.PropertySqlSinkConnection)
	}

	poolConfig, err := pgxpool.ParseConfig(connection)
	if err != nil {
		return nil, errors.Wrap(err, 0)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, errors.Wrap(err, 0)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, 0)
	}
	return pool, nil
}

// NewConnector starts the sink, checks the topic exists and can be
// consumed, resolves the transform and connects the database.
func NewConnector(
	ctx context.Context, c *config.Config, providers Providers,
) (*Connector, error) {

	logger, err := logging.NewLogger("SqlSink")
	if err != nil {
		return nil, err
	}

	if providers.Sink == nil {
		providers.Sink = func(c *config.Config) (sink.Sink, error) {
			return sink.NewSink(config.GetOrDefault(c, config.PropertySink, config.Stdout), c)
		}
	}
	if providers.Transform == nil {
		providers.Transform = transform.NewSelector
	}
	if providers.Db == nil {
		providers.Db = NewPgxPool
	}

	topic := config.GetOrDefault(c, config.PropertySinkTopic, "")
	if topic == "" {
		return nil, errors.Errorf("no topic configured (%s)", config.PropertySinkTopic)
	}

	connector := &Connector{
		logger:   logger,
		reporter: providers.Reporter,
		decoder:  encoding.NewJsonDecoder(true),
		topic:    topic,
	}
	if err := connector.initialize(ctx, c, providers); err != nil {
		connector.Close()
		return nil, err
	}
	return connector, nil
}

func (c *Connector) initialize(
	ctx context.Context, cfg *config.Config, providers Providers,
) error {

	sinkInstance, err := providers.Sink(cfg)
	if err != nil {
		return faults.Wrap(faults.ConnectionError, err, "failed to create sink")
	}
	consumer, ok := sinkInstance.(sink.Consumer)
	if !ok {
		return errors.Errorf("sink %T cannot be consumed", sinkInstance)
	}
	if err := sinkInstance.Start(); err != nil {
		return faults.Wrap(faults.ConnectionError, err, "failed to start sink")
	}
	c.sink = sinkInstance
	c.consumer = consumer

	exists, err := sinkInstance.Exists(ctx, c.topic)
	if err != nil {
		return faults.Wrap(faults.ConnectionError, err, "failed to look up topic %s", c.topic)
	}
	if !exists {
		return faults.New(faults.TopicNotFound, "topic %s does not exist", c.topic)
	}

	selector, err := providers.Transform(cfg)
	if err != nil {
		return err
	}
	c.selector = selector

	db, err := providers.Db(ctx, cfg)
	if err != nil {
		return faults.Wrap(faults.ConnectionError, err, "failed to connect database")
	}
	c.db = db
	c.logger.Infof("Connected to database, consuming topic %s", c.topic)
	return nil
}

// Run applies records until the context is cancelled. Undecodable
// records and failed statements end the run.
func (c *Connector) Run(
	ctx context.Context,
) error {

	defer c.Close()

	err := c.consumer.Consume(ctx, c.topic, c.handle)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (c *Connector) handle(
	ctx context.Context, record sink.Record,
) error {

	outputs, _, err := c.selector.Apply(record.Value)
	if err != nil {
		return errors.Wrap(err, 0)
	}

	for _, output := range outputs {
		operation := Operation{}
		if err := c.decoder.Unmarshal(output, &operation); err != nil {
			return errors.Errorf("failed to decode operation %s: %v", output, err)
		}
		if err := c.Execute(ctx, operation); err != nil {
			return err
		}
	}
	return nil
}

func (c *Connector) Execute(
	ctx context.Context, operation Operation,
) error {

	statement, args, err := operation.Statement()
	if err != nil {
		return err
	}

	c.logger.Debugf("Executing %s %v", statement, args)
	if _, err := c.db.Exec(ctx, statement, args...); err != nil {
		return errors.Wrap(err, 0)
	}
	c.reporter.Incr("operations.applied")
	return nil
}

// Close releases the database and stops the sink. It is safe to call
// more than once.
func (c *Connector) Close() {
	if c.db != nil {
		c.db.Close()
		c.db = nil
	}
	if c.sink != nil {
		if err := c.sink.Stop(); err != nil {
			c.logger.Warnf("Failed to stop sink: %v", err)
		}
		c.sink = nil
	}
}
