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
	"testing"

	"github.com/go-errors/errors"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/noctarius/event-connectors/internal/faults"
	inttest "github.com/noctarius/event-connectors/internal/testing"
	"github.com/noctarius/event-connectors/internal/transforms/expression"
	"github.com/noctarius/event-connectors/spi/config"
	"github.com/noctarius/event-connectors/spi/sink"
	"github.com/noctarius/event-connectors/spi/transform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type execution struct {
	statement string
	args      []any
}

type fakeDb struct {
	executions []execution
	execErr    error
	closed     bool
}

func (f *fakeDb) Exec(
	_ context.Context, sql string, arguments ...any,
) (pgconn.CommandTag, error) {

	if f.execErr != nil {
		return pgconn.CommandTag{}, f.execErr
	}
	f.executions = append(f.executions, execution{statement: sql, args: arguments})
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (f *fakeDb) Close() {
	f.closed = true
}

const insertOperation = `{"Insert":{"table":"readings","values":[{"column":"id","raw_value":"7","type":"Int"}]}}`

func testConfig() *config.Config {
	return &config.Config{
		Sink: config.SinkConfig{Topic: "operations"},
	}
}

func newTestConnector(
	t *testing.T, memorySink sink.Sink, db *fakeDb, selector transform.Selector,
) (*Connector, error) {

	return NewConnector(context.Background(), testConfig(), Providers{
		Sink: func(*config.Config) (sink.Sink, error) {
			return memorySink, nil
		},
		Transform: func(*config.Config) (transform.Selector, error) {
			return selector, nil
		},
		Db: func(context.Context, *config.Config) (Db, error) {
			return db, nil
		},
	})
}

func Test_SqlSink_Applies_Operations(
	t *testing.T,
) {

	memorySink := inttest.NewMemorySink([]string{"operations"})
	memorySink.Append("operations",
		[]byte(insertOperation),
		[]byte(`{"Upsert":{"table":"readings","values":[{"column":"id","raw_value":"7","type":"Int"}],"uniq_idx":"id"}}`),
	)

	db := &fakeDb{}
	connector, err := newTestConnector(t, memorySink, db, transform.None())
	require.NoError(t, err)
	require.NoError(t, connector.Run(context.Background()))

	require.Len(t, db.executions, 2)
	assert.Equal(t, `INSERT INTO "readings" ("id") VALUES ($1::int4)`, db.executions[0].statement)
	assert.Equal(t, []any{"7"}, db.executions[0].args)
	assert.Contains(t, db.executions[1].statement, `ON CONFLICT ("id")`)
	assert.True(t, db.closed)
	assert.True(t, memorySink.Stopped())
}

func Test_SqlSink_Applies_Transform_Outputs(
	t *testing.T,
) {

	memorySink := inttest.NewMemorySink([]string{"operations"})
	memorySink.Append("operations", []byte(`{"id":"3"}`))

	tf, err := expression.NewExpressionTransform(
		`[{"Insert": {"table": "a", "values": [{"column": "id", "raw_value": record.id, "type": "Int"}]}},` +
			` {"Insert": {"table": "b", "values": [{"column": "id", "raw_value": record.id, "type": "Int"}]}}]`,
	)
	require.NoError(t, err)

	db := &fakeDb{}
	connector, err := newTestConnector(t, memorySink, db, transform.Configured(tf))
	require.NoError(t, err)
	require.NoError(t, connector.Run(context.Background()))

	require.Len(t, db.executions, 2)
	assert.Equal(t, `INSERT INTO "a" ("id") VALUES ($1::int4)`, db.executions[0].statement)
	assert.Equal(t, `INSERT INTO "b" ("id") VALUES ($1::int4)`, db.executions[1].statement)
	assert.Equal(t, []any{"3"}, db.executions[1].args)
}

func Test_SqlSink_Undecodable_Record_Is_Fatal(
	t *testing.T,
) {

	memorySink := inttest.NewMemorySink([]string{"operations"})
	memorySink.Append("operations", []byte(`{"Delete":{}}`), []byte(insertOperation))

	db := &fakeDb{}
	connector, err := newTestConnector(t, memorySink, db, transform.None())
	require.NoError(t, err)

	assert.Error(t, connector.Run(context.Background()))
	assert.Empty(t, db.executions)
	assert.True(t, db.closed)
}

func Test_SqlSink_Failed_Statement_Is_Fatal(
	t *testing.T,
) {

	memorySink := inttest.NewMemorySink([]string{"operations"})
	memorySink.Append("operations", []byte(insertOperation))

	db := &fakeDb{execErr: errors.New("relation \"readings\" does not exist")}
	connector, err := newTestConnector(t, memorySink, db, transform.None())
	require.NoError(t, err)

	assert.ErrorContains(t, connector.Run(context.Background()), "readings")
}

func Test_SqlSink_Topic_Not_Found(
	t *testing.T,
) {

	memorySink := inttest.NewMemorySink([]string{"other"})
	db := &fakeDb{}
	_, err := newTestConnector(t, memorySink, db, transform.None())
	assert.True(t, faults.Is(err, faults.TopicNotFound))
	assert.True(t, memorySink.Stopped())
}

func Test_SqlSink_Requires_Consumable_Sink(
	t *testing.T,
) {

	writeOnly := inttest.NewWriteOnlySink(inttest.NewMemorySink([]string{"operations"}))
	_, err := newTestConnector(t, writeOnly, &fakeDb{}, transform.None())
	assert.ErrorContains(t, err, "cannot be consumed")
}

func Test_SqlSink_Requires_Database(
	t *testing.T,
) {

	_, err := NewPgxPool(context.Background(), &config.Config{})
	assert.ErrorContains(t, err, config.PropertySqlSinkConnection)
}
