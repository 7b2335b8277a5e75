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

package emitting

import (
	"context"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/go-errors/errors"
	"github.com/noctarius/event-connectors/internal/faults"
	inttest "github.com/noctarius/event-connectors/internal/testing"
	"github.com/noctarius/event-connectors/spi/replicationevent"
	"github.com/noctarius/event-connectors/spi/sink"
	"github.com/noctarius/event-connectors/spi/transform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const topic = "pg-events"

func testEvent() *replicationevent.Event {
	return &replicationevent.Event{
		LSN:       42,
		Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Message: &replicationevent.Insert{
			RelationID: 7,
			New: replicationevent.NewTuple(
				replicationevent.Field{Name: "id", Value: replicationevent.IntegerValue(1)},
			),
		},
	}
}

func fanOut(n int) transform.Transform {
	return transform.Func(func([]byte) ([][]byte, error) {
		outputs := make([][]byte, 0, n)
		for i := 0; i < n; i++ {
			outputs = append(outputs, []byte(strconv.Itoa(i)))
		}
		return outputs, nil
	})
}

func Test_Emit_Without_Transform(t *testing.T) {
	memorySink := inttest.NewMemorySink([]string{topic})
	emitter, err := NewEmitter(memorySink, topic, transform.None())
	require.NoError(t, err)

	emitted, err := emitter.Emit(context.Background(), testEvent())
	require.NoError(t, err)
	assert.Equal(t, 1, emitted)

	writes := memorySink.Writes()
	require.Len(t, writes, 1)
	assert.False(t, writes[0].Batch)
	require.Len(t, writes[0].Records, 1)
	assert.Nil(t, writes[0].Records[0].Key)

	decoded, err := replicationevent.Decode(writes[0].Records[0].Value)
	require.NoError(t, err)
	assert.Equal(t, testEvent().LSN, decoded.LSN)
}

func Test_Emit_Batch_Law(t *testing.T) {
	for _, n := range []int{0, 1, 99, 100, 101, 250, 1000} {
		t.Run(fmt.Sprintf("outputs=%d", n), func(t *testing.T) {
			memorySink := inttest.NewMemorySink([]string{topic})
			emitter, err := NewEmitter(memorySink, topic, transform.Configured(fanOut(n)))
			require.NoError(t, err)

			emitted, err := emitter.Emit(context.Background(), testEvent())
			require.NoError(t, err)
			assert.Equal(t, n, emitted)

			writes := memorySink.Writes()
			assert.Len(t, writes, (n+BatchSize-1)/BatchSize)

			concatenated := make([]string, 0, n)
			for i, write := range writes {
				assert.True(t, write.Batch)
				if i < len(writes)-1 {
					assert.Len(t, write.Records, BatchSize)
				}
				for _, record := range write.Records {
					assert.Nil(t, record.Key)
					concatenated = append(concatenated, string(record.Value))
				}
			}

			expected := make([]string, 0, n)
			for i := 0; i < n; i++ {
				expected = append(expected, strconv.Itoa(i))
			}
			assert.Equal(t, expected, concatenated)
		})
	}
}

func Test_Emit_Transform_Receives_Encoded_Event(t *testing.T) {
	var seen []byte
	capture := transform.Func(func(record []byte) ([][]byte, error) {
		seen = record
		return [][]byte{record}, nil
	})

	memorySink := inttest.NewMemorySink([]string{topic})
	emitter, err := NewEmitter(memorySink, topic, transform.Configured(capture))
	require.NoError(t, err)

	_, err = emitter.Emit(context.Background(), testEvent())
	require.NoError(t, err)

	expected, err := replicationevent.Encode(testEvent())
	require.NoError(t, err)
	assert.JSONEq(t, string(expected), string(seen))
}

func Test_Emit_Transform_Failure(t *testing.T) {
	failing := transform.Func(func([]byte) ([][]byte, error) {
		return nil, errors.New("transform exploded")
	})

	memorySink := inttest.NewMemorySink([]string{topic})
	emitter, err := NewEmitter(memorySink, topic, transform.Configured(failing))
	require.NoError(t, err)

	_, err = emitter.Emit(context.Background(), testEvent())
	require.Error(t, err)
	assert.Equal(t, faults.EmissionError, faults.KindOf(err))
	assert.Empty(t, memorySink.Writes())
}

func Test_Emit_Sink_Failure(t *testing.T) {
	memorySink := inttest.NewMemorySink([]string{topic}, inttest.WithEmitHook(
		func(string, []sink.Record) error {
			return errors.New("broker down")
		},
	))
	emitter, err := NewEmitter(memorySink, topic, transform.None())
	require.NoError(t, err)

	_, err = emitter.Emit(context.Background(), testEvent())
	require.Error(t, err)
	assert.Equal(t, faults.EmissionError, faults.KindOf(err))
	assert.False(t, faults.IsFatal(err))
}

func Test_Emit_Stops_At_Failed_Batch(t *testing.T) {
	calls := 0
	memorySink := inttest.NewMemorySink([]string{topic}, inttest.WithEmitHook(
		func(string, []sink.Record) error {
			calls++
			if calls == 2 {
				return errors.New("broker down")
			}
			return nil
		},
	))
	emitter, err := NewEmitter(memorySink, topic, transform.Configured(fanOut(250)))
	require.NoError(t, err)

	emitted, err := emitter.Emit(context.Background(), testEvent())
	require.Error(t, err)
	assert.Equal(t, BatchSize, emitted)
	assert.Equal(t, 2, calls)
	assert.Len(t, memorySink.Writes(), 1)
}
