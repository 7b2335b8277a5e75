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

package testing

import (
	"context"
	"sync"

	"github.com/go-errors/errors"
	"github.com/noctarius/event-connectors/spi/sink"
)

// Write is one observed call to Emit or EmitBatch.
type Write struct {
	Topic   string
	Records []sink.Record
	Batch   bool
}

// MemorySink is an in-memory output log implementing sink.Sink,
// sink.TailReader and sink.Consumer.
type MemorySink struct {
	mutex  sync.Mutex
	topics map[string][]sink.Record
	writes []Write

	started bool
	stopped bool

	emitHook     func(topic string, records []sink.Record) error
	readLastHook func(ctx context.Context, topic string) ([]byte, bool, error)
	existsHook   func(topic string) (bool, error)
}

type MemorySinkOption = func(memorySink *MemorySink)

// WithEmitHook runs before every write. A non-nil error fails the write.
func WithEmitHook(
	fn func(topic string, records []sink.Record) error,
) MemorySinkOption {

	return func(memorySink *MemorySink) {
		memorySink.emitHook = fn
	}
}

func WithReadLastHook(
	fn func(ctx context.Context, topic string) ([]byte, bool, error),
) MemorySinkOption {

	return func(memorySink *MemorySink) {
		memorySink.readLastHook = fn
	}
}

func WithExistsHook(
	fn func(topic string) (bool, error),
) MemorySinkOption {

	return func(memorySink *MemorySink) {
		memorySink.existsHook = fn
	}
}

// NewMemorySink creates a sink with the given topics, all empty.
func NewMemorySink(
	topics []string, options ...MemorySinkOption,
) *MemorySink {

	memorySink := &MemorySink{
		topics: make(map[string][]sink.Record),
		writes: make([]Write, 0),
	}
	for _, topic := range topics {
		memorySink.topics[topic] = make([]sink.Record, 0)
	}
	for _, option := range options {
		option(memorySink)
	}
	return memorySink
}

// Append adds records to a topic without recording a write.
func (m *MemorySink) Append(
	topic string, values ...[]byte,
) {

	m.mutex.Lock()
	defer m.mutex.Unlock()
	for _, value := range values {
		m.topics[topic] = append(m.topics[topic], sink.Record{Value: value})
	}
}

func (m *MemorySink) Start() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.started = true
	return nil
}

func (m *MemorySink) Stop() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.stopped = true
	return nil
}

func (m *MemorySink) Started() bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.started
}

func (m *MemorySink) Stopped() bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.stopped
}

func (m *MemorySink) Exists(
	_ context.Context, topic string,
) (bool, error) {

	if m.existsHook != nil {
		return m.existsHook(topic)
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()
	_, present := m.topics[topic]
	return present, nil
}

func (m *MemorySink) Emit(
	_ context.Context, topic string, key, value []byte,
) error {

	return m.write(topic, []sink.Record{{Key: key, Value: value}}, false)
}

func (m *MemorySink) EmitBatch(
	_ context.Context, topic string, records []sink.Record,
) error {

	return m.write(topic, records, true)
}

func (m *MemorySink) write(
	topic string, records []sink.Record, batch bool,
) error {

	if m.emitHook != nil {
		if err := m.emitHook(topic, records); err != nil {
			return err
		}
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()
	if _, present := m.topics[topic]; !present {
		return errors.Errorf("topic %s does not exist", topic)
	}
	copied := make([]sink.Record, len(records))
	copy(copied, records)
	m.topics[topic] = append(m.topics[topic], copied...)
	m.writes = append(m.writes, Write{Topic: topic, Records: copied, Batch: batch})
	return nil
}

func (m *MemorySink) ReadLast(
	ctx context.Context, topic string,
) ([]byte, bool, error) {

	if m.readLastHook != nil {
		return m.readLastHook(ctx, topic)
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()
	records, present := m.topics[topic]
	if !present {
		return nil, false, errors.Errorf("topic %s does not exist", topic)
	}
	if len(records) == 0 {
		return nil, false, nil
	}
	return records[len(records)-1].Value, true, nil
}

// Consume hands over all records present at call time, then returns.
func (m *MemorySink) Consume(
	ctx context.Context, topic string, handler sink.Handler,
) error {

	m.mutex.Lock()
	records := make([]sink.Record, len(m.topics[topic]))
	copy(records, m.topics[topic])
	m.mutex.Unlock()

	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := handler(ctx, record); err != nil {
			return err
		}
	}
	return nil
}

func (m *MemorySink) Records(
	topic string,
) []sink.Record {

	m.mutex.Lock()
	defer m.mutex.Unlock()
	records := make([]sink.Record, len(m.topics[topic]))
	copy(records, m.topics[topic])
	return records
}

func (m *MemorySink) Writes() []Write {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	writes := make([]Write, len(m.writes))
	copy(writes, m.writes)
	return writes
}

// WriteOnlySink wraps a MemorySink hiding its tail reading and consuming
// capabilities.
type WriteOnlySink struct {
	delegate *MemorySink
}

func NewWriteOnlySink(
	delegate *MemorySink,
) *WriteOnlySink {

	return &WriteOnlySink{delegate: delegate}
}

func (w *WriteOnlySink) Start() error {
	return w.delegate.Start()
}

func (w *WriteOnlySink) Stop() error {
	return w.delegate.Stop()
}

func (w *WriteOnlySink) Exists(
	ctx context.Context, topic string,
) (bool, error) {

	return w.delegate.Exists(ctx, topic)
}

func (w *WriteOnlySink) Emit(
	ctx context.Context, topic string, key, value []byte,
) error {

	return w.delegate.Emit(ctx, topic, key, value)
}

func (w *WriteOnlySink) EmitBatch(
	ctx context.Context, topic string, records []sink.Record,
) error {

	return w.delegate.EmitBatch(ctx, topic, records)
}
