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

package sink

import (
	"context"

	"github.com/noctarius/event-connectors/spi/config"
)

type Provider = func(config *config.Config) (Sink, error)

// Record is a single entry of the output log. A nil Key is sent as an
// absent key.
type Record struct {
	Key   []byte
	Value []byte
}

// Sink is the output log the connectors write to.
type Sink interface {
	Start() error
	Stop() error
	// Exists reports whether the target topic or stream is present.
	Exists(ctx context.Context, topic string) (bool, error)
	Emit(ctx context.Context, topic string, key, value []byte) error
	// EmitBatch writes all records as one write, keeping their order.
	EmitBatch(ctx context.Context, topic string, records []Record) error
}

// TailReader is implemented by sinks able to read back the most recent
// record of a topic. ReadLast blocks until a record is found, the topic
// is known to be empty, or ctx is done.
type TailReader interface {
	ReadLast(ctx context.Context, topic string) (value []byte, found bool, err error)
}

type Handler = func(ctx context.Context, record Record) error

// Consumer is implemented by sinks able to stream records from a topic
// in order. Consume returns when ctx is done or the handler fails.
type Consumer interface {
	Consume(ctx context.Context, topic string, handler Handler) error
}
