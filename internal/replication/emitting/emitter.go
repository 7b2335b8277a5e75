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

	"github.com/noctarius/event-connectors/internal/faults"
	"github.com/noctarius/event-connectors/internal/logging"
	"github.com/noctarius/event-connectors/spi/encoding"
	"github.com/noctarius/event-connectors/spi/replicationevent"
	"github.com/noctarius/event-connectors/spi/sink"
	"github.com/noctarius/event-connectors/spi/transform"
	"github.com/samber/lo"
)

// BatchSize is the maximum number of transform outputs sent per write.
const BatchSize = 100

// Emitter encodes events and writes them to the output log, optionally
// through a transform.
type Emitter struct {
	sink     sink.Sink
	topic    string
	selector transform.Selector
	encoder  *encoding.JsonEncoder
	logger   *logging.Logger
}

func NewEmitter(
	s sink.Sink, topic string, selector transform.Selector,
) (*Emitter, error) {

	logger, err := logging.NewLogger("Emitter")
	if err != nil {
		return nil, err
	}

	return &Emitter{
		sink:     s,
		topic:    topic,
		selector: selector,
		encoder:  encoding.NewJsonEncoder(false),
		logger:   logger,
	}, nil
}

// Emit writes a single event. Without a transform the encoded event is
// written as one record without key. With a transform its outputs are
// written in order, in batches of BatchSize records. Failures are
// returned as EmissionError.
func (e *Emitter) Emit(
	ctx context.Context, event *replicationevent.Event,
) (int, error) {

	document, err := e.encoder.Marshal(event)
	if err != nil {
		return 0, faults.Wrap(faults.EmissionError, err, "failed to encode event at %s", event.LSN)
	}

	outputs, configured, err := e.selector.Apply(document)
	if err != nil {
		return 0, faults.Wrap(faults.EmissionError, err, "transform failed for event at %s", event.LSN)
	}

	if !configured {
		e.logger.Verbosef("Producing event: %s", document)
		if err := e.sink.Emit(ctx, e.topic, nil, document); err != nil {
			return 0, faults.Wrap(faults.EmissionError, err, "failed to send event at %s", event.LSN)
		}
		return 1, nil
	}

	emitted := 0
	for _, batch := range lo.Chunk(outputs, BatchSize) {
		records := lo.Map(batch, func(output []byte, _ int) sink.Record {
			return sink.Record{Value: output}
		})
		e.logger.Debugf("Producing processed batch of %d records", len(records))
		if err := e.sink.EmitBatch(ctx, e.topic, records); err != nil {
			return emitted, faults.Wrap(faults.EmissionError, err,
				"failed to send batch for event at %s after %d records", event.LSN, emitted,
			)
		}
		emitted += len(records)
	}
	return emitted, nil
}
