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

package replicationevent

import (
	"time"

	"github.com/go-errors/errors"
	"github.com/goccy/go-json"
	"github.com/noctarius/event-connectors/spi/encoding"
	"github.com/noctarius/event-connectors/spi/pgtypes"
)

// All nested parts of a document share one non-escaping encoder, so
// text values are written as they are.
var documentEncoder = encoding.NewJsonEncoder(false)

func marshal(
	value any,
) ([]byte, error) {

	return documentEncoder.Marshal(value)
}

// Event is a single converted write-ahead log record. Its JSON encoding
// is the document written to the output log:
//
//	{"lsn": 1234, "timestamp": "...", "message": {"Insert": {...}}}
type Event struct {
	LSN       pgtypes.LSN
	Timestamp time.Time
	Message   Message
}

type encodedEvent struct {
	LSN       *pgtypes.LSN               `json:"lsn"`
	Timestamp time.Time                  `json:"timestamp"`
	Message   map[string]json.RawMessage `json:"message"`
}

func (e Event) MarshalJSON() ([]byte, error) {
	if e.Message == nil {
		return nil, errors.Errorf("event at %s has no message", e.LSN)
	}

	message, err := marshal(e.Message)
	if err != nil {
		return nil, errors.Wrap(err, 0)
	}

	lsn := e.LSN
	return marshal(encodedEvent{
		LSN:       &lsn,
		Timestamp: e.Timestamp,
		Message: map[string]json.RawMessage{
			e.Message.Tag(): message,
		},
	})
}

func (e *Event) UnmarshalJSON(
	data []byte,
) error {

	encoded := encodedEvent{}
	if err := json.Unmarshal(data, &encoded); err != nil {
		return errors.Wrap(err, 0)
	}

	if encoded.LSN == nil {
		return errors.Errorf("event document has no lsn")
	}
	if len(encoded.Message) != 1 {
		return errors.Errorf("event document must hold exactly one message variant, found %d", len(encoded.Message))
	}

	for tag, raw := range encoded.Message {
		factory, ok := messageFactories[tag]
		if !ok {
			return errors.Errorf("unknown message variant %s", tag)
		}
		message := factory()
		if err := json.Unmarshal(raw, message); err != nil {
			return errors.Wrap(err, 0)
		}
		e.Message = message
	}

	e.LSN = *encoded.LSN
	e.Timestamp = encoded.Timestamp
	return nil
}

// Decode parses an event document as written by Encode.
func Decode(
	data []byte,
) (*Event, error) {

	event := &Event{}
	if err := json.Unmarshal(data, event); err != nil {
		return nil, err
	}
	return event, nil
}

func Encode(
	event *Event,
) ([]byte, error) {

	return marshal(event)
}
