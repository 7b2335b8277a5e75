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

package keepalive

import (
	"context"
	"time"

	"github.com/jackc/pgio"
	"github.com/noctarius/event-connectors/internal/faults"
	"github.com/noctarius/event-connectors/internal/logging"
	"github.com/noctarius/event-connectors/spi/pgtypes"
)

// PostgresEpochUnixSeconds is 2000-01-01T00:00:00Z in seconds since the
// Unix epoch, the origin of all protocol timestamps.
const PostgresEpochUnixSeconds int64 = 946684800

const standbyStatusUpdateByteID = 'r'

// StatusSender writes a raw CopyData payload to the replication stream.
type StatusSender interface {
	SendStatusUpdate(ctx context.Context, payload []byte) error
}

// ClientTime converts a wall clock time into microseconds since the
// Postgres epoch.
func ClientTime(
	now time.Time,
) int64 {

	return (now.Unix()-PostgresEpochUnixSeconds)*1_000_000 + int64(now.Nanosecond()/1000)
}

// EncodeStatusUpdate builds a standby status update acknowledging the
// watermark as written, flushed and applied position, without asking the
// server for a reply.
func EncodeStatusUpdate(
	watermark pgtypes.LSN, now time.Time,
) []byte {

	payload := make([]byte, 0, 34)
	payload = append(payload, standbyStatusUpdateByteID)
	payload = pgio.AppendUint64(payload, watermark.Uint64())
	payload = pgio.AppendUint64(payload, watermark.Uint64())
	payload = pgio.AppendUint64(payload, watermark.Uint64())
	payload = pgio.AppendInt64(payload, ClientTime(now))
	return append(payload, 0)
}

type Responder struct {
	logger *logging.Logger
	clock  func() time.Time
}

func NewResponder(
	clock func() time.Time,
) (*Responder, error) {

	logger, err := logging.NewLogger("KeepaliveResponder")
	if err != nil {
		return nil, err
	}
	if clock == nil {
		clock = time.Now
	}
	return &Responder{
		logger: logger,
		clock:  clock,
	}, nil
}

// Respond acknowledges the watermark, the last committed LSN. Failing to
// do so breaks the stream and is returned as ProtocolStreamError.
func (r *Responder) Respond(
	ctx context.Context, sender StatusSender, watermark pgtypes.LSN,
) error {

	r.logger.Debugf("Sending standby status update for %s", watermark)
	if err := sender.SendStatusUpdate(ctx, EncodeStatusUpdate(watermark, r.clock())); err != nil {
		return faults.Wrap(faults.ProtocolStreamError, err, "failed to send standby status update")
	}
	return nil
}
