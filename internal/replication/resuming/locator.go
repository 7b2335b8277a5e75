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

package resuming

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/noctarius/event-connectors/internal/faults"
	"github.com/noctarius/event-connectors/internal/logging"
	"github.com/noctarius/event-connectors/spi/pgtypes"
	"github.com/noctarius/event-connectors/spi/replicationevent"
	"github.com/noctarius/event-connectors/spi/sink"
)

// DefaultTimeout bounds the tail read when no timeout is configured.
const DefaultTimeout = time.Second

// ResumePoint is the outcome of a resume discovery. Found is false when
// the output log held no readable record within the timeout.
type ResumePoint struct {
	LSN   pgtypes.LSN
	Found bool
}

func (r ResumePoint) String() string {
	if !r.Found {
		return "<none>"
	}
	return r.LSN.String()
}

type Locator struct {
	logger *logging.Logger
}

func NewLocator() (*Locator, error) {
	logger, err := logging.NewLogger("ResumeLocator")
	if err != nil {
		return nil, err
	}
	return &Locator{logger: logger}, nil
}

// Locate reads the most recent record of the topic within timeout and
// returns the LSN it carries. An empty log, a slow log and a sink unable
// to read back records all yield no resume point. A record that is not a
// valid event document is a fatal ResumeDecodeError.
func (l *Locator) Locate(
	ctx context.Context, s sink.Sink, topic string, timeout time.Duration,
) (ResumePoint, error) {

	tailReader, ok := s.(sink.TailReader)
	if !ok {
		l.logger.Warnf("Sink cannot read back records, no prior LSN can be discovered for topic %s", topic)
		return ResumePoint{}, nil
	}

	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	readCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	value, found, err := tailReader.ReadLast(readCtx, topic)
	if err != nil {
		if stderrors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			l.logger.Infof("No prior LSN discovered within %s, starting at the slot's position", timeout)
			return ResumePoint{}, nil
		}
		return ResumePoint{}, faults.Wrap(faults.ConnectionError, err, "failed to read tail of topic %s", topic)
	}

	if !found {
		l.logger.Infof("No prior LSN discovered, starting at the slot's position")
		return ResumePoint{}, nil
	}

	event, err := replicationevent.Decode(value)
	if err != nil {
		return ResumePoint{}, faults.Wrap(faults.ResumeDecodeError, err,
			"most recent record of topic %s is not a replication event", topic,
		)
	}

	l.logger.Infof("Discovered LSN to resume from: %s", event.LSN)
	return ResumePoint{LSN: event.LSN, Found: true}, nil
}
