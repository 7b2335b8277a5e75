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

package hosting

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/noctarius/event-connectors/internal/faults"
	"github.com/noctarius/event-connectors/internal/logging"
	"github.com/noctarius/event-connectors/spi/config"
)

const defaultMaxAttempts = 5

// Attempt runs a connector once. Every attempt starts from scratch, a
// source session for example rediscovers its resume point.
type Attempt func(ctx context.Context) error

// Host runs a connector and restarts it after stream-level failures,
// backing off exponentially between attempts.
type Host struct {
	name        string
	logger      *logging.Logger
	maxAttempts int
	newBackOff  func() backoff.BackOff
}

func NewHost(
	name string, c *config.Config,
) (*Host, error) {

	logger, err := logging.NewLogger("Host")
	if err != nil {
		return nil, err
	}

	maxAttempts := config.GetOrDefault(c, config.PropertyRestartMaxAttempts, defaultMaxAttempts)
	return &Host{
		name:        name,
		logger:      logger,
		maxAttempts: maxAttempts,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = time.Second
			b.MaxInterval = time.Minute
			b.MaxElapsedTime = 0
			return b
		},
	}, nil
}

// Run executes the attempt until it ends cleanly, the context is
// cancelled, a non-restartable failure happens or the restarts are used
// up. A negative restart.maxattempts restarts forever, zero never.
func (h *Host) Run(
	ctx context.Context, attempt Attempt,
) error {

	policy := h.newBackOff()
	if h.maxAttempts >= 0 {
		policy = backoff.WithMaxRetries(policy, uint64(h.maxAttempts))
	}

	run := 0
	operation := func() error {
		run++
		if run > 1 {
			h.logger.Infof("Restarting %s (attempt %d)", h.name, run)
		}

		err := attempt(ctx)
		if err == nil || ctx.Err() != nil {
			return nil
		}
		if !Restartable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, next time.Duration) {
		h.logger.Warnf("%s failed, restarting in %s: %v", h.name, next, err)
	}

	return backoff.RetryNotify(operation, backoff.WithContext(policy, ctx), notify)
}

// Restartable reports whether a failure may go away by reconnecting.
// Missing topics, undecodable resume points and rejected replication
// commands need operator action.
func Restartable(
	err error,
) bool {

	switch faults.KindOf(err) {
	case faults.TopicNotFound, faults.ResumeDecodeError, faults.ReplicationStartError:
		return false
	}
	return true
}
