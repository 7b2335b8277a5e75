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
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-errors/errors"
	"github.com/noctarius/event-connectors/internal/faults"
	"github.com/noctarius/event-connectors/spi/config"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHost(
	t *testing.T, maxAttempts int,
) *Host {

	host, err := NewHost("test", &config.Config{
		Restart: config.RestartConfig{MaxAttempts: lo.ToPtr(maxAttempts)},
	})
	require.NoError(t, err)
	host.newBackOff = func() backoff.BackOff {
		return backoff.NewConstantBackOff(time.Millisecond)
	}
	return host
}

func Test_Host_Clean_Run(
	t *testing.T,
) {

	runs := 0
	err := newTestHost(t, 3).Run(context.Background(), func(context.Context) error {
		runs++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, runs)
}

func Test_Host_Restarts_Connection_Errors(
	t *testing.T,
) {

	runs := 0
	err := newTestHost(t, 3).Run(context.Background(), func(context.Context) error {
		runs++
		if runs < 3 {
			return faults.New(faults.ProtocolStreamError, "connection reset")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, runs)
}

func Test_Host_Gives_Up(
	t *testing.T,
) {

	runs := 0
	err := newTestHost(t, 2).Run(context.Background(), func(context.Context) error {
		runs++
		return faults.New(faults.ConnectionError, "refused")
	})
	assert.True(t, faults.Is(err, faults.ConnectionError))
	assert.Equal(t, 3, runs)
}

func Test_Host_Zero_Attempts_Never_Restarts(
	t *testing.T,
) {

	runs := 0
	err := newTestHost(t, 0).Run(context.Background(), func(context.Context) error {
		runs++
		return errors.New("broken")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, runs)
}

func Test_Host_Permanent_Failures(
	t *testing.T,
) {

	for _, kind := range []faults.Kind{
		faults.TopicNotFound, faults.ResumeDecodeError, faults.ReplicationStartError,
	} {
		runs := 0
		err := newTestHost(t, 5).Run(context.Background(), func(context.Context) error {
			runs++
			return faults.New(kind, "permanent")
		})
		assert.True(t, faults.Is(err, kind), kind.String())
		assert.Equal(t, 1, runs, kind.String())
	}
}

func Test_Host_Cancelled_Context_Ends_Cleanly(
	t *testing.T,
) {

	ctx, cancel := context.WithCancel(context.Background())
	runs := 0
	err := newTestHost(t, -1).Run(ctx, func(context.Context) error {
		runs++
		cancel()
		return faults.New(faults.ProtocolStreamError, "stream closed")
	})
	require.NoError(t, err)
	assert.Equal(t, 1, runs)
}
