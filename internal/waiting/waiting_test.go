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

package waiting

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Waiter_Signal(
	t *testing.T,
) {

	waiter := NewWaiter()
	waiter.Signal()
	waiter.Signal()
	require.NoError(t, waiter.Await())
}

func Test_Waiter_Timeout(
	t *testing.T,
) {

	waiter := NewWaiterWithTimeout(10 * time.Millisecond)
	assert.ErrorIs(t, waiter.Await(), ErrWaiterTimeout)

	waiter.Signal()
	require.NoError(t, waiter.Await())
}

func Test_ShutdownAwaiter_Cancels_Context(
	t *testing.T,
) {

	awaiter := NewShutdownAwaiter(time.Second)
	ctx, cancel := awaiter.Context(context.Background())
	defer cancel()

	go func() {
		<-ctx.Done()
		awaiter.SignalDone()
	}()

	awaiter.SignalShutdown()
	require.NoError(t, awaiter.AwaitDone())
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}

func Test_ShutdownAwaiter_Grace_Period(
	t *testing.T,
) {

	awaiter := NewShutdownAwaiter(10 * time.Millisecond)
	_, cancel := awaiter.Context(context.Background())
	defer cancel()

	awaiter.SignalShutdown()
	assert.ErrorIs(t, awaiter.AwaitDone(), ErrWaiterTimeout)
}
