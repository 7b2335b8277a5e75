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
	"time"
)

// ShutdownAwaiter coordinates a connector shutdown: SignalShutdown
// cancels the connector context, and the connector reports through
// SignalDone once it has released its connections.
type ShutdownAwaiter struct {
	start *Waiter
	done  *Waiter
}

// NewShutdownAwaiter creates an awaiter granting the connector the given
// grace period between shutdown signal and done signal. A grace period
// of zero waits forever.
func NewShutdownAwaiter(
	grace time.Duration,
) *ShutdownAwaiter {

	return &ShutdownAwaiter{
		start: NewWaiter(),
		done:  NewWaiterWithTimeout(grace),
	}
}

// Context derives a context which is cancelled on SignalShutdown.
func (sa *ShutdownAwaiter) Context(
	parent context.Context,
) (context.Context, context.CancelFunc) {

	ctx, cancel := context.WithCancel(parent)
	go func() {
		select {
		case <-sa.start.Done():
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

func (sa *ShutdownAwaiter) SignalShutdown() {
	sa.start.Signal()
}

func (sa *ShutdownAwaiter) SignalDone() {
	sa.done.Signal()
}

// AwaitDone blocks until the connector signalled done, or fails with
// ErrWaiterTimeout after the grace period.
func (sa *ShutdownAwaiter) AwaitDone() error {
	return sa.done.Await()
}
