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

package faults

import (
	stderrors "errors"
	"testing"

	"github.com/go-errors/errors"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestKind_Disposition(t *testing.T) {
	fatal := []Kind{ConnectionError, TopicNotFound, ResumeDecodeError, ReplicationStartError, ProtocolStreamError, Unknown}
	for _, kind := range fatal {
		assert.True(t, kind.Fatal(), kind.String())
	}

	recoverable := []Kind{ConversionError, EmissionError}
	for _, kind := range recoverable {
		assert.False(t, kind.Fatal(), kind.String())
	}
}

func TestKindOf_Wrapped(t *testing.T) {
	err := New(TopicNotFound, "topic %s not found", "orders")
	assert.Equal(t, TopicNotFound, KindOf(err))
	assert.True(t, IsFatal(err))
	assert.Contains(t, err.Error(), "orders")

	wrapped := errors.Wrap(err, 0)
	assert.Equal(t, TopicNotFound, KindOf(wrapped))
	assert.True(t, Is(wrapped, TopicNotFound))
}

func TestKindOf_Unclassified(t *testing.T) {
	err := stderrors.New("boom")
	assert.Equal(t, Unknown, KindOf(err))
	assert.True(t, IsFatal(err))
	assert.False(t, IsFatal(nil))
}

func TestWrap_Keeps_Cause(t *testing.T) {
	cause := stderrors.New("io failure")
	err := Wrap(EmissionError, cause, "sending event at %s", "0/10")
	assert.False(t, IsFatal(err))
	assert.True(t, stderrors.Is(err, cause))
	assert.Nil(t, Wrap(EmissionError, nil, "nothing"))
}

func TestReplicationStart_Context(t *testing.T) {
	cause := &pgconn.PgError{Code: pgerrcode.UndefinedObject, Message: `replication slot "slot_a" does not exist`}
	err := ReplicationStart(cause, "slot_a", "pub_a")

	assert.Equal(t, ReplicationStartError, KindOf(err))
	assert.True(t, IsFatal(err))
	assert.Contains(t, err.Error(), "slot: slot_a")
	assert.Contains(t, err.Error(), "publication: pub_a")
	assert.Contains(t, err.Error(), "does not exist")
}
