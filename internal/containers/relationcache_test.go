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

package containers

import (
	"testing"

	"github.com/noctarius/event-connectors/spi/replicationevent"
	"github.com/stretchr/testify/assert"
)

func Test_RelationCache_Set_Get(
	t *testing.T,
) {

	msg1 := &replicationevent.Relation{RelationID: 10256}
	msg2 := &replicationevent.Relation{RelationID: 12000}
	msg3 := &replicationevent.Relation{RelationID: 7}

	cache := NewRelationCache[*replicationevent.Relation]()

	cache.Set(msg1.RelationID, msg1)
	msg1Back, present := cache.Get(msg1.RelationID)
	assert.True(t, present)
	assert.Equal(t, msg1, msg1Back)

	cache.Set(msg2.RelationID, msg2)
	cache.Set(msg3.RelationID, msg3)
	for _, msg := range []*replicationevent.Relation{msg1, msg2, msg3} {
		back, present := cache.Get(msg.RelationID)
		assert.True(t, present)
		assert.Same(t, msg, back)
	}
	assert.Equal(t, 3, cache.Len())
}

func Test_RelationCache_Set_Overwrites(
	t *testing.T,
) {

	cache := NewRelationCache[*replicationevent.Relation]()

	before := &replicationevent.Relation{RelationID: 7, Columns: []replicationevent.Column{{Name: "id"}}}
	after := &replicationevent.Relation{RelationID: 7, Columns: []replicationevent.Column{{Name: "id"}, {Name: "name"}}}

	cache.Set(7, before)
	cache.Set(7, after)

	back, present := cache.Get(7)
	assert.True(t, present)
	assert.Same(t, after, back)
	assert.Equal(t, 1, cache.Len())
}

func Test_RelationCache_Miss_Does_Not_Create(
	t *testing.T,
) {

	cache := NewRelationCache[*replicationevent.Relation]()
	cache.Set(100, &replicationevent.Relation{RelationID: 100})

	// below, above and far outside the known range
	for _, relationId := range []uint32{1, 99, 101, 4_000_000_000} {
		back, present := cache.Get(relationId)
		assert.False(t, present)
		assert.Nil(t, back)
	}
	assert.Equal(t, 1, cache.Len())
}
