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

package sink

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/go-errors/errors"
	"github.com/noctarius/event-connectors/spi/config"
	"github.com/samber/lo"
)

var providers = struct {
	sync.RWMutex
	bySinkType map[config.SinkType]Provider
}{
	bySinkType: make(map[config.SinkType]Provider),
}

// RegisterSink registers a config.SinkType to a Provider implementation
// which creates the Sink when requested. The first registration of a sink
// type wins, later ones are ignored and reported as false.
func RegisterSink(
	sinkType config.SinkType, provider Provider,
) bool {

	if provider == nil {
		return false
	}
	providers.Lock()
	defer providers.Unlock()
	if _, present := providers.bySinkType[sinkType]; present {
		return false
	}
	providers.bySinkType[sinkType] = provider
	return true
}

// NewSink instantiates a new instance of the requested Sink. The provider
// runs outside the registry lock.
func NewSink(
	sinkType config.SinkType, c *config.Config,
) (Sink, error) {

	providers.RLock()
	provider, present := providers.bySinkType[sinkType]
	providers.RUnlock()

	if !present {
		names := lo.Map(RegisteredSinks(), func(name config.SinkType, _ int) string {
			return string(name)
		})
		return nil, errors.Errorf(
			"SinkType '%s' doesn't exist, registered types: %s", sinkType, strings.Join(names, ", "),
		)
	}

	s, err := provider(c)
	if err != nil {
		return nil, errors.WrapPrefix(err, fmt.Sprintf("failed to create %s sink", sinkType), 0)
	}
	return s, nil
}

// RegisteredSinks lists the names of all registered sink types in
// lexical order.
func RegisteredSinks() []config.SinkType {
	providers.RLock()
	names := lo.Keys(providers.bySinkType)
	providers.RUnlock()

	sort.Slice(names, func(i, j int) bool {
		return names[i] < names[j]
	})
	return names
}
