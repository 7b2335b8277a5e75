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

package transform

import (
	"sync"

	"github.com/go-errors/errors"
	"github.com/noctarius/event-connectors/spi/config"
)

var transformRegistry = &registry{
	providers: make(map[config.TransformType]Provider),
}

type registry struct {
	mutex     sync.Mutex
	providers map[config.TransformType]Provider
}

func RegisterTransform(
	name config.TransformType, provider Provider,
) bool {

	transformRegistry.mutex.Lock()
	defer transformRegistry.mutex.Unlock()
	if _, present := transformRegistry.providers[name]; !present {
		transformRegistry.providers[name] = provider
		return true
	}
	return false
}

// NewSelector resolves the transform configured under transform.type.
// An empty type or "none" selects no transform.
func NewSelector(
	c *config.Config,
) (Selector, error) {

	name := config.TransformType(
		config.GetOrDefault(c, config.PropertyTransform, string(config.NoTransform)),
	)
	if name == "" || name == config.NoTransform {
		return None(), nil
	}

	transformRegistry.mutex.Lock()
	provider, present := transformRegistry.providers[name]
	transformRegistry.mutex.Unlock()
	if !present {
		return None(), errors.Errorf("TransformType '%s' doesn't exist", name)
	}

	t, err := provider(c)
	if err != nil {
		return None(), errors.Wrap(err, 0)
	}
	return Configured(t), nil
}
