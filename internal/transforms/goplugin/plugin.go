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

//go:build linux || freebsd || darwin

package goplugin

import (
	"plugin"

	"github.com/go-errors/errors"
	"github.com/noctarius/event-connectors/spi/config"
	"github.com/noctarius/event-connectors/spi/transform"
)

// SymbolName is the symbol a transform plugin has to export. It is either
// a function func([]byte) ([][]byte, error) or a variable implementing
// transform.Transform.
const SymbolName = "Transform"

type lookupFunc func(symbolName string) (plugin.Symbol, error)

func init() {
	transform.RegisterTransform(config.PluginTransform, newPluginTransform)
}

func newPluginTransform(
	c *config.Config,
) (transform.Transform, error) {

	path := config.GetOrDefault(c, config.PropertyTransformPluginPath, "")
	if path == "" {
		return nil, errors.Errorf("plugin transform requires %s", config.PropertyTransformPluginPath)
	}

	p, err := plugin.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, 0)
	}
	return resolveTransform(path, p.Lookup)
}

func resolveTransform(
	path string, lookup lookupFunc,
) (transform.Transform, error) {

	symbol, err := lookup(SymbolName)
	if err != nil {
		return nil, errors.Wrap(err, 0)
	}

	switch s := symbol.(type) {
	case func([]byte) ([][]byte, error):
		return transform.Func(s), nil
	case *transform.Transform:
		if *s == nil {
			return nil, errors.Errorf("symbol %s of plugin %s is nil", SymbolName, path)
		}
		return *s, nil
	case transform.Transform:
		return s, nil
	}
	return nil, errors.Errorf("symbol %s of plugin %s has unsupported type %T", SymbolName, path, symbol)
}
