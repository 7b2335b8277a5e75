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
	"bytes"
	"path/filepath"
	"plugin"
	"testing"

	"github.com/go-errors/errors"
	"github.com/noctarius/event-connectors/spi/config"
	"github.com/noctarius/event-connectors/spi/transform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupOf(
	symbol plugin.Symbol,
) lookupFunc {

	return func(symbolName string) (plugin.Symbol, error) {
		if symbolName != SymbolName {
			return nil, errors.Errorf("symbol %s not found", symbolName)
		}
		return symbol, nil
	}
}

func reverse(
	record []byte,
) ([][]byte, error) {

	reversed := bytes.Clone(record)
	for i, j := 0, len(reversed)-1; i < j; i, j = i+1, j-1 {
		reversed[i], reversed[j] = reversed[j], reversed[i]
	}
	return [][]byte{record, reversed}, nil
}

func Test_Plugin_Function_Symbol(
	t *testing.T,
) {

	tf, err := resolveTransform("test.so", lookupOf(reverse))
	require.NoError(t, err)

	outputs, err := tf.Process([]byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("abc"), []byte("cba")}, outputs)
}

func Test_Plugin_Variable_Symbol(
	t *testing.T,
) {

	var variable transform.Transform = transform.Func(reverse)
	tf, err := resolveTransform("test.so", lookupOf(&variable))
	require.NoError(t, err)

	outputs, err := tf.Process([]byte("ab"))
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("ab"), []byte("ba")}, outputs)

	var empty transform.Transform
	_, err = resolveTransform("test.so", lookupOf(&empty))
	assert.Error(t, err)
}

func Test_Plugin_Unsupported_Symbol(
	t *testing.T,
) {

	_, err := resolveTransform("test.so", lookupOf(42))
	assert.ErrorContains(t, err, "unsupported type int")

	_, err = resolveTransform("test.so", func(string) (plugin.Symbol, error) {
		return nil, errors.New("symbol Transform not found")
	})
	assert.Error(t, err)
}

func Test_Plugin_Configuration(
	t *testing.T,
) {

	_, err := transform.NewSelector(&config.Config{
		Transform: config.TransformConfig{Type: config.PluginTransform},
	})
	assert.ErrorContains(t, err, config.PropertyTransformPluginPath)

	_, err = transform.NewSelector(&config.Config{
		Transform: config.TransformConfig{
			Type:   config.PluginTransform,
			Plugin: config.TransformPluginConfig{Path: filepath.Join(t.TempDir(), "missing.so")},
		},
	})
	assert.Error(t, err)
}
