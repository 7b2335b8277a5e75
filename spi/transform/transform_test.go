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
	"bytes"
	"testing"

	"github.com/go-errors/errors"
	"github.com/noctarius/event-connectors/spi/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Selector_None_Passes_Through(t *testing.T) {
	outputs, configured, err := None().Apply([]byte("record"))
	require.NoError(t, err)
	assert.False(t, configured)
	assert.Equal(t, [][]byte{[]byte("record")}, outputs)
	assert.False(t, None().IsConfigured())
}

func Test_Selector_Configured(t *testing.T) {
	duplicate := Func(func(record []byte) ([][]byte, error) {
		return [][]byte{record, bytes.ToUpper(record)}, nil
	})

	selector := Configured(duplicate)
	assert.True(t, selector.IsConfigured())

	outputs, configured, err := selector.Apply([]byte("a"))
	require.NoError(t, err)
	assert.True(t, configured)
	assert.Equal(t, [][]byte{[]byte("a"), []byte("A")}, outputs)
}

func Test_Selector_Configured_Drops(t *testing.T) {
	drop := Func(func([]byte) ([][]byte, error) {
		return nil, nil
	})

	outputs, configured, err := Configured(drop).Apply([]byte("a"))
	require.NoError(t, err)
	assert.True(t, configured)
	assert.Empty(t, outputs)
}

func Test_Selector_Configured_Error(t *testing.T) {
	failing := Func(func([]byte) ([][]byte, error) {
		return nil, errors.New("broken")
	})

	_, configured, err := Configured(failing).Apply([]byte("a"))
	assert.True(t, configured)
	assert.Error(t, err)
}

func Test_NewSelector(t *testing.T) {
	name := config.TransformType("selector-test")
	require.True(t, RegisterTransform(name, func(*config.Config) (Transform, error) {
		return Func(func(record []byte) ([][]byte, error) {
			return [][]byte{record}, nil
		}), nil
	}))
	assert.False(t, RegisterTransform(name, nil))

	selector, err := NewSelector(&config.Config{Transform: config.TransformConfig{Type: name}})
	require.NoError(t, err)
	assert.True(t, selector.IsConfigured())

	selector, err = NewSelector(&config.Config{})
	require.NoError(t, err)
	assert.False(t, selector.IsConfigured())

	selector, err = NewSelector(&config.Config{Transform: config.TransformConfig{Type: config.NoTransform}})
	require.NoError(t, err)
	assert.False(t, selector.IsConfigured())

	_, err = NewSelector(&config.Config{Transform: config.TransformConfig{Type: "missing"}})
	assert.Error(t, err)
}
