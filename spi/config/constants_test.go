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

package config

import (
	"go/ast"
	"go/parser"
	"go/token"
	"reflect"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// propertyConstants reads every string constant declared in constants.go.
func propertyConstants(
	t *testing.T,
) map[string]string {

	file, err := parser.ParseFile(token.NewFileSet(), "./constants.go", nil, 0)
	require.NoError(t, err)

	properties := make(map[string]string)
	ast.Inspect(file, func(node ast.Node) bool {
		valueSpec, ok := node.(*ast.ValueSpec)
		if !ok || len(valueSpec.Values) != 1 {
			return true
		}
		literal, ok := valueSpec.Values[0].(*ast.BasicLit)
		if !ok || literal.Kind != token.STRING {
			return true
		}
		value, err := strconv.Unquote(literal.Value)
		require.NoError(t, err)
		properties[valueSpec.Names[0].Name] = value
		return true
	})
	return properties
}

func Test_Constants_Resolve_To_Config_Fields(
	t *testing.T,
) {

	properties := propertyConstants(t)
	require.NotEmpty(t, properties)

	for name, property := range properties {
		element := reflect.ValueOf(Config{})
		for _, segment := range strings.Split(property, ".") {
			next, ok := findProperty(element, segment)
			if !assert.Truef(t, ok, "%s (%s) has no field for segment %s", name, property, segment) {
				break
			}
			element = next
		}
	}
}

func Test_Constants_Are_Unique(
	t *testing.T,
) {

	seen := make(map[string]string)
	for name, property := range propertyConstants(t) {
		if other, present := seen[property]; present {
			t.Errorf("%s and %s both declare %s", name, other, property)
		}
		seen[property] = name
	}
}

func Test_Constants_Env_Var_Names(
	t *testing.T,
) {

	assert.Equal(t, "SINK_KAFKA_BROKERS", envVarName(PropertyKafkaBrokers))
	assert.Equal(t, "RESTART_MAXATTEMPTS", envVarName(PropertyRestartMaxAttempts))
	assert.Equal(t, "SINK_HTTP_AUTHENTICATION_BASIC_USERNAME", envVarName(PropertyHttpBasicAuthenticationUsername))
	assert.Equal(t, "POSTGRESQL_REPLICATIONSLOT_NAME", envVarName(PropertyPostgresqlReplicationSlotName))
}
