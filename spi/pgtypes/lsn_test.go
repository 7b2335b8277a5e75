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

package pgtypes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLSN_String(t *testing.T) {
	assert.Equal(t, "0/0", LSN(0).String())
	assert.Equal(t, "16/B374D848", LSN(0x16B374D848).String())
	assert.Equal(t, "0/1A2B3C", LSN(0x1A2B3C).String())
}

func TestLSN_Parse_Roundtrip(t *testing.T) {
	lsn, err := ParseLSN("16/B374D848")
	require.NoError(t, err)
	assert.Equal(t, uint64(0x16B374D848), lsn.Uint64())
	assert.Equal(t, "16/B374D848", lsn.String())
}

func TestLSN_Parse_Invalid(t *testing.T) {
	_, err := ParseLSN("not-an-lsn")
	assert.Error(t, err)
}

func TestLSN_Max(t *testing.T) {
	assert.Equal(t, LSN(20), LSN(10).Max(20))
	assert.Equal(t, LSN(20), LSN(20).Max(10))
	assert.Equal(t, LSN(7), LSN(7).Max(7))
}
