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
	"github.com/go-errors/errors"
	"github.com/jackc/pglogrepl"
)

// LSN is a position in the write-ahead log. Ordering is plain unsigned
// integer ordering and the zero value means "start of stream".
type LSN pglogrepl.LSN

// String renders the LSN in the server's textual form, e.g. 16/B374D848.
func (lsn LSN) String() string {
	return pglogrepl.LSN(lsn).String()
}

func (lsn LSN) Uint64() uint64 {
	return uint64(lsn)
}

// Max returns the larger of both positions.
func (lsn LSN) Max(
	other LSN,
) LSN {

	if other > lsn {
		return other
	}
	return lsn
}

func ParseLSN(
	value string,
) (LSN, error) {

	lsn, err := pglogrepl.ParseLSN(value)
	if err != nil {
		return 0, errors.Wrap(err, 0)
	}
	return LSN(lsn), nil
}
