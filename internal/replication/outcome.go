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

package replication

import (
	"fmt"

	"github.com/noctarius/event-connectors/spi/pgtypes"
)

// Outcome is the result of handling a single WAL message.
type Outcome struct {
	LSN     pgtypes.LSN
	Applied bool
	// Records is the number of records written to the output log.
	Records int
	// Err is set for skipped messages.
	Err error
}

func applied(
	lsn pgtypes.LSN, records int,
) Outcome {

	return Outcome{LSN: lsn, Applied: true, Records: records}
}

func skipped(
	lsn pgtypes.LSN, err error,
) Outcome {

	return Outcome{LSN: lsn, Err: err}
}

func (o Outcome) String() string {
	if o.Applied {
		return fmt.Sprintf("applied(%s, records: %d)", o.LSN, o.Records)
	}
	return fmt.Sprintf("skipped(%s, %v)", o.LSN, o.Err)
}
