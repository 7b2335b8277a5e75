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
	"strings"

	"github.com/noctarius/event-connectors/spi/pgtypes"
)

// ReplicationCommand describes the START_REPLICATION command of a
// session. String renders it exactly as sent to the server.
type ReplicationCommand struct {
	Slot        string
	Publication string
	StartLSN    pgtypes.LSN
}

// QuotedSlot returns the slot name as a quoted identifier.
func (c ReplicationCommand) QuotedSlot() string {
	return `"` + strings.ReplaceAll(c.Slot, `"`, `""`) + `"`
}

// PluginArguments returns the pgoutput options.
func (c ReplicationCommand) PluginArguments() []string {
	return []string{
		`"proto_version" '1'`,
		fmt.Sprintf(`"publication_names" '%s'`, strings.ReplaceAll(c.Publication, `'`, `''`)),
	}
}

func (c ReplicationCommand) String() string {
	return fmt.Sprintf("START_REPLICATION SLOT %s LOGICAL %s (%s)",
		c.QuotedSlot(), c.StartLSN, strings.Join(c.PluginArguments(), ", "),
	)
}
