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

package replicationevent

import (
	"time"

	"github.com/noctarius/event-connectors/spi/pgtypes"
)

// Message is one variant of the logical replication message set.
type Message interface {
	// Tag is the variant name used as the key of the encoded message.
	Tag() string
}

const (
	TagBegin    = "Begin"
	TagCommit   = "Commit"
	TagOrigin   = "Origin"
	TagRelation = "Relation"
	TagType     = "Type"
	TagInsert   = "Insert"
	TagUpdate   = "Update"
	TagDelete   = "Delete"
	TagTruncate = "Truncate"
)

type Begin struct {
	FinalLSN   pgtypes.LSN `json:"final_lsn"`
	CommitTime time.Time   `json:"commit_time"`
	Xid        uint32      `json:"xid"`
}

func (*Begin) Tag() string { return TagBegin }

type Commit struct {
	Flags      uint8       `json:"flags"`
	CommitLSN  pgtypes.LSN `json:"commit_lsn"`
	EndLSN     pgtypes.LSN `json:"end_lsn"`
	CommitTime time.Time   `json:"commit_time"`
}

func (*Commit) Tag() string { return TagCommit }

type Origin struct {
	CommitLSN pgtypes.LSN `json:"commit_lsn"`
	Name      string      `json:"name"`
}

func (*Origin) Tag() string { return TagOrigin }

// ColumnFlagKey marks a column as part of the replica identity.
const ColumnFlagKey uint8 = 1

type Column struct {
	Name         string `json:"name"`
	TypeID       uint32 `json:"type_id"`
	TypeModifier int32  `json:"type_modifier"`
	Flags        uint8  `json:"flags"`
}

func (c Column) IsKey() bool {
	return c.Flags&ColumnFlagKey != 0
}

type Relation struct {
	RelationID      uint32   `json:"relation_id"`
	Namespace       string   `json:"namespace"`
	Name            string   `json:"name"`
	ReplicaIdentity uint8    `json:"replica_identity"`
	Columns         []Column `json:"columns"`
}

func (*Relation) Tag() string { return TagRelation }

type Type struct {
	DataType  uint32 `json:"data_type"`
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
}

func (*Type) Tag() string { return TagType }

type Insert struct {
	RelationID uint32 `json:"relation_id"`
	New        *Tuple `json:"new"`
}

func (*Insert) Tag() string { return TagInsert }

// Update carries the old row image only when the server sent one, that
// is for replica identity full or when a key column changed.
type Update struct {
	RelationID uint32 `json:"relation_id"`
	Old        *Tuple `json:"old,omitempty"`
	New        *Tuple `json:"new"`
}

func (*Update) Tag() string { return TagUpdate }

type Delete struct {
	RelationID uint32 `json:"relation_id"`
	Old        *Tuple `json:"old"`
}

func (*Delete) Tag() string { return TagDelete }

type Truncate struct {
	RelationIDs     []uint32 `json:"relation_ids"`
	Cascade         bool     `json:"cascade"`
	RestartIdentity bool     `json:"restart_identity"`
}

func (*Truncate) Tag() string { return TagTruncate }

var messageFactories = map[string]func() Message{
	TagBegin:    func() Message { return &Begin{} },
	TagCommit:   func() Message { return &Commit{} },
	TagOrigin:   func() Message { return &Origin{} },
	TagRelation: func() Message { return &Relation{} },
	TagType:     func() Message { return &Type{} },
	TagInsert:   func() Message { return &Insert{} },
	TagUpdate:   func() Message { return &Update{} },
	TagDelete:   func() Message { return &Delete{} },
	TagTruncate: func() Message { return &Truncate{} },
}
