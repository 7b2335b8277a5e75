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

package testing

import (
	"time"

	"github.com/jackc/pgio"
	"github.com/jackc/pglogrepl"
)

// Builders for pgoutput (protocol version 1) payloads and the streaming
// frames wrapping them, used to drive the replication code without a
// running server.

const microsecFromUnixEpochToY2K = 946684800 * 1000000

type ColumnSpec struct {
	Name    string
	TypeOid uint32
	Key     bool
}

type TupleValue struct {
	Kind byte
	Data []byte
}

func Text(
	value string,
) TupleValue {

	return TupleValue{Kind: pglogrepl.TupleDataTypeText, Data: []byte(value)}
}

func Binary(
	value []byte,
) TupleValue {

	return TupleValue{Kind: pglogrepl.TupleDataTypeBinary, Data: value}
}

func Null() TupleValue {
	return TupleValue{Kind: pglogrepl.TupleDataTypeNull}
}

func Toast() TupleValue {
	return TupleValue{Kind: pglogrepl.TupleDataTypeToast}
}

func pgTime(
	t time.Time,
) int64 {

	return t.UnixMicro() - microsecFromUnixEpochToY2K
}

func appendString(
	buf []byte, value string,
) []byte {

	buf = append(buf, value...)
	return append(buf, 0)
}

func appendTuple(
	buf []byte, values []TupleValue,
) []byte {

	buf = pgio.AppendUint16(buf, uint16(len(values)))
	for _, value := range values {
		buf = append(buf, value.Kind)
		if value.Kind == pglogrepl.TupleDataTypeText || value.Kind == pglogrepl.TupleDataTypeBinary {
			buf = pgio.AppendUint32(buf, uint32(len(value.Data)))
			buf = append(buf, value.Data...)
		}
	}
	return buf
}

func BeginPayload(
	finalLSN uint64, xid uint32, commitTime time.Time,
) []byte {

	buf := []byte{byte(pglogrepl.MessageTypeBegin)}
	buf = pgio.AppendUint64(buf, finalLSN)
	buf = pgio.AppendInt64(buf, pgTime(commitTime))
	return pgio.AppendUint32(buf, xid)
}

func CommitPayload(
	commitLSN, endLSN uint64, commitTime time.Time,
) []byte {

	buf := []byte{byte(pglogrepl.MessageTypeCommit), 0}
	buf = pgio.AppendUint64(buf, commitLSN)
	buf = pgio.AppendUint64(buf, endLSN)
	return pgio.AppendInt64(buf, pgTime(commitTime))
}

func RelationPayload(
	relationId uint32, namespace, name string, columns ...ColumnSpec,
) []byte {

	buf := []byte{byte(pglogrepl.MessageTypeRelation)}
	buf = pgio.AppendUint32(buf, relationId)
	buf = appendString(buf, namespace)
	buf = appendString(buf, name)
	buf = append(buf, 'd')
	buf = pgio.AppendUint16(buf, uint16(len(columns)))
	for _, column := range columns {
		var flags byte
		if column.Key {
			flags = 1
		}
		buf = append(buf, flags)
		buf = appendString(buf, column.Name)
		buf = pgio.AppendUint32(buf, column.TypeOid)
		buf = pgio.AppendInt32(buf, -1)
	}
	return buf
}

func InsertPayload(
	relationId uint32, values ...TupleValue,
) []byte {

	buf := []byte{byte(pglogrepl.MessageTypeInsert)}
	buf = pgio.AppendUint32(buf, relationId)
	buf = append(buf, 'N')
	return appendTuple(buf, values)
}

// UpdatePayload encodes an update, with the old row image only if old is
// not nil.
func UpdatePayload(
	relationId uint32, old []TupleValue, values ...TupleValue,
) []byte {

	buf := []byte{byte(pglogrepl.MessageTypeUpdate)}
	buf = pgio.AppendUint32(buf, relationId)
	if old != nil {
		buf = append(buf, 'O')
		buf = appendTuple(buf, old)
	}
	buf = append(buf, 'N')
	return appendTuple(buf, values)
}

func DeletePayload(
	relationId uint32, old ...TupleValue,
) []byte {

	buf := []byte{byte(pglogrepl.MessageTypeDelete)}
	buf = pgio.AppendUint32(buf, relationId)
	buf = append(buf, 'K')
	return appendTuple(buf, old)
}

func TruncatePayload(
	option uint8, relationIds ...uint32,
) []byte {

	buf := []byte{byte(pglogrepl.MessageTypeTruncate)}
	buf = pgio.AppendUint32(buf, uint32(len(relationIds)))
	buf = append(buf, option)
	for _, relationId := range relationIds {
		buf = pgio.AppendUint32(buf, relationId)
	}
	return buf
}

func XLogData(
	walStart uint64, serverTime time.Time, payload []byte,
) pglogrepl.XLogData {

	return pglogrepl.XLogData{
		WALStart:     pglogrepl.LSN(walStart),
		ServerWALEnd: pglogrepl.LSN(walStart),
		ServerTime:   serverTime,
		WALData:      payload,
	}
}

// XLogDataFrame wraps a payload into the 'w' CopyData frame sent by the
// server.
func XLogDataFrame(
	walStart uint64, serverTime time.Time, payload []byte,
) []byte {

	buf := []byte{pglogrepl.XLogDataByteID}
	buf = pgio.AppendUint64(buf, walStart)
	buf = pgio.AppendUint64(buf, walStart)
	buf = pgio.AppendInt64(buf, pgTime(serverTime))
	return append(buf, payload...)
}

func KeepaliveFrame(
	serverWALEnd uint64, serverTime time.Time, replyRequested bool,
) []byte {

	buf := []byte{pglogrepl.PrimaryKeepaliveMessageByteID}
	buf = pgio.AppendUint64(buf, serverWALEnd)
	buf = pgio.AppendInt64(buf, pgTime(serverTime))
	if replyRequested {
		return append(buf, 1)
	}
	return append(buf, 0)
}
