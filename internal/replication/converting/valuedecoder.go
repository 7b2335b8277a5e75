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

package converting

import (
	"math"

	"github.com/go-errors/errors"
	"github.com/jackc/pglogrepl"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/noctarius/event-connectors/spi/replicationevent"
)

var typeMap = pgtype.NewMap()

// decodeColumn turns a single tuple column into a value. The column
// format is carried per value by the pgoutput protocol.
func decodeColumn(
	column *pglogrepl.TupleDataColumn, dataTypeOid uint32,
) (replicationevent.Value, error) {

	switch column.DataType {
	case pglogrepl.TupleDataTypeNull:
		return replicationevent.NullValue(), nil
	case pglogrepl.TupleDataTypeToast:
		return replicationevent.UnchangedValue(), nil
	case pglogrepl.TupleDataTypeBinary:
		return replicationevent.BinaryValue(column.Data), nil
	case pglogrepl.TupleDataTypeText:
		return decodeTextColumn(column.Data, dataTypeOid)
	}
	return replicationevent.Value{}, errors.Errorf("unknown tuple data type '%c'", column.DataType)
}

func decodeTextColumn(
	src []byte, dataTypeOid uint32,
) (replicationevent.Value, error) {

	dataType, ok := typeMap.TypeForOID(dataTypeOid)
	if !ok {
		return replicationevent.BinaryValue(src), nil
	}

	switch dataTypeOid {
	case pgtype.Int2OID, pgtype.Int4OID, pgtype.Int8OID, pgtype.OIDOID,
		pgtype.Float4OID, pgtype.Float8OID, pgtype.BoolOID:
	default:
		return replicationevent.TextValue(string(src)), nil
	}

	value, err := dataType.Codec.DecodeValue(typeMap, dataTypeOid, pgtype.TextFormatCode, src)
	if err != nil {
		return replicationevent.Value{}, errors.Wrap(err, 0)
	}

	switch v := value.(type) {
	case int16:
		return replicationevent.IntegerValue(int64(v)), nil
	case int32:
		return replicationevent.IntegerValue(int64(v)), nil
	case int64:
		return replicationevent.IntegerValue(v), nil
	case uint32:
		return replicationevent.IntegerValue(int64(v)), nil
	case float32:
		return floatValue(float64(v), src), nil
	case float64:
		return floatValue(v, src), nil
	case bool:
		return replicationevent.BooleanValue(v), nil
	}
	return replicationevent.TextValue(string(src)), nil
}

// floatValue keeps NaN and the infinities as their textual form since
// JSON numbers cannot represent them.
func floatValue(
	value float64, src []byte,
) replicationevent.Value {

	if math.IsNaN(value) || math.IsInf(value, 0) {
		return replicationevent.TextValue(string(src))
	}
	return replicationevent.FloatValue(value)
}
