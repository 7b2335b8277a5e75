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
	"bytes"
	"encoding/base64"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-errors/errors"
	"github.com/goccy/go-json"
)

type ValueKind uint8

const (
	NullKind ValueKind = iota
	TextKind
	IntegerKind
	FloatKind
	BooleanKind
	BinaryKind
	UnchangedKind
)

func (k ValueKind) String() string {
	switch k {
	case NullKind:
		return "null"
	case TextKind:
		return "text"
	case IntegerKind:
		return "integer"
	case FloatKind:
		return "float"
	case BooleanKind:
		return "boolean"
	case BinaryKind:
		return "binary"
	case UnchangedKind:
		return "unchanged"
	}
	return fmt.Sprintf("unknown(%d)", k)
}

// Value is a single decoded column value. The zero value is null.
type Value struct {
	kind    ValueKind
	text    string
	integer int64
	float   float64
	boolean bool
	binary  []byte
}

func NullValue() Value {
	return Value{kind: NullKind}
}

// UnchangedValue marks a column the server omitted because its stored
// (TOASTed) value did not change. It is distinct from null.
func UnchangedValue() Value {
	return Value{kind: UnchangedKind}
}

func TextValue(
	text string,
) Value {

	return Value{kind: TextKind, text: text}
}

func IntegerValue(
	integer int64,
) Value {

	return Value{kind: IntegerKind, integer: integer}
}

func FloatValue(
	float float64,
) Value {

	return Value{kind: FloatKind, float: float}
}

func BooleanValue(
	boolean bool,
) Value {

	return Value{kind: BooleanKind, boolean: boolean}
}

func BinaryValue(
	binary []byte,
) Value {

	return Value{kind: BinaryKind, binary: binary}
}

func (v Value) Kind() ValueKind {
	return v.kind
}

func (v Value) IsNull() bool {
	return v.kind == NullKind
}

func (v Value) IsUnchanged() bool {
	return v.kind == UnchangedKind
}

func (v Value) Text() string {
	return v.text
}

func (v Value) Integer() int64 {
	return v.integer
}

func (v Value) Float() float64 {
	return v.float
}

func (v Value) Boolean() bool {
	return v.boolean
}

func (v Value) Binary() []byte {
	return v.binary
}

// Any returns the value as a plain Go value. Null and unchanged values
// both return nil, use Kind to tell them apart.
func (v Value) Any() any {
	switch v.kind {
	case TextKind:
		return v.text
	case IntegerKind:
		return v.integer
	case FloatKind:
		return v.float
	case BooleanKind:
		return v.boolean
	case BinaryKind:
		return v.binary
	}
	return nil
}

func (v Value) String() string {
	switch v.kind {
	case NullKind, UnchangedKind:
		return "<" + v.kind.String() + ">"
	case BinaryKind:
		return fmt.Sprintf("<binary %d bytes>", len(v.binary))
	}
	return fmt.Sprintf("%v", v.Any())
}

type binaryEnvelope struct {
	Binary string `json:"binary"`
}

type unchangedEnvelope struct {
	Unchanged bool `json:"unchanged"`
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case NullKind:
		return []byte("null"), nil
	case TextKind:
		return marshal(v.text)
	case IntegerKind:
		return marshal(v.integer)
	case FloatKind:
		return marshalFloat(v.float)
	case BooleanKind:
		return marshal(v.boolean)
	case BinaryKind:
		return marshal(binaryEnvelope{Binary: base64.StdEncoding.EncodeToString(v.binary)})
	case UnchangedKind:
		return marshal(unchangedEnvelope{Unchanged: true})
	}
	return nil, errors.Errorf("illegal value kind %s", v.kind)
}

// marshalFloat always writes a fraction or an exponent, which keeps
// integral floats apart from integers when decoding.
func marshalFloat(
	f float64,
) ([]byte, error) {

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, errors.Errorf("float value %v has no json representation", f)
	}
	encoded := strconv.AppendFloat(nil, f, 'g', -1, 64)
	if !bytes.ContainsAny(encoded, ".eE") {
		encoded = append(encoded, '.', '0')
	}
	return encoded, nil
}

// decodeToken rebuilds a value from the token stream, the first token
// being already consumed.
func decodeToken(
	decoder *json.Decoder, token json.Token,
) (Value, error) {

	switch t := token.(type) {
	case nil:
		return NullValue(), nil
	case string:
		return TextValue(t), nil
	case bool:
		return BooleanValue(t), nil
	case json.Number:
		if !strings.ContainsAny(t.String(), ".eE") {
			if i, err := t.Int64(); err == nil {
				return IntegerValue(i), nil
			}
		}
		f, err := t.Float64()
		if err != nil {
			return Value{}, errors.Wrap(err, 0)
		}
		return FloatValue(f), nil
	case json.Delim:
		if t != '{' {
			return Value{}, errors.Errorf("unexpected delimiter %s in tuple value", t)
		}
		return decodeEnvelope(decoder)
	}
	return Value{}, errors.Errorf("unexpected token %v in tuple value", token)
}

func decodeEnvelope(
	decoder *json.Decoder,
) (Value, error) {

	keyToken, err := decoder.Token()
	if err != nil {
		return Value{}, errors.Wrap(err, 0)
	}
	key, ok := keyToken.(string)
	if !ok {
		return Value{}, errors.Errorf("illegal tuple value envelope")
	}

	valueToken, err := decoder.Token()
	if err != nil {
		return Value{}, errors.Wrap(err, 0)
	}

	var value Value
	switch key {
	case "binary":
		encoded, ok := valueToken.(string)
		if !ok {
			return Value{}, errors.Errorf("binary value must be a base64 string")
		}
		data, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return Value{}, errors.Wrap(err, 0)
		}
		value = BinaryValue(data)
	case "unchanged":
		value = UnchangedValue()
	default:
		return Value{}, errors.Errorf("unknown tuple value envelope %s", key)
	}

	endToken, err := decoder.Token()
	if err != nil {
		return Value{}, errors.Wrap(err, 0)
	}
	if delim, ok := endToken.(json.Delim); !ok || delim != '}' {
		return Value{}, errors.Errorf("tuple value envelope must hold exactly one key")
	}
	return value, nil
}
