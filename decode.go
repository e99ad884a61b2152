/*
  The MIT License (MIT)

  Copyright (c) 2026 the brokuene/mysql authors

  Permission is hereby granted, free of charge, to any person obtaining a copy
  of this software and associated documentation files (the "Software"), to deal
  in the Software without restriction, including without limitation the rights
  to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
  copies of the Software, and to permit persons to whom the Software is
  furnished to do so, subject to the following conditions:

  The above copyright notice and this permission notice shall be included in all
  copies or substantial portions of the Software.

  THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
  IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
  FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
  AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
  LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
  OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
  SOFTWARE.
*/

package mysql

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// _BINARY_CHARSET is the collation id the server reports for binary
// (non-text) string data.
const _BINARY_CHARSET = 63

// Datetime is a calendar value (DATE, DATETIME, TIMESTAMP) as the
// server sent it, without time zone interpretation.
//
// The wire protocol omits trailing zero components (a DATE carries no
// time-of-day, a whole second carries no microseconds) and this type
// mirrors that: absent components are zero, and a value is re-encoded
// with the shortest form that preserves it. The zero Datetime is the
// zero date '0000-00-00'.
type Datetime struct {
	Year        uint16
	Month       uint8
	Day         uint8
	Hour        uint8
	Minute      uint8
	Second      uint8
	Microsecond uint32
}

func (d Datetime) String() string {
	var sb strings.Builder
	sb.WriteString(pad4(d.Year))
	sb.WriteByte('-')
	sb.WriteString(pad2(uint16(d.Month)))
	sb.WriteByte('-')
	sb.WriteString(pad2(uint16(d.Day)))
	sb.WriteByte(' ')
	sb.WriteString(pad2(uint16(d.Hour)))
	sb.WriteByte(':')
	sb.WriteString(pad2(uint16(d.Minute)))
	sb.WriteByte(':')
	sb.WriteString(pad2(uint16(d.Second)))
	if d.Microsecond > 0 {
		sb.WriteByte('.')
		sb.WriteString(pad6(d.Microsecond))
	}
	return sb.String()
}

// Time is an elapsed-time value (TIME), which may be negative and may
// exceed 24 hours. As with Datetime, zero components and omitted wire
// components are one and the same; the zero Time is '00:00:00'.
type Time struct {
	Negative    bool
	Days        uint32
	Hour        uint8
	Minute      uint8
	Second      uint8
	Microsecond uint32
}

func (t Time) String() string {
	var sb strings.Builder
	if t.Negative {
		sb.WriteByte('-')
	}
	hours := uint64(t.Days)*24 + uint64(t.Hour)
	sb.WriteString(strconv.FormatUint(hours, 10))
	sb.WriteByte(':')
	sb.WriteString(pad2(uint16(t.Minute)))
	sb.WriteByte(':')
	sb.WriteString(pad2(uint16(t.Second)))
	if t.Microsecond > 0 {
		sb.WriteByte('.')
		sb.WriteString(pad6(t.Microsecond))
	}
	return sb.String()
}

func pad2(v uint16) string {
	s := strconv.FormatUint(uint64(v), 10)
	if len(s) < 2 {
		return "0" + s
	}
	return s
}

func pad4(v uint16) string {
	s := strconv.FormatUint(uint64(v), 10)
	for len(s) < 4 {
		s = "0" + s
	}
	return s
}

func pad6(v uint32) string {
	s := strconv.FormatUint(uint64(v), 10)
	for len(s) < 6 {
		s = "0" + s
	}
	return s
}

// parseTextRow decodes one text-protocol row into natural Go values,
// one per column. Every value arrives as a length-encoded string (or
// the NULL marker) and is converted per the column's declared type.
func (c *Conn) parseTextRow(b []byte, columns []Column) ([]interface{}, error) {
	var off int
	values := make([]interface{}, len(columns))

	for i := range columns {
		s, n, err := getLenencString(b[off:])
		if err != nil {
			return nil, c.fault(err)
		}
		off += n

		if !s.valid {
			values[i] = nil
			continue
		}

		if values[i], err = textValue(s.value, &columns[i]); err != nil {
			return nil, err
		}
	}

	if off != len(b) {
		return nil, c.fault(myError(ErrMalformedPacket, "text row"))
	}
	return values, nil
}

// textValue converts one text-protocol field into its Go type.
func textValue(s string, col *Column) (interface{}, error) {
	switch col.Type {
	case _TYPE_TINY, _TYPE_SHORT, _TYPE_INT24, _TYPE_LONG, _TYPE_LONG_LONG:
		if col.Flags&_FLAG_UNSIGNED != 0 {
			v, err := strconv.ParseUint(s, 10, 64)
			if err != nil {
				return nil, myError(ErrMalformedPacket, "integer field")
			}
			return v, nil
		}
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, myError(ErrMalformedPacket, "integer field")
		}
		return v, nil

	case _TYPE_YEAR:
		v, err := strconv.ParseUint(s, 10, 16)
		if err != nil {
			return nil, myError(ErrMalformedPacket, "year field")
		}
		return uint16(v), nil

	case _TYPE_FLOAT:
		v, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return nil, myError(ErrMalformedPacket, "float field")
		}
		return float32(v), nil

	case _TYPE_DOUBLE:
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, myError(ErrMalformedPacket, "double field")
		}
		return v, nil

	case _TYPE_DECIMAL, _TYPE_NEW_DECIMAL:
		v, err := decimal.NewFromString(s)
		if err != nil {
			return nil, myError(ErrMalformedPacket, "decimal field")
		}
		return v, nil

	case _TYPE_DATE, _TYPE_DATETIME, _TYPE_TIMESTAMP:
		return parseTextDatetime(s)

	case _TYPE_TIME:
		return parseTextTime(s)

	case _TYPE_BIT:
		return []byte(s), nil

	default:
		// strings, blobs, JSON, ENUM, SET, GEOMETRY
		if col.Charset == _BINARY_CHARSET {
			return []byte(s), nil
		}
		return s, nil
	}
}

// parseTextDatetime parses "YYYY-MM-DD[ HH:MM:SS[.ffffff]]".
func parseTextDatetime(s string) (Datetime, error) {
	var d Datetime

	if len(s) < 10 || s[4] != '-' || s[7] != '-' {
		return d, myError(ErrMalformedPacket, "datetime field")
	}

	year, err1 := strconv.ParseUint(s[0:4], 10, 16)
	month, err2 := strconv.ParseUint(s[5:7], 10, 8)
	day, err3 := strconv.ParseUint(s[8:10], 10, 8)
	if err1 != nil || err2 != nil || err3 != nil {
		return d, myError(ErrMalformedPacket, "datetime field")
	}
	d.Year = uint16(year)
	d.Month = uint8(month)
	d.Day = uint8(day)

	if len(s) == 10 {
		return d, nil
	}
	if len(s) < 19 || s[10] != ' ' || s[13] != ':' || s[16] != ':' {
		return d, myError(ErrMalformedPacket, "datetime field")
	}

	hour, err1 := strconv.ParseUint(s[11:13], 10, 8)
	minute, err2 := strconv.ParseUint(s[14:16], 10, 8)
	second, err3 := strconv.ParseUint(s[17:19], 10, 8)
	if err1 != nil || err2 != nil || err3 != nil {
		return d, myError(ErrMalformedPacket, "datetime field")
	}
	d.Hour = uint8(hour)
	d.Minute = uint8(minute)
	d.Second = uint8(second)

	if len(s) > 20 && s[19] == '.' {
		micro, err := parseMicroseconds(s[20:])
		if err != nil {
			return d, err
		}
		d.Microsecond = micro
	}
	return d, nil
}

// parseTextTime parses "[-]HHH:MM:SS[.ffffff]"; hours may exceed two
// digits.
func parseTextTime(s string) (Time, error) {
	var t Time

	if strings.HasPrefix(s, "-") {
		t.Negative = true
		s = s[1:]
	}

	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 {
		return t, myError(ErrMalformedPacket, "time field")
	}

	hours, err := strconv.ParseUint(parts[0], 10, 32)
	if err != nil {
		return t, myError(ErrMalformedPacket, "time field")
	}
	minute, err := strconv.ParseUint(parts[1], 10, 8)
	if err != nil {
		return t, myError(ErrMalformedPacket, "time field")
	}

	sec := parts[2]
	if i := strings.IndexByte(sec, '.'); i >= 0 {
		micro, merr := parseMicroseconds(sec[i+1:])
		if merr != nil {
			return t, merr
		}
		t.Microsecond = micro
		sec = sec[:i]
	}
	second, err := strconv.ParseUint(sec, 10, 8)
	if err != nil {
		return t, myError(ErrMalformedPacket, "time field")
	}

	t.Days = uint32(hours / 24)
	t.Hour = uint8(hours % 24)
	t.Minute = uint8(minute)
	t.Second = uint8(second)
	return t, nil
}

// parseMicroseconds scales a fractional-seconds suffix of up to 6
// digits to microseconds.
func parseMicroseconds(s string) (uint32, error) {
	if len(s) == 0 || len(s) > 6 {
		return 0, myError(ErrMalformedPacket, "fractional seconds")
	}
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, myError(ErrMalformedPacket, "fractional seconds")
	}
	for i := len(s); i < 6; i++ {
		v *= 10
	}
	return uint32(v), nil
}

// parseBinaryRow decodes one binary-protocol row. The payload starts
// with a 0x00 header and a NULL bitmap at offset 2.
func (c *Conn) parseBinaryRow(b []byte, columns []Column) ([]interface{}, error) {
	values := make([]interface{}, len(columns))

	off := 1 // [00] row header
	bitmapSize := nullBitmapSize(uint16(len(columns)), 2)
	if len(b) < off+bitmapSize {
		return nil, c.fault(myError(ErrMalformedPacket, "binary row"))
	}
	bitmap := b[off : off+bitmapSize]
	off += bitmapSize

	for i := range columns {
		if isNull(bitmap, uint16(i), 2) {
			values[i] = nil
			continue
		}
		v, n, err := binaryValue(b[off:], &columns[i])
		if err != nil {
			return nil, c.fault(err)
		}
		values[i] = v
		off += n
	}

	if off != len(b) {
		return nil, c.fault(myError(ErrMalformedPacket, "binary row"))
	}
	return values, nil
}

// binaryValue decodes one binary-protocol field and returns the value
// and the number of bytes consumed.
func binaryValue(b []byte, col *Column) (interface{}, int, error) {
	unsigned := col.Flags&_FLAG_UNSIGNED != 0

	switch col.Type {
	case _TYPE_TINY:
		if len(b) < 1 {
			return nil, 0, myError(ErrMalformedPacket, "binary field")
		}
		if unsigned {
			return uint64(b[0]), 1, nil
		}
		return int64(int8(b[0])), 1, nil

	case _TYPE_SHORT, _TYPE_YEAR:
		if len(b) < 2 {
			return nil, 0, myError(ErrMalformedPacket, "binary field")
		}
		v := binary.LittleEndian.Uint16(b)
		if col.Type == _TYPE_YEAR {
			return v, 2, nil
		}
		if unsigned {
			return uint64(v), 2, nil
		}
		return int64(int16(v)), 2, nil

	case _TYPE_INT24, _TYPE_LONG:
		if len(b) < 4 {
			return nil, 0, myError(ErrMalformedPacket, "binary field")
		}
		v := binary.LittleEndian.Uint32(b)
		if unsigned {
			return uint64(v), 4, nil
		}
		return int64(int32(v)), 4, nil

	case _TYPE_LONG_LONG:
		if len(b) < 8 {
			return nil, 0, myError(ErrMalformedPacket, "binary field")
		}
		v := binary.LittleEndian.Uint64(b)
		if unsigned {
			return v, 8, nil
		}
		return int64(v), 8, nil

	case _TYPE_FLOAT:
		if len(b) < 4 {
			return nil, 0, myError(ErrMalformedPacket, "binary field")
		}
		return math.Float32frombits(binary.LittleEndian.Uint32(b)), 4, nil

	case _TYPE_DOUBLE:
		if len(b) < 8 {
			return nil, 0, myError(ErrMalformedPacket, "binary field")
		}
		return math.Float64frombits(binary.LittleEndian.Uint64(b)), 8, nil

	case _TYPE_DATE, _TYPE_DATETIME, _TYPE_TIMESTAMP:
		return binaryDatetime(b)

	case _TYPE_TIME:
		return binaryTime(b)

	case _TYPE_DECIMAL, _TYPE_NEW_DECIMAL:
		s, n, err := getLenencString(b)
		if err != nil {
			return nil, 0, err
		}
		v, derr := decimal.NewFromString(s.value)
		if derr != nil {
			return nil, 0, myError(ErrMalformedPacket, "decimal field")
		}
		return v, n, nil

	case _TYPE_BIT:
		s, n, err := getLenencString(b)
		if err != nil {
			return nil, 0, err
		}
		return []byte(s.value), n, nil

	default:
		s, n, err := getLenencString(b)
		if err != nil {
			return nil, 0, err
		}
		if col.Charset == _BINARY_CHARSET {
			return []byte(s.value), n, nil
		}
		return s.value, n, nil
	}
}

// binaryDatetime decodes the length-prefixed temporal encoding: the
// length byte is 0 (all zero), 4 (date), 7 (+time) or 11 (+micros).
func binaryDatetime(b []byte) (Datetime, int, error) {
	var d Datetime

	if len(b) < 1 {
		return d, 0, myError(ErrMalformedPacket, "datetime field")
	}
	length := int(b[0])
	if len(b) < 1+length {
		return d, 0, myError(ErrMalformedPacket, "datetime field")
	}

	switch length {
	case 0:
		return d, 1, nil
	case 4, 7, 11:
	default:
		return d, 0, myError(ErrMalformedPacket, "datetime field")
	}

	d.Year = binary.LittleEndian.Uint16(b[1:3])
	d.Month = b[3]
	d.Day = b[4]
	if length >= 7 {
		d.Hour = b[5]
		d.Minute = b[6]
		d.Second = b[7]
	}
	if length == 11 {
		d.Microsecond = binary.LittleEndian.Uint32(b[8:12])
	}
	return d, 1 + length, nil
}

// binaryTime decodes the TIME encoding: length byte 0, 8 or 12.
func binaryTime(b []byte) (Time, int, error) {
	var t Time

	if len(b) < 1 {
		return t, 0, myError(ErrMalformedPacket, "time field")
	}
	length := int(b[0])
	if len(b) < 1+length {
		return t, 0, myError(ErrMalformedPacket, "time field")
	}

	switch length {
	case 0:
		return t, 1, nil
	case 8, 12:
	default:
		return t, 0, myError(ErrMalformedPacket, "time field")
	}

	t.Negative = b[1] == 1
	t.Days = binary.LittleEndian.Uint32(b[2:6])
	t.Hour = b[6]
	t.Minute = b[7]
	t.Second = b[8]
	if length == 12 {
		t.Microsecond = binary.LittleEndian.Uint32(b[9:13])
	}
	return t, 1 + length, nil
}

// assignValue stores a decoded column value into the caller's scan
// destination, converting between compatible representations. A NULL
// value is only assignable to *interface{}.
func assignValue(dest interface{}, v interface{}, col *Column) error {
	if d, ok := dest.(*interface{}); ok {
		*d = v
		return nil
	}
	if v == nil {
		return myError(ErrInvalidType, "NULL value requires *interface{} destination")
	}

	switch d := dest.(type) {
	case *string:
		switch s := v.(type) {
		case string:
			*d = s
		case []byte:
			*d = string(s)
		default:
			return conversionError(v, dest)
		}

	case *[]byte:
		switch s := v.(type) {
		case []byte:
			*d = s
		case string:
			*d = []byte(s)
		default:
			return conversionError(v, dest)
		}

	case *int64:
		switch n := v.(type) {
		case int64:
			*d = n
		case uint64:
			if n > math.MaxInt64 {
				return conversionError(v, dest)
			}
			*d = int64(n)
		case uint16:
			*d = int64(n)
		default:
			return conversionError(v, dest)
		}

	case *uint64:
		switch n := v.(type) {
		case uint64:
			*d = n
		case int64:
			if n < 0 {
				return conversionError(v, dest)
			}
			*d = uint64(n)
		case uint16:
			*d = uint64(n)
		default:
			return conversionError(v, dest)
		}

	case *int:
		var n int64
		if err := assignValue(&n, v, col); err != nil {
			return err
		}
		*d = int(n)

	case *uint:
		var n uint64
		if err := assignValue(&n, v, col); err != nil {
			return err
		}
		*d = uint(n)

	case *int32:
		var n int64
		if err := assignValue(&n, v, col); err != nil {
			return err
		}
		if n < math.MinInt32 || n > math.MaxInt32 {
			return conversionError(v, dest)
		}
		*d = int32(n)

	case *uint32:
		var n uint64
		if err := assignValue(&n, v, col); err != nil {
			return err
		}
		if n > math.MaxUint32 {
			return conversionError(v, dest)
		}
		*d = uint32(n)

	case *uint16:
		switch n := v.(type) {
		case uint16:
			*d = n
		default:
			var u uint64
			if err := assignValue(&u, v, col); err != nil {
				return err
			}
			if u > math.MaxUint16 {
				return conversionError(v, dest)
			}
			*d = uint16(u)
		}

	case *bool:
		switch n := v.(type) {
		case int64:
			*d = n != 0
		case uint64:
			*d = n != 0
		default:
			return conversionError(v, dest)
		}

	case *float64:
		switch n := v.(type) {
		case float64:
			*d = n
		case float32:
			*d = float64(n)
		default:
			return conversionError(v, dest)
		}

	case *float32:
		switch n := v.(type) {
		case float32:
			*d = n
		default:
			return conversionError(v, dest)
		}

	case *decimal.Decimal:
		switch n := v.(type) {
		case decimal.Decimal:
			*d = n
		default:
			return conversionError(v, dest)
		}

	case *Datetime:
		switch n := v.(type) {
		case Datetime:
			*d = n
		default:
			return conversionError(v, dest)
		}

	case *Time:
		switch n := v.(type) {
		case Time:
			*d = n
		default:
			return conversionError(v, dest)
		}

	default:
		return myError(ErrInvalidType, dest)
	}
	return nil
}

func conversionError(v, dest interface{}) *Error {
	return myError(ErrInvalidType, fmt.Sprintf("cannot assign %T to %T", v, dest))
}
