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
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func textRowPayload(fields ...interface{}) []byte {
	var b []byte
	for _, f := range fields {
		if f == nil {
			b = append(b, 0xfb)
			continue
		}
		s := f.(string)
		buf := make([]byte, lenencStringSize(s))
		putLenencString(buf, s)
		b = append(b, buf...)
	}
	return b
}

func TestParseTextRow(t *testing.T) {
	c := &Conn{cfg: &Config{}}
	columns := []Column{
		{Name: "id", Type: _TYPE_LONG},
		{Name: "big", Type: _TYPE_LONG_LONG, Flags: _FLAG_UNSIGNED},
		{Name: "name", Type: _TYPE_VARSTRING, Charset: 45},
		{Name: "blob", Type: _TYPE_BLOB, Charset: _BINARY_CHARSET},
		{Name: "price", Type: _TYPE_NEW_DECIMAL},
		{Name: "ratio", Type: _TYPE_DOUBLE},
		{Name: "note", Type: _TYPE_VARSTRING, Charset: 45},
	}
	row := textRowPayload("-7", "18446744073709551615", "ann", "\x00\x01",
		"12.34", "0.5", nil)

	values, err := c.parseTextRow(row, columns)
	require.NoError(t, err)
	require.Len(t, values, 7)

	assert.Equal(t, int64(-7), values[0])
	assert.Equal(t, uint64(18446744073709551615), values[1])
	assert.Equal(t, "ann", values[2])
	assert.Equal(t, []byte{0x00, 0x01}, values[3])
	assert.True(t, values[4].(decimal.Decimal).Equal(decimal.RequireFromString("12.34")))
	assert.Equal(t, float64(0.5), values[5])
	assert.Nil(t, values[6])
}

func TestParseTextRowRejectsTrailingBytes(t *testing.T) {
	c := &Conn{cfg: &Config{}}
	columns := []Column{{Name: "id", Type: _TYPE_LONG}}
	row := append(textRowPayload("1"), 0x99)

	_, err := c.parseTextRow(row, columns)
	require.Error(t, err)
}

func TestParseTextDatetime(t *testing.T) {
	d, err := parseTextDatetime("2026-08-31 12:34:56.123456")
	require.NoError(t, err)
	assert.Equal(t, Datetime{Year: 2026, Month: 8, Day: 31,
		Hour: 12, Minute: 34, Second: 56, Microsecond: 123456}, d)

	d, err = parseTextDatetime("2026-08-31")
	require.NoError(t, err)
	assert.Equal(t, Datetime{Year: 2026, Month: 8, Day: 31}, d)

	// short fractions scale to microseconds
	d, err = parseTextDatetime("2026-08-31 00:00:00.5")
	require.NoError(t, err)
	assert.Equal(t, uint32(500000), d.Microsecond)

	_, err = parseTextDatetime("yesterday")
	require.Error(t, err)
}

func TestParseTextTime(t *testing.T) {
	tv, err := parseTextTime("-838:59:59")
	require.NoError(t, err)
	assert.Equal(t, Time{Negative: true, Days: 34, Hour: 22,
		Minute: 59, Second: 59}, tv)

	tv, err = parseTextTime("01:02:03.000100")
	require.NoError(t, err)
	assert.Equal(t, Time{Hour: 1, Minute: 2, Second: 3, Microsecond: 100}, tv)

	_, err = parseTextTime("12h30m")
	require.Error(t, err)
}

func TestTemporalString(t *testing.T) {
	d := Datetime{Year: 2026, Month: 8, Day: 31, Hour: 7, Minute: 5,
		Second: 9, Microsecond: 120000}
	assert.Equal(t, "2026-08-31 07:05:09.120000", d.String())

	tv := Time{Negative: true, Days: 1, Hour: 2, Minute: 3, Second: 4}
	assert.Equal(t, "-26:03:04", tv.String())
}

func TestParseBinaryRow(t *testing.T) {
	c := &Conn{cfg: &Config{}}
	columns := []Column{
		{Name: "id", Type: _TYPE_LONG},
		{Name: "n", Type: _TYPE_LONG_LONG, Flags: _FLAG_UNSIGNED},
		{Name: "name", Type: _TYPE_VARSTRING, Charset: 45},
		{Name: "missing", Type: _TYPE_LONG},
		{Name: "ts", Type: _TYPE_DATETIME},
	}

	// header, bitmap (column 3 NULL -> bit 5 of byte 0), then values
	row := []byte{0x00, 0x20}
	row = append(row, 0xfe, 0xff, 0xff, 0xff) // LONG -2
	row = append(row, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x80)
	row = append(row, 0x03, 'b', 'o', 'b')
	row = append(row, 7, 0xea, 0x07, 8, 31, 12, 0, 1) // 2026-08-31 12:00:01

	values, err := c.parseBinaryRow(row, columns)
	require.NoError(t, err)
	require.Len(t, values, 5)

	assert.Equal(t, int64(-2), values[0])
	assert.Equal(t, uint64(1<<63+1), values[1])
	assert.Equal(t, "bob", values[2])
	assert.Nil(t, values[3])
	assert.Equal(t, Datetime{Year: 2026, Month: 8, Day: 31,
		Hour: 12, Second: 1}, values[4])
}

func TestBinaryTemporalLengths(t *testing.T) {
	d, n, err := binaryDatetime([]byte{0})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, Datetime{}, d)

	d, n, err = binaryDatetime([]byte{4, 0xea, 0x07, 1, 2})
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, Datetime{Year: 2026, Month: 1, Day: 2}, d)

	_, _, err = binaryDatetime([]byte{5, 0, 0, 0, 0, 0})
	require.Error(t, err)

	tv, n, err := binaryTime([]byte{12, 1, 2, 0, 0, 0, 3, 4, 5, 0x40, 0x42, 0x0f, 0x00})
	require.NoError(t, err)
	assert.Equal(t, 13, n)
	assert.Equal(t, Time{Negative: true, Days: 2, Hour: 3, Minute: 4,
		Second: 5, Microsecond: 1000000}, tv)

	_, _, err = binaryTime([]byte{9, 0, 0, 0, 0, 0, 0, 0, 0, 0})
	require.Error(t, err)
}

func TestAssignValue(t *testing.T) {
	col := &Column{}

	var s string
	require.NoError(t, assignValue(&s, "abc", col))
	assert.Equal(t, "abc", s)
	require.NoError(t, assignValue(&s, []byte("xyz"), col))
	assert.Equal(t, "xyz", s)

	var i int
	require.NoError(t, assignValue(&i, int64(-5), col))
	assert.Equal(t, -5, i)

	var u uint32
	require.NoError(t, assignValue(&u, uint64(7), col))
	assert.Equal(t, uint32(7), u)
	require.Error(t, assignValue(&u, uint64(1<<40), col))

	var i64 int64
	require.Error(t, assignValue(&i64, uint64(1<<63+1), col))

	var f float64
	require.NoError(t, assignValue(&f, float32(0.5), col))
	assert.Equal(t, 0.5, f)

	var b bool
	require.NoError(t, assignValue(&b, int64(1), col))
	assert.True(t, b)

	var dec decimal.Decimal
	require.NoError(t, assignValue(&dec, decimal.New(1234, -2), col))
	assert.Equal(t, "12.34", dec.String())

	var any interface{}
	require.NoError(t, assignValue(&any, nil, col))
	assert.Nil(t, any)

	// NULL into a concrete destination is refused
	require.Error(t, assignValue(&s, nil, col))

	// unsupported destination type
	var ch chan int
	require.Error(t, assignValue(&ch, int64(1), col))
}
