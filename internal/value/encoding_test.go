// Copyright (C) 2024 Tessera Labs, Inc.
// See LICENSE for copying information.

package value_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"storj.io/common/memory"
	"storj.io/common/testcontext"
	"storj.io/common/testrand"

	"github.com/tesseradb/tessera/internal/value"
)

func TestEncodeDecodeValueRoundTripsFixedWidthTypes(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	cases := []value.Value{
		value.NewTinyInt(-7),
		value.NewSmallInt(1234),
		value.NewInteger(-99999),
		value.NewBigInt(1 << 40),
		value.NewDouble(3.5),
		value.NewBoolean(true),
		value.NewNull(value.BigInt),
	}
	for _, v := range cases {
		buf := v.Encode(nil)
		require.Len(t, buf, v.EncodedLen())
		got, n, err := value.DecodeValue(v.Type(), buf)
		require.NoError(t, err)
		require.Equal(t, len(buf), n)
		require.Equal(t, v.IsNull(), got.IsNull())
		if !v.IsNull() {
			c, err := v.Compare(got)
			require.NoError(t, err)
			require.Equal(t, 0, c)
		}
	}
}

func TestEncodeDecodeValueRoundTripsRandomVarbinaryPayload(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	payload := testrand.Bytes(3 * memory.KiB)
	v := value.NewVarbinary(payload, false)

	buf := v.Encode(nil)
	require.Len(t, buf, v.EncodedLen())

	got, n, err := value.DecodeValue(value.Varbinary, buf)
	require.NoError(t, err)
	require.Equal(t, len(buf), n)
	c, err := v.Compare(got)
	require.NoError(t, err)
	require.Equal(t, 0, c)
}

func TestDecodeValueRejectsTruncatedBuffer(t *testing.T) {
	v := value.NewBigInt(42)
	buf := v.Encode(nil)
	_, _, err := value.DecodeValue(value.BigInt, buf[:len(buf)-2])
	require.Error(t, err)
}

func TestDecodeRowDecodesEachColumnInOrder(t *testing.T) {
	schema := value.NewTupleSchema(
		value.ColumnSchema{Type: value.Integer},
		value.ColumnSchema{Type: value.Varchar},
	)
	var buf []byte
	buf = value.NewInteger(7).Encode(buf)
	buf = value.NewVarchar("hello", false).Encode(buf)

	row, n, err := value.DecodeRow(schema, buf)
	require.NoError(t, err)
	require.Equal(t, len(buf), n)
	got0, _ := row[0].Int64()
	require.Equal(t, int64(7), got0)
	require.Equal(t, "hello", string(row[1].Bytes()))
}
