package sandbox

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCastValue(t *testing.T) {
	tests := []struct {
		name    string
		in      any
		typ     string
		want    any
		wantErr bool
	}{
		{name: "nil stays nil", in: nil, typ: TypeInteger, want: nil},
		{name: "string to integer", in: " 42 ", typ: TypeInteger, want: int64(42)},
		{name: "number to integer", in: json.Number("7"), typ: TypeInteger, want: int64(7)},
		{name: "integral float to integer", in: 3.0, typ: TypeInteger, want: int64(3)},
		{name: "fraction to integer", in: 3.5, typ: TypeInteger, wantErr: true},
		{name: "word to integer", in: "abc", typ: TypeInteger, wantErr: true},
		{name: "string to numeric", in: "3.25", typ: TypeNumeric, want: json.Number("3.25")},
		{name: "int to numeric", in: int64(4), typ: TypeNumeric, want: json.Number("4")},
		{name: "yes to boolean", in: "Yes", typ: TypeBoolean, want: true},
		{name: "zero to boolean", in: "0", typ: TypeBoolean, want: false},
		{name: "maybe to boolean", in: "maybe", typ: TypeBoolean, wantErr: true},
		{name: "number to text", in: json.Number("1.50"), typ: TypeText, want: "1.50"},
		{name: "bool to text", in: true, typ: TypeText, want: "true"},
		{name: "unknown type", in: "x", typ: "geometry", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := castValue(tt.in, tt.typ)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInferType(t *testing.T) {
	tests := []struct {
		name   string
		values []any
		want   string
	}{
		{name: "empty", values: nil, want: TypeText},
		{name: "only blanks", values: []any{"", nil, " "}, want: TypeText},
		{name: "integers", values: []any{"1", "2", ""}, want: TypeInteger},
		{name: "zero and one are numbers", values: []any{"0", "1"}, want: TypeInteger},
		{name: "decimals", values: []any{"1", "2.5"}, want: TypeNumeric},
		{name: "booleans", values: []any{"true", "F", "yes"}, want: TypeBoolean},
		{name: "mixed", values: []any{"1", "two"}, want: TypeText},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, inferType(tt.values))
		})
	}
}
