package store

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestID_Key(t *testing.T) {
	tests := []struct {
		name string
		id   ID
		want string
	}{
		{"simple", NewID("a", "b"), "a/b"},
		{"empty id", ID{}, ""},
		{"space", NewID("a b"), "a+b"},
		{"slash escaped", NewID("a/b"), "a%2Fb"},
		{"unicode", NewID("жизнь"), "%D0%B6%D0%B8%D0%B7%D0%BD%D1%8C"},
		{"absent segment", ID{Seg("x"), Null()}, "x/&null"},
		{"literal sentinel escaped", NewID("&null"), "%26null"},
		{"empty segment", NewID("a", "", "b"), "a/&empty/b"},
		{"dot", NewID("."), "%2E"},
		{"dotdot", NewID(".."), "%2E%2E"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.id.Key())
		})
	}
}

func TestDecodeID_RoundTrip(t *testing.T) {
	ids := []ID{
		NewID("a", "b"),
		ID{},
		NewID("a b", "c/d", "&null", "", ".", ".."),
		ID{Null()},
		ID{Seg("x"), Null(), Seg("y")},
	}

	for _, id := range ids {
		t.Run(id.Key(), func(t *testing.T) {
			got, err := DecodeID(id.Key())
			require.NoError(t, err)
			assert.True(t, id.Equal(got), "decoded %q, want %q", got.Key(), id.Key())
		})
	}
}

func TestDecodeID_Invalid(t *testing.T) {
	_, err := DecodeID("a/%zz")
	assert.Error(t, err)
}

func TestID_Equal(t *testing.T) {
	assert.True(t, NewID("a", "b").Equal(NewID("a", "b")))
	assert.False(t, NewID("a", "b").Equal(NewID("b", "a")), "order matters")
	assert.False(t, NewID("a").Equal(NewID("a", "b")))
	assert.True(t, ID{Null()}.Equal(ID{Null()}))
	assert.False(t, ID{Null()}.Equal(ID{Seg("")}), "absent is not empty")
	assert.False(t, ID{Null()}.Equal(ID{Seg("&null")}), "absent is not the sentinel literal")
}

func TestID_JSON(t *testing.T) {
	id := ID{Seg("a"), Null(), Seg("")}

	data, err := json.Marshal(id)
	require.NoError(t, err)
	assert.Equal(t, `["a",null,""]`, string(data))

	var back ID
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, id.Equal(back))
}

func TestSegment_Accessors(t *testing.T) {
	assert.True(t, Seg("v").Present())
	assert.Equal(t, "v", Seg("v").Value())
	assert.False(t, Null().Present())
	assert.Equal(t, "", Null().Value())
}
