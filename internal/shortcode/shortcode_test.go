package shortcode

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncode(t *testing.T) {
	cases := []struct {
		id   uint64
		want string
	}{
		{0, "0"},
		{1, "1"},
		{9, "9"},
		{10, "a"},
		{35, "z"},
		{36, "A"},
		{61, "Z"},
		{62, "10"},
		{125, "21"},
		{3844, "100"},
	}

	for _, c := range cases {
		assert.Equal(t, c.want, Encode(c.id))
	}
}

func TestEncodeDistinct(t *testing.T) {
	seen := map[string]bool{}
	for id := uint64(0); id < 10000; id++ {
		code := Encode(id)
		assert.False(t, seen[code], code)
		seen[code] = true
	}
}
