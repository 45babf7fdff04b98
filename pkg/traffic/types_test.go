package traffic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHeaderCaseInsensitive(t *testing.T) {
	h := make(Header)
	h.Set("Content-Type", "text/html")

	assert.Equal(t, "text/html", h.Get("content-type"))
	assert.Equal(t, "text/html", h.Get("CONTENT-TYPE"))

	h.Del("Content-TYPE")
	assert.Empty(t, h.Get("content-type"))
}

func TestHeaderNilSafe(t *testing.T) {
	var h Header
	assert.Empty(t, h.Get("anything"))
	assert.Nil(t, h.Clone())
}

func TestHeaderClone(t *testing.T) {
	h := Header{"a": "1"}
	c := h.Clone()
	c.Set("a", "2")

	assert.Equal(t, "1", h.Get("a"))
	assert.Equal(t, "2", c.Get("a"))
}
