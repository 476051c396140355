package emu

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuote(t *testing.T) {
	assert.Equal(t, `'/tmp/minindn/a'`, quote("/tmp/minindn/a"))
	assert.Equal(t, `'/tmp/it'\''s dir'`, quote("/tmp/it's dir"))
	assert.Equal(t, `''`, quote(""))
}

func TestMkdirLine(t *testing.T) {
	assert.Equal(t, `mkdir -p '/tmp/minindn/put-A' '/run/nfd dir'`, mkdirLine("/tmp/minindn/put-A", "/run/nfd dir"))
}
