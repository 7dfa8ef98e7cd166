package buildinfo

import (
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetDefaults(t *testing.T) {
	info := Get("nexa-server")

	assert.Equal(t, "nexa-server", info.ServiceName)
	assert.Equal(t, Version, info.Version)
	assert.Equal(t, Commit, info.Commit)
	assert.Equal(t, runtime.Version(), info.GoVersion)
}

func TestString(t *testing.T) {
	s := String()
	assert.True(t, strings.HasPrefix(s, Version))
	assert.Contains(t, s, Commit)
	assert.Contains(t, s, BuildTime)
}
