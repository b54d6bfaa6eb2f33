package version

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReadBuildOverride(t *testing.T) {
	tests := []struct {
		name     string
		override string
		want     string
	}{
		{"long sha is shortened", "0123456789abcdef", "01234567"},
		{"short value kept", "abc", "abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := readBuild(tt.override)
			assert.Equal(t, tt.want, info.Commit)
			assert.False(t, info.Modified)
		})
	}
}

func TestFull(t *testing.T) {
	assert.True(t, strings.HasPrefix(Full(), AppName+"/"+GitCommit))
	assert.NotEmpty(t, Get().Commit)
}
