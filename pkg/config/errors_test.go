package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationError(t *testing.T) {
	tests := []struct {
		name string
		err  *ValidationError
		want string
	}{
		{
			name: "with field",
			err:  NewValidationError("memory", "answer_threshold", ErrInvalidValue),
			want: "memory.answer_threshold: invalid field value",
		},
		{
			name: "without field",
			err:  NewValidationError("backend", "", errors.New("boom")),
			want: "backend: boom",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}

	assert.ErrorIs(t, NewValidationError("queue", "worker_count", ErrInvalidValue), ErrInvalidValue)
}

func TestLoadError(t *testing.T) {
	err := NewLoadError("concierge.yaml", ErrConfigNotFound)
	assert.Equal(t, "failed to load concierge.yaml: configuration file not found", err.Error())
	assert.ErrorIs(t, err, ErrConfigNotFound)

	var le *LoadError
	assert.True(t, errors.As(error(err), &le))
	assert.Equal(t, "concierge.yaml", le.File)
}
