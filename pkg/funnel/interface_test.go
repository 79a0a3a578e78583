package funnel

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestTransientClassification(t *testing.T) {
	base := errors.New("connection reset")

	assert.False(t, IsTransient(base))
	assert.True(t, IsTransient(Transient(base)))
	// Wrapping must not hide the marker.
	assert.True(t, IsTransient(errors.Wrap(Transient(base), "put failed")))
	assert.Nil(t, Transient(nil))
}

func TestNotFoundClassification(t *testing.T) {
	assert.True(t, IsNotFound(ErrNotFound))
	assert.True(t, IsNotFound(errors.Wrap(ErrNotFound, "no such key")))
	assert.False(t, IsNotFound(errors.New("some other error")))
	assert.False(t, IsNotFound(nil))
}
