package fidebe

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError(t *testing.T) {
	assert.Equal(t, slog.Attr{}, Error(nil))

	err := errors.New("broken")
	attr := Error(err)
	assert.Equal(t, DefaultErrorKey, attr.Key)
	assert.Equal(t, slog.KindAny, attr.Value.Kind())
	assert.Same(t, err, attr.Value.Any())
}

func TestComponent(t *testing.T) {
	assert.Equal(t, slog.String("component", "widget"), Component("widget"))
}
