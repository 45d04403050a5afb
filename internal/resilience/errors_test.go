package resilience

import (
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
)

func TestIsTransient(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"explicit transient", NewTransientError(eris.New("429"), 429), true},
		{"wrapped transient", eris.Wrap(NewTransientError(eris.New("503"), 503), "perplexity: send"), true},
		{"plain error", eris.New("invalid api key"), false},
		{"connection reset message", eris.New("read tcp: connection reset by peer"), true},
		{"io timeout message", eris.New("dial tcp: i/o timeout"), true},
		{"dns failure message", eris.New("lookup api.example.com: no such host"), true},
		{"validation error", eris.New("model: query is required"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestTransientErrorUnwrap(t *testing.T) {
	t.Parallel()

	inner := eris.New("boom")
	te := NewTransientError(inner, 500)

	assert.Equal(t, "boom", te.Error())
	assert.Equal(t, inner, te.Unwrap())
	assert.Equal(t, 500, te.StatusCode)
}

func TestIsTransientHTTPStatus(t *testing.T) {
	t.Parallel()

	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, IsTransientHTTPStatus(code), "status %d", code)
	}
	for _, code := range []int{200, 301, 400, 401, 403, 404, 422} {
		assert.False(t, IsTransientHTTPStatus(code), "status %d", code)
	}
}
