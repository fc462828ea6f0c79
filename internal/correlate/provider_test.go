package correlate

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Team-Zarathustra/Zarathustra-Warsaw-sub001/internal/httputil"
)

func TestHTTPSemanticProvider_Score(t *testing.T) {
	t.Parallel()

	mock := httputil.NewMockHTTPClient()
	mock.AddResponse(200, `{"score": 0.82, "reason": "both describe an S-band surveillance radar"}`)
	p := NewHTTPSemanticProvider(mock, "http://semantic.local/score")

	a := humintAt("r1", 47.8, 35.1, time.Now())
	b := sigintAt("e1", 47.8, 35.1, time.Now())

	s, err := p.Score(context.Background(), a, b)
	require.NoError(t, err)
	assert.InDelta(t, 0.82, s.Score, 1e-9)
	assert.Contains(t, s.Reason, "S-band")

	req := mock.GetRequest(0)
	require.NotNil(t, req)
	body, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	var sent semanticRequest
	require.NoError(t, json.Unmarshal(body, &sent))
	assert.Equal(t, "military_unit", sent.EntityA.Type)
	assert.Equal(t, "electronic_emitter", sent.EntityB.Type)
}

func TestHTTPSemanticProvider_Errors(t *testing.T) {
	t.Parallel()

	a := humintAt("r1", 47.8, 35.1, time.Now())
	b := sigintAt("e1", 47.8, 35.1, time.Now())

	t.Run("transport error", func(t *testing.T) {
		mock := httputil.NewMockHTTPClient()
		mock.AddErrorResponse(errors.New("connection refused"))
		p := NewHTTPSemanticProvider(mock, "http://semantic.local/score")

		_, err := p.Score(context.Background(), a, b)
		assert.Error(t, err)
	})

	t.Run("non-200 status", func(t *testing.T) {
		mock := httputil.NewMockHTTPClient()
		mock.AddResponse(503, "overloaded")
		p := NewHTTPSemanticProvider(mock, "http://semantic.local/score")

		_, err := p.Score(context.Background(), a, b)
		assert.ErrorContains(t, err, "503")
	})

	t.Run("score clamped to unit interval", func(t *testing.T) {
		mock := httputil.NewMockHTTPClient()
		mock.AddResponse(200, `{"score": 1.8, "reason": "overconfident"}`)
		p := NewHTTPSemanticProvider(mock, "http://semantic.local/score")

		s, err := p.Score(context.Background(), a, b)
		require.NoError(t, err)
		assert.Equal(t, 1.0, s.Score)
	})
}
