package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorCodes(t *testing.T) {
	codes := []string{
		ErrConfig,
		ErrUnreachable,
		ErrSnapshot,
		ErrRefresh,
		ErrConnLost,
		ErrRender,
	}

	for _, code := range codes {
		assert.NotEmpty(t, code, "error code should not be empty")
	}

	seen := make(map[string]bool)
	for _, code := range codes {
		assert.False(t, seen[code], "error code %q should be unique", code)
		seen[code] = true
	}
}

func TestNew(t *testing.T) {
	err := New(ErrConfig, "Invalid renderer", "Use tea or tcell")

	require.NotNil(t, err)
	assert.Equal(t, ErrConfig, err.Code)
	assert.Equal(t, "Invalid renderer", err.Message)
	assert.Equal(t, "Use tea or tcell", err.Suggestion)
	assert.Nil(t, err.Cause)
}

func TestWrap_Code(t *testing.T) {
	tests := []struct {
		name  string
		cause error
		want  string
	}{
		{
			name:  "plain cause is internal",
			cause: errors.New("connection reset by peer"),
			want:  ErrInternal,
		},
		{
			name:  "structured cause keeps its code",
			cause: New(ErrSnapshot, "components query failed", ""),
			want:  ErrSnapshot,
		},
		{
			name:  "structured cause deeper in the chain",
			cause: fmt.Errorf("startup: %w", New(ErrConfig, "bad url", "")),
			want:  ErrConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Wrap(tt.cause, "Metrics query failed")
			assert.Equal(t, tt.want, err.Code)
			assert.Equal(t, tt.cause, err.Cause)
			assert.True(t, errors.Is(err, tt.cause))
		})
	}
}

func TestWrap_InternalExitsSoftware(t *testing.T) {
	assert.Equal(t, ExitSoftware, ExitCode(Wrap(errors.New("boom"), "unexpected")))
	assert.False(t, IsCode(Wrap(errors.New("boom"), "unexpected"), ErrRefresh))
}

func TestError_Format(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name:     "message only",
			err:      New(ErrRender, "Terminal not available", ""),
			contains: []string{"✗ Terminal not available"},
		},
		{
			name: "message with cause and suggestion",
			err: WrapWithCode(errors.New("dial tcp: connection refused"), ErrUnreachable,
				"API server not reachable", "Check that the pipeline is running with its API enabled"),
			contains: []string{
				"✗ API server not reachable",
				"dial tcp: connection refused",
				"Check that the pipeline is running",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := tt.err.Error()
			for _, want := range tt.contains {
				assert.Contains(t, out, want)
			}
			assert.True(t, strings.HasPrefix(out, "✗ "))
		})
	}
}

func TestDiagnostic(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		assert.Equal(t, "", Diagnostic(nil))
	})

	t.Run("structured with cause", func(t *testing.T) {
		err := WrapWithCode(errors.New("timeout\nawaiting headers"), ErrRefresh, "Metrics query failed", "ignored")
		assert.Equal(t, "Metrics query failed: timeout awaiting headers", Diagnostic(err))
	})

	t.Run("structured without cause", func(t *testing.T) {
		assert.Equal(t, "Lost", Diagnostic(New(ErrConnLost, "Lost", "")))
	})

	t.Run("plain error is folded", func(t *testing.T) {
		assert.Equal(t, "a b c", Diagnostic(errors.New("a\n  b\tc")))
	})

	t.Run("wrapped structured error", func(t *testing.T) {
		inner := New(ErrSnapshot, "Couldn't obtain metrics", "")
		assert.Equal(t, "Couldn't obtain metrics", Diagnostic(fmt.Errorf("startup: %w", inner)))
	})
}

func TestIsCode(t *testing.T) {
	err := New(ErrSnapshot, "snapshot", "")

	assert.True(t, IsCode(err, ErrSnapshot))
	assert.False(t, IsCode(err, ErrUnreachable))
	assert.True(t, IsCode(fmt.Errorf("wrapped: %w", err), ErrSnapshot))
	assert.False(t, IsCode(errors.New("plain"), ErrSnapshot))
	assert.False(t, IsCode(nil, ErrSnapshot))
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil is OK", nil, ExitOK},
		{"unreachable", New(ErrUnreachable, "x", ""), ExitUnavailable},
		{"snapshot", New(ErrSnapshot, "x", ""), ExitUnavailable},
		{"config", New(ErrConfig, "x", ""), ExitConfig},
		{"render", New(ErrRender, "x", ""), ExitSoftware},
		{"plain error", errors.New("boom"), ExitSoftware},
		{"wrapped unreachable", fmt.Errorf("run: %w", New(ErrUnreachable, "x", "")), ExitUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}
