package planlog

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOutputSplitter_RoutesByLevel(t *testing.T) {
	splitter := &OutputSplitter{}

	tests := []struct {
		name    string
		message []byte
	}{
		{"ErrorLevel", []byte(`time="2026-01-15T10:30:00Z" level=error msg="cache put failed"`)},
		{"InfoLevel", []byte(`time="2026-01-15T10:30:00Z" level=info msg="plan compiled"`)},
		{"WarnLevel", []byte(`time="2026-01-15T10:30:00Z" level=warning msg="cache miss"`)},
		{"ErrorWordButInfoLevel", []byte(`time="2026-01-15T10:30:00Z" level=info msg="error occurred but not error level"`)},
		{"Empty", []byte(``)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := splitter.Write(tt.message)
			assert.NoError(t, err)
			assert.Equal(t, len(tt.message), n)
		})
	}
}

func TestOutputSplitter_PatternMatching(t *testing.T) {
	splitter := &OutputSplitter{}

	errorPatterns := [][]byte{
		[]byte("level=error"),
		[]byte(`level=error msg="test"`),
		[]byte("prefix level=error suffix"),
	}
	for _, p := range errorPatterns {
		n, err := splitter.Write(p)
		assert.NoError(t, err)
		assert.Equal(t, len(p), n)
		assert.True(t, bytes.Contains(p, []byte("level=error")))
	}

	nonErrorPatterns := [][]byte{
		[]byte("level=info"),
		[]byte("level=warning"),
		[]byte("LEVEL=ERROR"),
	}
	for _, p := range nonErrorPatterns {
		n, err := splitter.Write(p)
		assert.NoError(t, err)
		assert.Equal(t, len(p), n)
		assert.False(t, bytes.Contains(p, []byte("level=error")))
	}
}

func TestOutputSplitter_ConcurrentWrites(t *testing.T) {
	splitter := &OutputSplitter{}
	done := make(chan bool)

	for i := 0; i < 10; i++ {
		go func() {
			message := []byte("concurrent log line")
			n, err := splitter.Write(message)
			assert.NoError(t, err)
			assert.Equal(t, len(message), n)
			done <- true
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}
}

func TestLogger_Initialization(t *testing.T) {
	assert.NotNil(t, Logger)
	_, ok := Logger.Out.(*OutputSplitter)
	assert.True(t, ok, "Logger should use OutputSplitter")
}
