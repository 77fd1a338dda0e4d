package util

import (
	"io"
	"testing"
)

// BenchmarkLogger_Filtered measures the cost of a log call below the
// configured verbosity, which is the common case on the session path.
func BenchmarkLogger_Filtered(b *testing.B) {
	l := NewLogger(0)
	l.SetOutput(io.Discard)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		l.Verbose("command %s from client#%d", "ls", i)
	}
}

// BenchmarkBufPool measures chunk buffer reuse.
func BenchmarkBufPool(b *testing.B) {
	for i := 0; i < b.N; i++ {
		buf := GetBuf()
		PutBuf(buf)
	}
}
