package humanize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBytesFormatsUnits(t *testing.T) {
	require.Equal(t, "0B", Bytes(0))
	require.Equal(t, "512B", Bytes(512))
	require.Equal(t, "1.00KB", Bytes(1024))
	require.Equal(t, "1.50KB", Bytes(1536))
	require.Equal(t, "3.20MB", Bytes(3*1024*1024+200*1024))
	require.Equal(t, "1.50GB", Bytes(1536*1024*1024))
	require.Equal(t, "-512B", Bytes(-512))
}

func TestDurationFormatsTiers(t *testing.T) {
	require.Equal(t, "0μs", Duration(0))
	require.Equal(t, "500μs", Duration(500*time.Microsecond))
	require.Equal(t, "5ms", Duration(5*time.Millisecond))
	require.Equal(t, "1.5s", Duration(1500*time.Millisecond))
	require.Equal(t, "2m5s", Duration(2*time.Minute+5*time.Second))
	require.Equal(t, "1h30m", Duration(90*time.Minute))
}

func TestDurationNegative(t *testing.T) {
	require.Equal(t, "-1.5s", Duration(-1500*time.Millisecond))
}
