package integration

import (
	"testing"
	"time"

	"github.com/rgehrsitz/benadmin/pkg/dateutil"
	"github.com/stretchr/testify/require"
)

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, ok := dateutil.Parse(s)
	require.True(t, ok, "invalid date %q", s)
	return d
}
