package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSkipErrorsContinuesAndCounts(t *testing.T) {
	p := NewSkipErrors(nil, nil)
	require.Equal(t, Continue, p.OnError(errors.New("boom")))
	p.OnStats(EventSuccess)
	p.OnStats(EventSkip)
	p.OnStats(EventSkip)
	successes, skips, aborts := p.Stats.Snapshot()
	require.Equal(t, uint64(1), successes)
	require.Equal(t, uint64(2), skips)
	require.Equal(t, uint64(0), aborts)
}

func TestAbortOnErrorAborts(t *testing.T) {
	p := NewAbortOnError(nil, nil)
	require.Equal(t, Abort, p.OnError(errors.New("boom")))
}

func TestSilentSkipNeverLogsButCounts(t *testing.T) {
	p := NewSilentSkip(nil)
	require.Equal(t, Continue, p.OnError(errors.New("boom")))
	p.OnStats(EventAbort)
	_, _, aborts := p.Stats.Snapshot()
	require.Equal(t, uint64(1), aborts)
}
