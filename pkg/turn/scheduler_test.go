package turn

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeSchedulerFires(t *testing.T) {
	fired := make(chan Token, 1)
	s := NewTimeScheduler(func(tok Token) { fired <- tok })
	defer s.Stop()

	tok := Token{Kind: TimerExitDelay, Gen: 7}
	s.Schedule(5*time.Millisecond, tok)

	select {
	case got := <-fired:
		assert.Equal(t, tok, got)
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
}

func TestTimeSchedulerCancel(t *testing.T) {
	fired := make(chan Token, 1)
	s := NewTimeScheduler(func(tok Token) { fired <- tok })
	defer s.Stop()

	cancel := s.Schedule(20*time.Millisecond, Token{Kind: TimerReminder, Gen: 1})
	cancel()
	cancel()

	select {
	case <-fired:
		t.Fatal("cancelled timer fired")
	case <-time.After(60 * time.Millisecond):
	}
}

func TestTimeSchedulerStop(t *testing.T) {
	fired := make(chan Token, 2)
	s := NewTimeScheduler(func(tok Token) { fired <- tok })
	s.Schedule(20*time.Millisecond, Token{Kind: TimerReminder, Gen: 1})
	s.Stop()
	cancel := s.Schedule(time.Millisecond, Token{Kind: TimerReminder, Gen: 2})
	cancel()

	select {
	case <-fired:
		t.Fatal("timer fired after stop")
	case <-time.After(60 * time.Millisecond):
	}
}

func TestFakeSchedulerOrdersFires(t *testing.T) {
	f := NewFakeScheduler(t0)
	var got []TimerKind
	f.OnFire = func(tok Token) {
		got = append(got, tok.Kind)
		if tok.Kind == TimerExitCheck && len(got) < 4 {
			f.Schedule(5*time.Second, Token{Kind: TimerExitCheck})
		}
	}
	f.Schedule(5*time.Second, Token{Kind: TimerExitCheck})
	f.Schedule(7*time.Second, Token{Kind: TimerReminder})
	cancel := f.Schedule(6*time.Second, Token{Kind: TimerInactivity})
	cancel()

	f.Advance(12 * time.Second)
	require.Equal(t, []TimerKind{TimerExitCheck, TimerReminder, TimerExitCheck}, got)
	assert.Equal(t, t0.Add(12*time.Second), f.Now())
	assert.Equal(t, []TimerKind{TimerExitCheck}, f.Pending())
}
