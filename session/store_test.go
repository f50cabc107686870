package session

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bughunter/appstate"
	"bughunter/results"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestStore(ttl time.Duration) (*Store, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)}
	s := NewStore(ttl)
	s.now = clock.now
	return s, clock
}

func TestStore_CreateAndState(t *testing.T) {
	s, _ := newTestStore(time.Minute)
	id, err := s.Create()
	require.NoError(t, err)
	assert.True(t, s.Exists(id))

	st, err := s.State(id)
	require.NoError(t, err)
	assert.Equal(t, appstate.New(), st)

	_, err = s.State("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_Update(t *testing.T) {
	s, _ := newTestStore(time.Minute)
	id, err := s.Create()
	require.NoError(t, err)

	_, err = s.Update(id, func(st *appstate.State) error {
		return st.ToggleBug("broken_link", true)
	})
	require.NoError(t, err)

	got, err := s.Update(id, func(st *appstate.State) error {
		st.ExpandAll()
		st.SelectedBugs = nil
		return errors.New("abort")
	})
	require.Error(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []string{"broken_link"}, got.SelectedBugs, "failed update returns the stored state")
	assert.False(t, got.IsVisible("linksSection"))

	st, err := s.State(id)
	require.NoError(t, err)
	assert.Equal(t, []string{"broken_link"}, st.SelectedBugs)
	assert.False(t, st.IsVisible("linksSection"), "failed update must not be stored")
}

func TestStore_ConcurrentUpdates(t *testing.T) {
	s, _ := newTestStore(time.Minute)
	id, err := s.Create()
	require.NoError(t, err)

	var wg sync.WaitGroup
	for _, section := range appstate.SectionIDs() {
		wg.Add(1)
		go func(section string) {
			defer wg.Done()
			_, err := s.Update(id, func(st *appstate.State) error { return st.ToggleSection(section) })
			assert.NoError(t, err)
		}(section)
	}
	wg.Wait()

	st, err := s.State(id)
	require.NoError(t, err)
	for _, section := range appstate.SectionIDs() {
		assert.True(t, st.IsVisible(section), section)
	}
}

func TestStore_OutcomeRoundTrip(t *testing.T) {
	s, _ := newTestStore(time.Minute)
	id, err := s.Create()
	require.NoError(t, err)

	_, ok, err := s.Outcome(id)
	require.NoError(t, err)
	assert.False(t, ok)

	in := results.Outcome{
		Source: results.SourceURL,
		Target: "https://example.com",
		Results: results.TestResultDocument{
			"links": {"https://example.com/a": {"check broken link": "passed", results.CodeSnippetKey: "<a href=\"/a\">a</a>"}},
			"forms": {},
		},
	}
	require.NoError(t, s.SaveOutcome(id, in))

	out, ok, err := s.Outcome(id)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, in, out)

	s.ClearOutcome(id)
	_, ok, err = s.Outcome(id)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_CorruptOutcome(t *testing.T) {
	s, _ := newTestStore(time.Minute)
	id, err := s.Create()
	require.NoError(t, err)

	require.NoError(t, s.SaveRawOutcome(id, []byte("{broken")))
	_, ok, err := s.Outcome(id)
	assert.True(t, ok)
	assert.Error(t, err)
}

func TestStore_Expiry(t *testing.T) {
	s, clock := newTestStore(time.Minute)
	a, err := s.Create()
	require.NoError(t, err)
	b, err := s.Create()
	require.NoError(t, err)

	clock.advance(40 * time.Second)
	assert.True(t, s.Exists(a)) // refreshes a

	clock.advance(40 * time.Second)
	assert.Equal(t, 1, s.Sweep())
	assert.True(t, s.Exists(a))
	assert.False(t, s.Exists(b))

	clock.advance(2 * time.Minute)
	assert.ErrorIs(t, s.SaveOutcome(a, results.Outcome{Error: "late"}), ErrNotFound)
	assert.Equal(t, 0, s.Len())
}

func TestStore_Delete(t *testing.T) {
	s, _ := newTestStore(time.Minute)
	id, err := s.Create()
	require.NoError(t, err)
	s.Delete(id)
	assert.False(t, s.Exists(id))
	assert.ErrorIs(t, s.SaveState(id, appstate.New()), ErrNotFound)
}
