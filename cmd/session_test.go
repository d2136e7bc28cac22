package main

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tidbyt.dev/timetable/model"
	"tidbyt.dev/timetable/session"
	"tidbyt.dev/timetable/state"
	"tidbyt.dev/timetable/storage"
)

func TestSessionListAndClear(t *testing.T) {
	s := storage.NewMemoryStorage()
	s.TimeNow = func() time.Time { return time.Date(2020, 7, 2, 13, 0, 0, 0, time.UTC) }

	blob, err := session.Encode(session.Session{
		Selection: model.NewSelection("Millbrae", "Palo Alto").WithReference("Millbrae"),
		Date:      model.Today,
	})
	require.NoError(t, err)
	require.NoError(t, s.Save(state.DefaultSlot, blob))
	require.NoError(t, s.Save("broken", []byte("nope")))

	out := &bytes.Buffer{}
	require.NoError(t, listSessions(out, s, nil))
	assert.Equal(t, fmt.Sprintf(
		"broken 4 bytes, updated 2020-07-02T13:00:00Z: unreadable\n"+
			"timetable-session %d bytes, updated 2020-07-02T13:00:00Z: 2 stops, reference \"Millbrae\", date today\n",
		len(blob),
	), out.String())

	// The default slot goes when none are named.
	out.Reset()
	require.NoError(t, clearSessions(out, s, nil))
	assert.Equal(t, "cleared timetable-session\n", out.String())
	_, err = s.Load(state.DefaultSlot)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	out.Reset()
	require.NoError(t, clearSessions(out, s, []string{"broken", "missing"}))
	assert.Equal(t, "cleared broken\ncleared missing\n", out.String())

	out.Reset()
	require.NoError(t, listSessions(out, s, nil))
	assert.Equal(t, "", out.String())
}
