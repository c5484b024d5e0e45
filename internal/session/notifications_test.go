package session

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationLogEvictsOldest(t *testing.T) {
	log := NewNotificationLog(3)
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		log.Add(fmt.Sprintf("n%d", i), "msg", base.Add(time.Duration(i)*time.Minute))
	}

	items := log.Items()
	require.Len(t, items, 3)
	assert.Equal(t, "n2", items[0].Title)
	assert.Equal(t, "n4", items[2].Title)
}

func TestNotificationLogMarkRead(t *testing.T) {
	log := NewNotificationLog(0)
	log.Add("a", "m", time.Now())
	log.Add("b", "m", time.Now())

	require.NoError(t, log.MarkRead(1))
	assert.Equal(t, 1, log.Unread())
	assert.True(t, log.Items()[1].Read)
	assert.ErrorIs(t, log.MarkRead(2), ErrNotificationIndex)
	assert.ErrorIs(t, log.MarkRead(-1), ErrNotificationIndex)
}

func TestNotificationLogJSONKeepsNewest(t *testing.T) {
	raw := `[{"title":"1","message":"m","timestamp":"2026-01-01T00:00:00Z","read":false},
	{"title":"2","message":"m","timestamp":"2026-01-02T00:00:00Z","read":true},
	{"title":"3","message":"m","timestamp":"2026-01-03T00:00:00Z","read":false}]`

	log := NewNotificationLog(2)
	require.NoError(t, json.Unmarshal([]byte(raw), log))
	items := log.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "2", items[0].Title)

	out, err := json.Marshal(log)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"title":"3"`)
}

func TestEmptyNotificationLogMarshalsAsList(t *testing.T) {
	out, err := json.Marshal(NewNotificationLog(1))
	require.NoError(t, err)
	assert.Equal(t, "[]", string(out))
}
