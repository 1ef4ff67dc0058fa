package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSortMessagesStable(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	msgs := []Message{
		{ID: "m3", CreatedAt: base.Add(2 * time.Second)},
		{ID: "m1", CreatedAt: base},
		{ID: "m2b", CreatedAt: base.Add(time.Second)},
		{ID: "m2a", CreatedAt: base.Add(time.Second)},
	}
	SortMessages(msgs)

	ids := []string{msgs[0].ID, msgs[1].ID, msgs[2].ID, msgs[3].ID}
	assert.Equal(t, []string{"m1", "m2a", "m2b", "m3"}, ids)
}

func TestFilterPurged(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	msgs := []Message{
		{ID: "old", CreatedAt: base.Add(-time.Minute)},
		{ID: "at", CreatedAt: base},
		{ID: "new", CreatedAt: base.Add(time.Minute)},
	}

	assert.Len(t, FilterPurged(msgs, nil), 3)

	kept := FilterPurged(msgs, &base)
	assert.Len(t, kept, 2)
	assert.Equal(t, "at", kept[0].ID)
	assert.Equal(t, "new", kept[1].ID)
}

func TestMessagePreview(t *testing.T) {
	m := Message{Text: "hello"}
	assert.Equal(t, "hello", m.Preview())

	m.Deleted = true
	m.Text = ""
	assert.Equal(t, UnsentPreview, m.Preview())
}
