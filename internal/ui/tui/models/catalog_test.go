package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PizzaHomicide/adplay/internal/config"
)

var testCatalog = []config.CatalogEntry{
	{Title: "Big Buck Bunny", Source: "https://example.com/bunny.mp4"},
	{Title: "Sintel", Source: "https://example.com/sintel.mkv"},
	{Title: "Tears of Steel", Source: "/videos/tears_of_steel.webm"},
}

func newTestCatalog() *CatalogModel {
	m := NewCatalogModel(testCatalog)
	m.Resize(100, 30)
	return m
}

func TestCatalogPlaysSelectedEntry(t *testing.T) {
	m := newTestCatalog()

	m.Update(key("down"))
	_, cmd := m.Update(key("enter"))
	require.NotNil(t, cmd)

	assert.Equal(t, PlayEntryMsg{Entry: testCatalog[1]}, cmd())
}

func TestCatalogCursorStaysInRange(t *testing.T) {
	m := newTestCatalog()

	m.Update(key("up"))
	assert.Equal(t, 0, m.cursor)

	for i := 0; i < 5; i++ {
		m.Update(key("j"))
	}
	assert.Equal(t, 2, m.cursor)
}

func TestCatalogSearchFiltersTitleAndSource(t *testing.T) {
	m := newTestCatalog()

	m.Update(key("/"))
	require.True(t, m.Searching())
	for _, r := range "webm" {
		m.Update(key(string(r)))
	}
	m.Update(key("enter"))

	assert.False(t, m.Searching())
	require.Len(t, m.filtered, 1)
	assert.Equal(t, "Tears of Steel", m.Selected().Title)
	assert.Contains(t, m.View(), "Filter: webm")

	// Typing while not searching does not change the filter
	m.Update(key("x"))
	assert.Len(t, m.filtered, 1)
}

func TestCatalogSearchCancelClearsFilter(t *testing.T) {
	m := newTestCatalog()

	m.Update(key("/"))
	m.Update(key("s"))
	m.Update(key("i"))
	assert.Len(t, m.filtered, 1)

	m.Update(key("esc"))
	assert.False(t, m.Searching())
	assert.Len(t, m.filtered, 3)
}

func TestCatalogEmpty(t *testing.T) {
	m := NewCatalogModel(nil)
	m.Resize(100, 30)

	_, cmd := m.Update(key("enter"))
	require.NotNil(t, cmd)
	assert.IsType(t, HandledMsg{}, cmd())
	assert.Nil(t, m.Selected())
	assert.Contains(t, m.View(), "The catalog is empty")
}
