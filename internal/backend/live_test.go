package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gigchat/internal/repository"
)

func row(id, username, name string) repository.UserRow {
	return repository.UserRow{ID: id, Username: username, Name: name}
}

func TestMergeSearchRowsDeduplicatesAcrossIndexes(t *testing.T) {
	byUsername := []repository.UserRow{row("u1", "anna", "Anna K"), row("u2", "andrew", "Andrew P")}
	byName := []repository.UserRow{row("u1", "anna", "Anna K"), row("u3", "bert", "Andre B")}

	results := MergeSearchRows("me", byUsername, byName, 10)

	require.Len(t, results, 3)
	assert.Equal(t, "u1", results[0].ID)
	assert.Equal(t, "u2", results[1].ID)
	assert.Equal(t, "u3", results[2].ID)
}

func TestMergeSearchRowsUsernameMatchesRankFirst(t *testing.T) {
	byUsername := []repository.UserRow{row("u2", "andrew", "Andrew P")}
	byName := []repository.UserRow{row("u1", "zoe", "Andrea Z")}

	results := MergeSearchRows("me", byUsername, byName, 10)

	require.Len(t, results, 2)
	assert.Equal(t, "u2", results[0].ID)
	assert.Equal(t, "u1", results[1].ID)
}

func TestMergeSearchRowsFlagsSelf(t *testing.T) {
	results := MergeSearchRows("u1", []repository.UserRow{row("u1", "anna", "Anna K"), row("u2", "andrew", "Andrew P")}, nil, 10)

	require.Len(t, results, 2)
	assert.True(t, results[0].Self)
	assert.False(t, results[1].Self)
}

func TestMergeSearchRowsHonorsLimit(t *testing.T) {
	byUsername := []repository.UserRow{row("u1", "a", "A"), row("u2", "b", "B")}
	byName := []repository.UserRow{row("u3", "c", "C")}

	results := MergeSearchRows("me", byUsername, byName, 2)
	assert.Len(t, results, 2)
}
