package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewMemory_AlternatesHumanAndAI(t *testing.T) {
	mem := NewMemory([]*Turn{
		{ID: 1, Query: "q1", Answer: "a1"},
		{ID: 2, Query: "q2", Answer: "a2"},
	})

	assert.False(t, mem.IsEmpty())
	assert.Equal(t, 4, mem.Len())
	assert.Equal(t, []Message{
		{Role: RoleHuman, Content: "q1"},
		{Role: RoleAI, Content: "a1"},
		{Role: RoleHuman, Content: "q2"},
		{Role: RoleAI, Content: "a2"},
	}, mem.Messages())
	assert.Equal(t, "Human: q1\nAssistant: a1\nHuman: q2\nAssistant: a2", mem.Transcript())
}

func TestMemory_EmptyAndNil(t *testing.T) {
	empty := NewMemory(nil)
	assert.True(t, empty.IsEmpty())
	assert.Equal(t, "", empty.Transcript())

	var nilMem *Memory
	assert.True(t, nilMem.IsEmpty())
	assert.Equal(t, 0, nilMem.Len())
	assert.Nil(t, nilMem.Messages())
}
