package transcript

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_TurnsEnvelope(t *testing.T) {
	tr, err := Parse([]byte(`{"turns":[{"role":"user","content":"hi"},{"role":"assistant","content":"hello"}]}`))
	require.NoError(t, err)
	require.Len(t, tr.Turns, 2)
	assert.Equal(t, "hi", tr.Turns[0].Content)
}

func TestParse_MessagesEnvelope(t *testing.T) {
	tr, err := Parse([]byte(`{"messages":[{"role":"user","content":"hi"}]}`))
	require.NoError(t, err)
	require.Len(t, tr.Turns, 1)
}

func TestParse_ItemsWithTextField(t *testing.T) {
	tr, err := Parse([]byte(`{"items":[{"role":"user","text":"spoken words"}]}`))
	require.NoError(t, err)
	require.Len(t, tr.Turns, 1)
	assert.Equal(t, "spoken words", tr.Turns[0].Content)
}

func TestParse_BareArray(t *testing.T) {
	tr, err := Parse([]byte(`[{"role":"user","content":"hi"}]`))
	require.NoError(t, err)
	require.Len(t, tr.Turns, 1)
}

func TestParse_Garbage(t *testing.T) {
	_, err := Parse([]byte(`not json`))
	assert.Error(t, err)
}

func TestTranscript_Empty(t *testing.T) {
	assert.True(t, (*Transcript)(nil).Empty())
	assert.True(t, (&Transcript{}).Empty())
	assert.True(t, (&Transcript{Turns: []Turn{{Role: "user", Content: "   "}}}).Empty())
	assert.False(t, sample("hello").Empty())
}

func TestTranscript_WordCount(t *testing.T) {
	tr := &Transcript{Turns: []Turn{
		{Role: "user", Content: "one two three"},
		{Role: "assistant", Content: "should not count"},
		{Role: "User", Content: "four"},
	}}
	assert.Equal(t, 4, tr.WordCount())
	assert.Len(t, tr.UserTurns(), 2)
}
