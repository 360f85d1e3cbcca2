package chat

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTextMessageAssignsIDAndPart(t *testing.T) {
	msg := NewTextMessage(RoleUser, "hello")

	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, RoleUser, msg.Role)
	require.Len(t, msg.Parts, 1)
	assert.Equal(t, PartTypeText, msg.Parts[0].Type)
	assert.Equal(t, "hello", msg.Parts[0].Text)
}

func TestMessageTextConcatenatesPartsInOrder(t *testing.T) {
	msg := Message{
		Role: RoleAssistant,
		Parts: []Part{
			{Type: PartTypeText, Text: "one "},
			{Type: "reasoning", Text: "skipped"},
			{Type: PartTypeText, Text: "two"},
		},
	}

	assert.Equal(t, "one two", msg.Text())
}

func TestAppendTextGrowsTrailingPart(t *testing.T) {
	msg := NewTextMessage(RoleAssistant, "The ")
	msg.AppendText("Moon")
	msg.AppendText(" orbits")

	require.Len(t, msg.Parts, 1)
	assert.Equal(t, "The Moon orbits", msg.Text())
}

func TestAppendTextCreatesPartWhenNoneTrailing(t *testing.T) {
	var msg Message
	msg.AppendText("first")

	require.Len(t, msg.Parts, 1)
	assert.Equal(t, "first", msg.Text())

	msg.Parts = append(msg.Parts, Part{Type: "reasoning", Text: "x"})
	msg.AppendText("second")

	require.Len(t, msg.Parts, 3)
	assert.Equal(t, "firstsecond", msg.Text())
}

func TestBuildSystemPromptWithoutTitle(t *testing.T) {
	prompt := BuildSystemPrompt("")

	assert.Contains(t, prompt, "You are Yuri")
	assert.Contains(t, prompt, "gently redirect them back to space topics")
	assert.NotContains(t, prompt, "currently reading an article")
}

func TestBuildSystemPromptEmbedsArticleTitleBeforeRedirect(t *testing.T) {
	prompt := BuildSystemPrompt("Voyager at the Edge")

	assert.Contains(t, prompt, `an article titled: "Voyager at the Edge"`)

	contextIdx := strings.Index(prompt, "currently reading an article")
	redirectIdx := strings.Index(prompt, "gently redirect")
	require.NotEqual(t, -1, contextIdx)
	require.NotEqual(t, -1, redirectIdx)
	assert.Less(t, contextIdx, redirectIdx)
}
