package translator

import (
	"testing"

	"github.com/stardustagi/ScriptPilot/llm/models"
	"github.com/stardustagi/ScriptPilot/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func msg(role, content string) protocol.ChatMessage {
	return protocol.ChatMessage{Role: role, Content: content}
}

func texts(cs []models.Content) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Role + ":" + c.Parts[0].Text
	}
	return out
}

func TestToUpstream_NoSystem(t *testing.T) {
	conv := protocol.Conversation{
		msg("user", "INT. KITCHEN - NIGHT"),
		msg("assistant", "The kettle screams."),
		msg("user", "Make it quieter."),
	}
	up := ToUpstream(conv)

	assert.Nil(t, up.SystemInstruction)
	assert.Equal(t, []string{
		"user:INT. KITCHEN - NIGHT",
		"model:The kettle screams.",
		"user:Make it quieter.",
	}, texts(up.Contents))
}

func TestToUpstream_SystemExtraction(t *testing.T) {
	up := ToUpstream(protocol.Conversation{msg("system", "S"), msg("user", "A"), msg("assistant", "B")})

	require.NotNil(t, up.SystemInstruction)
	assert.Equal(t, "S", up.SystemInstruction.Parts[0].Text)
	assert.Empty(t, up.SystemInstruction.Role)
	assert.Equal(t, []string{"user:A", "model:B"}, texts(up.Contents))
}

func TestToUpstream_FirstSystemWinsAndAllAreRemoved(t *testing.T) {
	up := ToUpstream(protocol.Conversation{
		msg("user", "A"),
		msg("system", "first"),
		msg("system", "second"),
		msg("assistant", "B"),
	})
	require.NotNil(t, up.SystemInstruction)
	assert.Equal(t, "first", up.SystemInstruction.Parts[0].Text)
	assert.Equal(t, []string{"user:A", "model:B"}, texts(up.Contents))
}

func TestToUpstream_KeepsTurnMatchingSystemText(t *testing.T) {
	up := ToUpstream(protocol.Conversation{msg("system", "Be brief."), msg("user", "Be brief.")})
	assert.Equal(t, []string{"user:Be brief."}, texts(up.Contents))
}

func TestRole(t *testing.T) {
	assert.Equal(t, models.RoleModel, Role("assistant"))
	assert.Equal(t, models.RoleUser, Role("user"))
	assert.Equal(t, models.RoleUser, Role("narrator"))
}

func TestRequest(t *testing.T) {
	req := Request(protocol.Conversation{msg("user", "hi")}, 0.7, 256)
	require.NotNil(t, req.GenerationConfig)
	assert.Equal(t, 256, req.GenerationConfig.MaxOutputTokens)
	assert.Equal(t, 0.7, req.GenerationConfig.Temperature)
	assert.Nil(t, req.SystemInstruction)
}
