// Package translator turns a role-tagged conversation into the Gemini
// contents/systemInstruction shape.
package translator

import (
	"github.com/stardustagi/ScriptPilot/llm/models"
	"github.com/stardustagi/ScriptPilot/protocol"
)

// Upstream 上游请求中与对话相关的部分
type Upstream struct {
	Contents          []models.Content
	SystemInstruction *models.Content
}

// Role maps a conversation role onto the two upstream roles. Only assistant
// becomes model; every other role lands in user.
func Role(role string) string {
	if role == protocol.RoleAssistant {
		return models.RoleModel
	}
	return models.RoleUser
}

// ToUpstream converts conv in one pass. The first system message becomes the
// system instruction. System messages are dropped by position, so a user or
// assistant turn whose text matches the instruction is kept.
func ToUpstream(conv protocol.Conversation) Upstream {
	out := Upstream{Contents: make([]models.Content, 0, len(conv))}
	for _, msg := range conv {
		if msg.Role == protocol.RoleSystem {
			if out.SystemInstruction == nil {
				out.SystemInstruction = &models.Content{Parts: []models.Part{{Text: msg.Content}}}
			}
			continue
		}
		out.Contents = append(out.Contents, models.Content{
			Role:  Role(msg.Role),
			Parts: []models.Part{{Text: msg.Content}},
		})
	}
	return out
}

// Request 组装完整的生成请求
func Request(conv protocol.Conversation, temperature float64, maxTokens int) *models.GenerateContentRequest {
	up := ToUpstream(conv)
	return &models.GenerateContentRequest{
		Contents:          up.Contents,
		SystemInstruction: up.SystemInstruction,
		GenerationConfig: &models.GenerationConfig{
			MaxOutputTokens: maxTokens,
			Temperature:     temperature,
		},
	}
}
