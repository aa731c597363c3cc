package router

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/internal/domain"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/platform/ai/yandexgpt"
)

// historyLimit is the number of past messages of the current mode sent to the LLM.
const historyLimit = 20

const promptManagerSummary = "manager_summary"

var blockPatterns = map[string]*regexp.Regexp{
	"params":  regexp.MustCompile(`(?s)<params>(.*?)</params>`),
	"contact": regexp.MustCompile(`(?s)<contact>(.*?)</contact>`),
}

// converse runs one LLM turn of the current mode: the user's text is stored,
// the model answers from the mode prompt and the recent history, and the answer is stored.
func (r *Router) converse(ctx context.Context, req *Request, system string) (string, error) {
	mode := req.State.Mode
	history, err := r.Store.ListMessages(ctx, req.State.ID, mode, historyLimit)
	if err != nil {
		return "", fmt.Errorf("load history: %w", err)
	}
	if err := r.Store.AppendMessage(ctx, req.State.ID, mode, domain.RoleUser, req.Update.Text); err != nil {
		return "", fmt.Errorf("store user message: %w", err)
	}

	turn := append(toLLMHistory(history), yandexgpt.Message{Role: yandexgpt.RoleUser, Text: req.Update.Text})
	answer, err := r.LLM.Complete(ctx, system, turn)
	if err != nil {
		return "", err
	}

	if err := r.Store.AppendMessage(ctx, req.State.ID, mode, domain.RoleAssistant, answer); err != nil {
		return "", fmt.Errorf("store assistant message: %w", err)
	}
	return answer, nil
}

func toLLMHistory(messages []domain.Message) []yandexgpt.Message {
	out := make([]yandexgpt.Message, 0, len(messages))
	for _, m := range messages {
		role := yandexgpt.RoleUser
		if m.Role == domain.RoleAssistant {
			role = yandexgpt.RoleAssistant
		}
		out = append(out, yandexgpt.Message{Role: role, Text: m.Text})
	}
	return out
}

// extractBlock removes the <tag>json</tag> block from an answer and decodes it into out.
// found is false when the answer has no block. A block with invalid JSON is reported as an error.
func extractBlock(answer, tag string, out any) (visible string, found bool, err error) {
	re := blockPatterns[tag]
	m := re.FindStringSubmatchIndex(answer)
	if m == nil {
		return strings.TrimSpace(answer), false, nil
	}

	payload := strings.TrimSpace(answer[m[2]:m[3]])
	visible = strings.TrimSpace(answer[:m[0]] + answer[m[1]:])
	if err := json.Unmarshal([]byte(payload), out); err != nil {
		return visible, true, fmt.Errorf("decode <%s> block: %w", tag, err)
	}
	return visible, true, nil
}
