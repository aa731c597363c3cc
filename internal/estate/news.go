package estate

import (
	"context"
	"net/url"

	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/platform/apperr"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/platform/config"
)

// NewsSource returns a digest of recent market news relevant to a question.
type NewsSource interface {
	Digest(ctx context.Context, question string) (string, error)
}

// NewsClient calls the news digest service.
type NewsClient struct {
	base baseClient
}

var _ NewsSource = (*NewsClient)(nil)

// NewNewsClient creates the news client.
func NewNewsClient(cfg config.EstateConfig) *NewsClient {
	return &NewsClient{base: newBaseClient("news", cfg.GetNewsServiceURL(), cfg)}
}

type digestResponse struct {
	Text string `json:"text"`
}

// Digest returns the news context for question.
func (c *NewsClient) Digest(ctx context.Context, question string) (string, error) {
	var resp digestResponse
	if err := c.base.getJSON(ctx, "/news/digest?q="+url.QueryEscape(question), &resp); err != nil {
		return "", apperr.External("news digest", err)
	}
	return resp.Text, nil
}
