package estate

import (
	"context"
	"encoding/json"

	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/internal/domain"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/platform/apperr"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/platform/config"
)

// Searcher finds offers matching the collected parameters.
type Searcher interface {
	Search(ctx context.Context, params map[string]any) ([]domain.Offer, error)
}

// SearchClient calls the estate search service.
type SearchClient struct {
	base baseClient
}

var _ Searcher = (*SearchClient)(nil)

// NewSearchClient creates the search client.
func NewSearchClient(cfg config.EstateConfig) *SearchClient {
	return &SearchClient{base: newBaseClient("estate search", cfg.GetSearchServiceURL(), cfg)}
}

type searchRequest struct {
	Params map[string]any `json:"params"`
}

type searchResponse struct {
	Offers json.RawMessage `json:"offers"`
}

// Search returns the offers ordered by estate, with estate ids normalised to 0-based ranks.
func (c *SearchClient) Search(ctx context.Context, params map[string]any) ([]domain.Offer, error) {
	var resp searchResponse
	if err := c.base.postJSON(ctx, "/estate/search", searchRequest{Params: params}, &resp); err != nil {
		return nil, apperr.External("estate search", err)
	}
	if len(resp.Offers) == 0 || string(resp.Offers) == "null" {
		return nil, nil
	}

	offers, err := domain.DecodeOffers(resp.Offers)
	if err != nil {
		return nil, apperr.External("decode offers", err)
	}
	return domain.NormalizeEstateRanks(offers), nil
}
