package domain

import (
	"errors"
	"time"
)

var (
	// ErrEmptySearchResult is returned when a session would hold no offers.
	ErrEmptySearchResult = errors.New("search returned no offers")
	// ErrNoMoreOffers is returned when the cursor is on the last offer.
	ErrNoMoreOffers = errors.New("no_more_offers")
	// ErrNoMoreEstates is returned when no estate follows the current one.
	ErrNoMoreEstates = errors.New("no_more_estates")
)

// OfferKeyboard names the navigation keyboard rendered under an offer.
type OfferKeyboard string

const (
	// KeyboardMiddleOffer offers "next offer", "next estate" and "like".
	KeyboardMiddleOffer OfferKeyboard = "middle_offer"
	// KeyboardLastEstate drops "next estate": no estate follows, or it starts right after the current offer.
	KeyboardLastEstate OfferKeyboard = "last_estate"
	// KeyboardLastOffer keeps only "like": the cursor is on the final offer.
	KeyboardLastOffer OfferKeyboard = "last_offer"
)

// SearchSession is the cursor over a ranked list of offers for one chat.
type SearchSession struct {
	ID                 int64
	StateID            int64
	Offers             []Offer
	CurrentEstateIndex int
	CurrentOfferIndex  int
	SearchParams       map[string]any
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// NewSearchSession starts a session positioned on the first offer.
func NewSearchSession(stateID int64, offers []Offer, params map[string]any) (SearchSession, error) {
	if len(offers) == 0 {
		return SearchSession{}, ErrEmptySearchResult
	}
	if params == nil {
		params = map[string]any{}
	}
	normalized := NormalizeEstateRanks(offers)
	return SearchSession{
		StateID:            stateID,
		Offers:             normalized,
		CurrentEstateIndex: normalized[0].Base().EstateID,
		CurrentOfferIndex:  0,
		SearchParams:       params,
	}, nil
}

// Current returns the offer under the cursor.
func (s SearchSession) Current() Offer {
	return s.Offers[s.CurrentOfferIndex]
}

// NextOffer advances the cursor by one offer.
func (s *SearchSession) NextOffer() (Offer, error) {
	next := s.CurrentOfferIndex + 1
	if next >= len(s.Offers) {
		return nil, ErrNoMoreOffers
	}
	s.moveTo(next)
	return s.Current(), nil
}

// NextEstate moves to the first offer of the next estate.
func (s *SearchSession) NextEstate() (Offer, error) {
	next := s.nextEstateIndex()
	if next < 0 {
		return nil, ErrNoMoreEstates
	}
	s.moveTo(next)
	return s.Current(), nil
}

// Keyboard returns the navigation keyboard for the current position.
func (s SearchSession) Keyboard() OfferKeyboard {
	if s.CurrentOfferIndex >= len(s.Offers)-1 {
		return KeyboardLastOffer
	}
	next := s.nextEstateIndex()
	if next < 0 || next == s.CurrentOfferIndex+1 {
		return KeyboardLastEstate
	}
	return KeyboardMiddleOffer
}

// IsCurrent reports whether offerID is the offer under the cursor.
// Buttons of earlier messages carry stale ids.
func (s SearchSession) IsCurrent(offerID string) bool {
	return len(s.Offers) > 0 && s.Current().Base().ID == offerID
}

func (s SearchSession) nextEstateIndex() int {
	current := s.Current().Base().EstateID
	for i := s.CurrentOfferIndex + 1; i < len(s.Offers); i++ {
		if s.Offers[i].Base().EstateID > current {
			return i
		}
	}
	return -1
}

func (s *SearchSession) moveTo(index int) {
	s.CurrentOfferIndex = index
	s.CurrentEstateIndex = s.Offers[index].Base().EstateID
}
