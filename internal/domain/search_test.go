package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sale(id string, estate int) Offer {
	return SaleOffer{OfferBase: OfferBase{ID: id, EstateID: estate}, Price: 10_000_000, PricePerMeter: 250_000}
}

func TestSearchSessionScenario(t *testing.T) {
	session, err := NewSearchSession(1, []Offer{sale("A", 0), sale("B", 0), sale("C", 1)}, nil)
	require.NoError(t, err)

	assert.Equal(t, "A", session.Current().Base().ID)
	assert.Equal(t, KeyboardMiddleOffer, session.Keyboard())

	offer, err := session.NextOffer()
	require.NoError(t, err)
	assert.Equal(t, "B", offer.Base().ID)
	assert.Equal(t, KeyboardLastEstate, session.Keyboard())

	offer, err = session.NextEstate()
	require.NoError(t, err)
	assert.Equal(t, "C", offer.Base().ID)
	assert.Equal(t, 1, session.CurrentEstateIndex)
	assert.Equal(t, KeyboardLastOffer, session.Keyboard())

	_, err = session.NextOffer()
	assert.ErrorIs(t, err, ErrNoMoreOffers)
	_, err = session.NextEstate()
	assert.ErrorIs(t, err, ErrNoMoreEstates)
}

func TestNextEstateSkipsRemainingOffers(t *testing.T) {
	session, err := NewSearchSession(1, []Offer{sale("A", 0), sale("B", 0), sale("C", 0), sale("D", 1), sale("E", 2)}, nil)
	require.NoError(t, err)

	offer, err := session.NextEstate()
	require.NoError(t, err)
	assert.Equal(t, "D", offer.Base().ID)
	assert.Equal(t, 3, session.CurrentOfferIndex)
	assert.Equal(t, KeyboardLastEstate, session.Keyboard())
}

func TestLastEstateWithSeveralOffers(t *testing.T) {
	session, err := NewSearchSession(1, []Offer{sale("A", 0), sale("B", 0)}, nil)
	require.NoError(t, err)

	assert.Equal(t, KeyboardLastEstate, session.Keyboard())
	_, err = session.NextEstate()
	assert.ErrorIs(t, err, ErrNoMoreEstates)
	assert.Equal(t, 0, session.CurrentOfferIndex)
}

func TestNewSearchSessionRejectsEmpty(t *testing.T) {
	_, err := NewSearchSession(1, nil, nil)
	assert.ErrorIs(t, err, ErrEmptySearchResult)
}

func TestNormalizeEstateRanksIsMonotonic(t *testing.T) {
	offers := NormalizeEstateRanks([]Offer{sale("A", 900), sale("B", 17), sale("C", 900), sale("D", 42)})

	ids := make([]string, len(offers))
	for i, o := range offers {
		ids[i] = o.Base().ID
		if i > 0 {
			assert.GreaterOrEqual(t, o.Base().EstateID, offers[i-1].Base().EstateID)
		}
	}
	assert.Equal(t, []string{"A", "C", "B", "D"}, ids)
	assert.Equal(t, 2, offers[3].Base().EstateID)
}

func TestIsCurrent(t *testing.T) {
	session, err := NewSearchSession(1, []Offer{sale("A", 0), sale("B", 1)}, nil)
	require.NoError(t, err)

	assert.True(t, session.IsCurrent("A"))
	assert.False(t, session.IsCurrent("B"))
}
