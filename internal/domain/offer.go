package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// OfferKind discriminates sale and rent offers.
type OfferKind string

const (
	OfferKindSale OfferKind = "sale"
	OfferKindRent OfferKind = "rent"
)

// Offer is a snapshot of one listing returned by the search service.
// It is either a SaleOffer or a RentOffer.
type Offer interface {
	Base() OfferBase
	Kind() OfferKind
	isOffer()
}

// OfferBase holds the fields common to every offer.
type OfferBase struct {
	ID          string  `json:"id"`
	EstateID    int     `json:"estate_id"`
	EstateName  string  `json:"estate_name,omitempty"`
	Address     string  `json:"address,omitempty"`
	Metro       string  `json:"metro,omitempty"`
	Square      float64 `json:"square,omitempty"`
	Rooms       int     `json:"rooms,omitempty"`
	Floor       int     `json:"floor,omitempty"`
	Description string  `json:"description,omitempty"`
	Link        string  `json:"link,omitempty"`
}

// SaleOffer is a listing for purchase.
type SaleOffer struct {
	OfferBase
	Price         int64 `json:"price"`
	PricePerMeter int64 `json:"price_per_meter"`
}

// RentOffer is a listing for rent.
type RentOffer struct {
	OfferBase
	PricePerMonth int64 `json:"price_per_month"`
}

func (o SaleOffer) Base() OfferBase { return o.OfferBase }
func (o SaleOffer) Kind() OfferKind { return OfferKindSale }

func (SaleOffer) isOffer() {}

func (o RentOffer) Base() OfferBase { return o.OfferBase }
func (o RentOffer) Kind() OfferKind { return OfferKindRent }

func (RentOffer) isOffer() {}

// rawOffer accepts both the tagged storage format and the untagged search
// service format, where a sale is recognised by price_per_meter.
type rawOffer struct {
	Kind          OfferKind       `json:"kind"`
	ID            json.RawMessage `json:"id"`
	EstateID      int             `json:"estate_id"`
	EstateName    string          `json:"estate_name"`
	Address       string          `json:"address"`
	Metro         string          `json:"metro"`
	Square        float64         `json:"square"`
	Rooms         int             `json:"rooms"`
	Floor         int             `json:"floor"`
	Description   string          `json:"description"`
	Link          string          `json:"link"`
	Price         *float64        `json:"price"`
	PricePerMeter *float64        `json:"price_per_meter"`
	PricePerMonth *float64        `json:"price_per_month"`
}

// DecodeOffer parses one offer.
func DecodeOffer(data []byte) (Offer, error) {
	var raw rawOffer
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode offer: %w", err)
	}

	id, err := parseOfferID(raw.ID)
	if err != nil {
		return nil, err
	}

	base := OfferBase{
		ID:          id,
		EstateID:    raw.EstateID,
		EstateName:  raw.EstateName,
		Address:     raw.Address,
		Metro:       raw.Metro,
		Square:      raw.Square,
		Rooms:       raw.Rooms,
		Floor:       raw.Floor,
		Description: raw.Description,
		Link:        raw.Link,
	}

	kind := raw.Kind
	if kind == "" {
		kind = OfferKindRent
		if raw.PricePerMeter != nil {
			kind = OfferKindSale
		}
	}

	switch kind {
	case OfferKindSale:
		return SaleOffer{
			OfferBase:     base,
			Price:         int64Value(raw.Price),
			PricePerMeter: int64Value(raw.PricePerMeter),
		}, nil
	case OfferKindRent:
		price := raw.PricePerMonth
		if price == nil {
			price = raw.Price
		}
		return RentOffer{OfferBase: base, PricePerMonth: int64Value(price)}, nil
	default:
		return nil, fmt.Errorf("decode offer: unknown kind %q", kind)
	}
}

// EncodeOffer serialises an offer in the tagged storage format.
func EncodeOffer(o Offer) ([]byte, error) {
	switch v := o.(type) {
	case SaleOffer:
		return json.Marshal(struct {
			Kind OfferKind `json:"kind"`
			SaleOffer
		}{OfferKindSale, v})
	case RentOffer:
		return json.Marshal(struct {
			Kind OfferKind `json:"kind"`
			RentOffer
		}{OfferKindRent, v})
	default:
		return nil, fmt.Errorf("encode offer: unsupported type %T", o)
	}
}

// DecodeOffers parses a JSON array of offers.
func DecodeOffers(data []byte) ([]Offer, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode offers: %w", err)
	}
	offers := make([]Offer, 0, len(items))
	for _, item := range items {
		offer, err := DecodeOffer(item)
		if err != nil {
			return nil, err
		}
		offers = append(offers, offer)
	}
	return offers, nil
}

// NormalizeEstateRanks rewrites estate ids to 0-based ranks in order of first
// appearance and groups offers of the same estate together, keeping the
// service's ordering otherwise. The result is non-decreasing by estate id.
func NormalizeEstateRanks(offers []Offer) []Offer {
	ranks := make(map[int]int)
	for _, o := range offers {
		id := o.Base().EstateID
		if _, ok := ranks[id]; !ok {
			ranks[id] = len(ranks)
		}
	}

	out := make([]Offer, len(offers))
	for i, o := range offers {
		out[i] = withEstateID(o, ranks[o.Base().EstateID])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Base().EstateID < out[j].Base().EstateID
	})
	return out
}

func withEstateID(o Offer, estateID int) Offer {
	switch v := o.(type) {
	case SaleOffer:
		v.EstateID = estateID
		return v
	case RentOffer:
		v.EstateID = estateID
		return v
	default:
		return o
	}
}

func parseOfferID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", fmt.Errorf("decode offer: missing id")
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("decode offer id: %w", err)
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("decode offer id: %w", err)
	}
	if i, err := n.Int64(); err == nil {
		return strconv.FormatInt(i, 10), nil
	}
	return n.String(), nil
}

func int64Value(v *float64) int64 {
	if v == nil {
		return 0
	}
	return int64(*v)
}
