package venue

import (
	"encoding/json"
	"strconv"
)

// flexFloat unmarshals a JSON number or numeric string into a float64, the
// shape several venue endpoints use interchangeably for price/value fields.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	var asNum float64
	if err := json.Unmarshal(b, &asNum); err == nil {
		*f = flexFloat(asNum)
		return nil
	}
	var asStr string
	if err := json.Unmarshal(b, &asStr); err != nil {
		return err
	}
	v, err := strconv.ParseFloat(asStr, 64)
	if err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}

// rawPosition is the wire shape of one GET /positions element.
type rawPosition struct {
	TokenID   string    `json:"tokenId"`
	MarketID  string    `json:"marketId"`
	Quantity  flexFloat `json:"quantity"`
	AvgPrice  flexFloat `json:"avgPrice"`
	CurPrice  *flexFloat `json:"curPrice"`
	Title     string    `json:"title"`
	Outcome   string    `json:"outcome"`
}

// rawActivity is the wire shape of one GET /activity element.
type rawActivity struct {
	Type       string    `json:"type"`
	TxHash     string    `json:"txHash"`
	TokenID    string    `json:"tokenId"`
	MarketID   string    `json:"marketId"`
	Side       string    `json:"side"`
	Size       flexFloat `json:"size"`
	Price      flexFloat `json:"price"`
	TimestampS int64     `json:"timestamp"`
	Title      string    `json:"title"`
	Outcome    string    `json:"outcome"`
}

// rawValue captures GET /value's object-or-array-of-object ambiguity: the
// venue returns a bare {"value": ...} for a single user or wraps it in a
// one-element array depending on endpoint version.
type rawValue struct {
	Value flexFloat `json:"value"`
}

func parseValueResponse(body []byte) (float64, error) {
	var obj rawValue
	if err := json.Unmarshal(body, &obj); err == nil && obj.Value != 0 {
		return float64(obj.Value), nil
	}
	var arr []rawValue
	if err := json.Unmarshal(body, &arr); err == nil && len(arr) > 0 {
		return float64(arr[0].Value), nil
	}
	// Fall back to a strict single-object decode so a legitimate zero value
	// doesn't get misreported as a parse failure above.
	var strict rawValue
	if err := json.Unmarshal(body, &strict); err != nil {
		return 0, err
	}
	return float64(strict.Value), nil
}

type rawPriceResp struct {
	Price flexFloat `json:"price"`
}

type rawMidpointResp struct {
	Mid flexFloat `json:"mid"`
}

type rawSpreadResp struct {
	Spread flexFloat `json:"spread"`
}

type rawLevel struct {
	Price flexFloat `json:"price"`
	Size  flexFloat `json:"size"`
}

type rawBookResp struct {
	Bids []rawLevel `json:"bids"`
	Asks []rawLevel `json:"asks"`
}

// BookLevel is one price/size level, parsed from the wire's string pair.
type BookLevel struct {
	Price float64
	Size  float64
}

// Book is a parsed order book.
type Book struct {
	Bids []BookLevel
	Asks []BookLevel
}

func (r rawBookResp) toBook() Book {
	b := Book{
		Bids: make([]BookLevel, 0, len(r.Bids)),
		Asks: make([]BookLevel, 0, len(r.Asks)),
	}
	for _, l := range r.Bids {
		b.Bids = append(b.Bids, BookLevel{Price: float64(l.Price), Size: float64(l.Size)})
	}
	for _, l := range r.Asks {
		b.Asks = append(b.Asks, BookLevel{Price: float64(l.Price), Size: float64(l.Size)})
	}
	return b
}
