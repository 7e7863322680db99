package ibkr

import (
	"strconv"
	"strings"
)

// Wire types for the Client Portal REST API. Field tags follow the gateway's
// JSON; numeric market-data fields arrive as strings with occasional
// indicator prefixes ("C" close, "H" halted).

type authStatus struct {
	Authenticated bool `json:"authenticated"`
	Connected     bool `json:"connected"`
	Competing     bool `json:"competing"`
}

type secdefResult struct {
	ConID       jsonInt `json:"conid"`
	Symbol      string  `json:"symbol"`
	CompanyName string  `json:"companyName"`
	SecType     string  `json:"secType"`
	Description string  `json:"description"`
}

// Snapshot field IDs: 31 last, 84 bid, 86 ask, 7741 prior close.
const snapshotFields = "31,84,86,7741"

type snapshotRow struct {
	ConID jsonInt `json:"conid"`
	Last  string  `json:"31"`
	Bid   string  `json:"84"`
	Ask   string  `json:"86"`
	Close string  `json:"7741"`
}

type orderTicket struct {
	AcctID       string  `json:"acctId"`
	ConID        int64   `json:"conid"`
	ClientOID    string  `json:"cOID"`
	OrderType    string  `json:"orderType"`
	Side         string  `json:"side"`
	Quantity     float64 `json:"quantity"`
	Price        float64 `json:"price,omitempty"`
	AuxPrice     float64 `json:"auxPrice,omitempty"`
	TrailingAmt  float64 `json:"trailingAmt,omitempty"`
	TrailingType string  `json:"trailingType,omitempty"`
	TIF          string  `json:"tif"`
	OutsideRTH   bool    `json:"outsideRTH"`
}

// orderReply is one element of the submit response. The gateway either
// acknowledges with an order id or asks for confirmation of a warning
// message via /iserver/reply/{id}.
type orderReply struct {
	ID          string   `json:"id"`
	Messages    []string `json:"message"`
	OrderID     string   `json:"order_id"`
	OrderStatus string   `json:"order_status"`
}

type liveOrder struct {
	OrderID      jsonInt `json:"orderId"`
	Ticker       string  `json:"ticker"`
	OrderType    string  `json:"origOrderType"`
	Side         string  `json:"side"`
	Status       string  `json:"status"`
	Quantity     float64 `json:"totalSize"`
	Price        float64 `json:"price"`
	TrailingAmt  float64 `json:"trailingAmount"`
	TrailingType string  `json:"trailingType"`
}

type liveOrdersResponse struct {
	Orders []liveOrder `json:"orders"`
}

type portfolioPosition struct {
	ConID      jsonInt `json:"conid"`
	Ticker     string  `json:"contractDesc"`
	AssetClass string  `json:"assetClass"`
	Position   float64 `json:"position"`
	AvgCost    float64 `json:"avgCost"`
}

// jsonInt tolerates conids arriving as either number or string.
type jsonInt int64

func (j *jsonInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*j = 0
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return err
	}
	*j = jsonInt(v)
	return nil
}

// parsePrice strips the gateway's indicator prefixes and parses the value.
// Unparseable or missing fields come back as 0.
func parsePrice(raw string) float64 {
	s := strings.TrimSpace(raw)
	s = strings.TrimLeft(s, "CH")
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
