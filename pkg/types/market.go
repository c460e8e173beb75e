package types

import (
	"encoding/json"
	"time"
)

// Market represents a Polymarket market from the Gamma API.
// For the 15-minute up/down series the question encodes the asset and the
// window, e.g. "Bitcoin Up or Down - June 2, 3:15PM ET".
type Market struct {
	ID          string    `json:"id"`
	Question    string    `json:"question"`
	Slug        string    `json:"slug"`
	Closed      bool      `json:"closed"`
	Active      bool      `json:"active"`
	Tokens      []Token   `json:"-"` // Populated from outcomes + clobTokenIds
	CreatedAt   time.Time `json:"createdAt"`
	EndDate     time.Time `json:"endDate"`
	Description string    `json:"description"`
	Outcomes    string    `json:"outcomes"`     // JSON string: "[\"Up\", \"Down\"]" or "[\"Yes\", \"No\"]"
	ClobTokens  string    `json:"clobTokenIds"` // JSON string: "[\"token1\", \"token2\"]"
}

// UnmarshalJSON custom unmarshaler to parse outcomes and clobTokenIds into Tokens.
func (m *Market) UnmarshalJSON(data []byte) error {
	type Alias Market
	aux := &struct {
		*Alias
	}{
		Alias: (*Alias)(m),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if m.Outcomes != "" && m.ClobTokens != "" {
		var outcomes []string
		var tokenIDs []string

		if err := json.Unmarshal([]byte(m.Outcomes), &outcomes); err == nil {
			if err := json.Unmarshal([]byte(m.ClobTokens), &tokenIDs); err == nil {
				m.Tokens = make([]Token, 0, len(outcomes))
				for i, outcome := range outcomes {
					if i < len(tokenIDs) {
						m.Tokens = append(m.Tokens, Token{
							TokenID: tokenIDs[i],
							Outcome: outcome,
						})
					}
				}
			}
		}
	}

	return nil
}

// Token represents a market outcome token.
type Token struct {
	TokenID string  `json:"token_id"`
	Outcome string  `json:"outcome"`
	Price   float64 `json:"price,omitempty"`
}

// GetTokenByOutcome returns the token for a specific outcome.
// The up/down series labels outcomes "Up"/"Down"; regular binary markets use
// "Yes"/"No". Both map onto the YES/NO sides used internally.
func (m *Market) GetTokenByOutcome(outcome string) *Token {
	for i := range m.Tokens {
		tokenOutcome := m.Tokens[i].Outcome
		if tokenOutcome == outcome ||
			(outcome == "YES" && (tokenOutcome == "Yes" || tokenOutcome == "Up")) ||
			(outcome == "NO" && (tokenOutcome == "No" || tokenOutcome == "Down")) {
			return &m.Tokens[i]
		}
	}
	return nil
}

// YesToken and NoToken are shorthands for the two sides of a binary market.
func (m *Market) YesToken() *Token { return m.GetTokenByOutcome("YES") }

// NoToken returns the NO (or Down) side token.
func (m *Market) NoToken() *Token { return m.GetTokenByOutcome("NO") }

// TimeRemaining returns the time until market resolution. Negative once the
// window has closed.
func (m *Market) TimeRemaining(now time.Time) time.Duration {
	return m.EndDate.Sub(now)
}

// MarketSubscription tracks feed subscription state for a market.
type MarketSubscription struct {
	MarketID     string
	MarketSlug   string
	Question     string
	EndDate      time.Time
	TokenIDYes   string
	TokenIDNo    string
	SubscribedAt time.Time
}

// MarketsResponse represents a page of markets from the Gamma API.
type MarketsResponse struct {
	Data     []Market `json:"data"`
	Count    int      `json:"count"`
	NextPage string   `json:"next_page,omitempty"`
	Limit    int      `json:"limit"`
	Offset   int      `json:"offset"`
}
