package amqp

import (
	"encoding/json"
	"time"
)

// BalanceChangedMessage announces a ledger mutation. It carries only the
// account id and resulting balance; consumers fetch anything else from
// the API.
type BalanceChangedMessage struct {
	AccountID    int64     `json:"account_id"`
	DeltaCents   int64     `json:"delta_cents"`
	BalanceCents int64     `json:"balance_cents"`
	Note         string    `json:"note,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

func NewBalanceChangedMessage(accountID, deltaCents, balanceCents int64, note string) *BalanceChangedMessage {
	return &BalanceChangedMessage{
		AccountID:    accountID,
		DeltaCents:   deltaCents,
		BalanceCents: balanceCents,
		Note:         note,
		Timestamp:    time.Now(),
	}
}

func (m *BalanceChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func BalanceChangedMessageFromJSON(data []byte) (*BalanceChangedMessage, error) {
	var msg BalanceChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
