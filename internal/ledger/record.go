package ledger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/Dan9191/bank-sync/internal/models"
	"github.com/beevik/etree"
)

// ValidationError reports a statement record that cannot be turned into a transaction
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid record: %s: %s", e.Field, e.Reason)
}

// flexString accepts both JSON strings and numbers; providers are not
// consistent about mcc and currencyCode.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

type rawRecord struct {
	ID           string      `json:"id"`
	Time         *int64      `json:"time"`
	Description  string      `json:"description"`
	MCC          flexString  `json:"mcc"`
	Amount       *int64      `json:"amount"`
	CurrencyCode *flexString `json:"currencyCode"`
}

// ParseRecord decodes a single JSON statement record and checks its required fields
func ParseRecord(raw json.RawMessage) (models.Transaction, error) {
	var r rawRecord
	if err := json.Unmarshal(raw, &r); err != nil {
		return models.Transaction{}, &ValidationError{Field: "record", Reason: err.Error()}
	}
	if r.Time == nil || *r.Time <= 0 {
		return models.Transaction{}, &ValidationError{Field: "time", Reason: "missing or not positive"}
	}
	if r.Amount == nil {
		return models.Transaction{}, &ValidationError{Field: "amount", Reason: "missing"}
	}
	if *r.Amount == math.MinInt64 {
		return models.Transaction{}, &ValidationError{Field: "amount", Reason: "out of range"}
	}
	if r.CurrencyCode == nil || *r.CurrencyCode == "" {
		return models.Transaction{}, &ValidationError{Field: "currencyCode", Reason: "missing"}
	}
	currency, err := strconv.Atoi(string(*r.CurrencyCode))
	if err != nil {
		return models.Transaction{}, &ValidationError{Field: "currencyCode", Reason: "not numeric"}
	}

	return models.Transaction{
		ID:           r.ID,
		Time:         *r.Time,
		Description:  r.Description,
		MCC:          string(r.MCC),
		Amount:       *r.Amount,
		CurrencyCode: currency,
	}, nil
}

// ParseXMLRecord reads a statement record from an <item> element. Fields may be
// given as child elements or as attributes.
func ParseXMLRecord(el *etree.Element) (models.Transaction, error) {
	tx := models.Transaction{}

	timeStr, ok := xmlField(el, "time")
	if !ok {
		return tx, &ValidationError{Field: "time", Reason: "missing"}
	}
	ts, err := strconv.ParseInt(timeStr, 10, 64)
	if err != nil || ts <= 0 {
		return tx, &ValidationError{Field: "time", Reason: "missing or not positive"}
	}

	amountStr, ok := xmlField(el, "amount")
	if !ok {
		return tx, &ValidationError{Field: "amount", Reason: "missing"}
	}
	amount, err := strconv.ParseInt(amountStr, 10, 64)
	if err != nil {
		return tx, &ValidationError{Field: "amount", Reason: "not an integer"}
	}
	if amount == math.MinInt64 {
		return tx, &ValidationError{Field: "amount", Reason: "out of range"}
	}

	currencyStr, ok := xmlField(el, "currencyCode")
	if !ok {
		return tx, &ValidationError{Field: "currencyCode", Reason: "missing"}
	}
	currency, err := strconv.Atoi(currencyStr)
	if err != nil {
		return tx, &ValidationError{Field: "currencyCode", Reason: "not numeric"}
	}

	tx.Time = ts
	tx.Amount = amount
	tx.CurrencyCode = currency
	tx.ID, _ = xmlField(el, "id")
	tx.Description, _ = xmlField(el, "description")
	tx.MCC, _ = xmlField(el, "mcc")
	return tx, nil
}

func xmlField(el *etree.Element, name string) (string, bool) {
	if child := el.SelectElement(name); child != nil {
		v := strings.TrimSpace(child.Text())
		return v, v != ""
	}
	if attr := el.SelectAttr(name); attr != nil {
		v := strings.TrimSpace(attr.Value)
		return v, v != ""
	}
	return "", false
}
