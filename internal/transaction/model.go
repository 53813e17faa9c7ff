package transaction

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeIncome  Type = "income"
	TypeExpense Type = "expense"
)

func (t Type) Valid() bool {
	return t == TypeIncome || t == TypeExpense
}

// Transaction is one income or expense entry of a user.
type Transaction struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"-"`
	Description string    `json:"description"`
	Amount      Money     `json:"amount"`
	Category    string    `json:"category"`
	Type        Type      `json:"type"`
	Date        Date      `json:"date"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Input carries the user supplied fields for create and update.
type Input struct {
	Description string `json:"description"`
	Amount      Money  `json:"amount"`
	Category    string `json:"category"`
	Type        Type   `json:"type"`
	Date        Date   `json:"date"`
}

// Filter narrows list and summary queries. Zero values match everything.
type Filter struct {
	Type     Type
	Category string
	From     Date
	To       Date
}

// Summary totals a user's transactions.
type Summary struct {
	Income     Money             `json:"income"`
	Expense    Money             `json:"expense"`
	Balance    Money             `json:"balance"`
	ByCategory []CategorySummary `json:"by_category"`
}

type CategorySummary struct {
	Category string `json:"category"`
	Type     Type   `json:"type"`
	Total    Money  `json:"total"`
}

// Money is an amount in cents. In JSON it is a plain number with at most
// two fraction digits.
type Money int64

var errInvalidAmount = errors.New("amount must be a number with at most two decimal places")

func (m Money) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	// Accept "12.50" as well as 12.50.
	if len(data) > 1 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return errInvalidAmount
		}
		data = []byte(s)
	}

	parsed, err := ParseMoney(string(data))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ParseMoney parses a decimal string such as "12", "12.5" or "-3.75".
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errInvalidAmount
	}

	negative := false
	if s[0] == '-' {
		negative = true
		s = s[1:]
	}

	whole, frac, hasFrac := strings.Cut(s, ".")
	if whole == "" || (hasFrac && (frac == "" || len(frac) > 2)) {
		return 0, errInvalidAmount
	}
	for _, part := range []string{whole, frac} {
		for _, c := range part {
			if c < '0' || c > '9' {
				return 0, errInvalidAmount
			}
		}
	}

	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || units > (1<<62)/100 {
		return 0, errInvalidAmount
	}

	var cents int64
	if hasFrac {
		if len(frac) == 1 {
			frac += "0"
		}
		cents, _ = strconv.ParseInt(frac, 10, 64)
	}

	total := units*100 + cents
	if negative {
		total = -total
	}
	return Money(total), nil
}

const dateLayout = "2006-01-02"

// Date is a calendar date serialized as YYYY-MM-DD. It is always UTC
// midnight.
type Date struct {
	time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("date must be formatted as YYYY-MM-DD")
	}
	return Date{t}, nil
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("date must be a string")
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
