package storage

import (
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"
)

func decimalArg(d decimal.NullDecimal) interface{} {
	if !d.Valid {
		return nil
	}
	return d.Decimal.String()
}

func parseNullDecimal(field string, s sql.NullString) (decimal.NullDecimal, error) {
	if !s.Valid || s.String == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(s.String)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("parse %s: %w", field, err)
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}, nil
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullableStringPtr(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

// decimalFields parses several nullable numeric columns in order.
type decimalFields []struct {
	name string
	src  sql.NullString
	dst  *decimal.NullDecimal
}

func (f decimalFields) parse() error {
	for _, field := range f {
		v, err := parseNullDecimal(field.name, field.src)
		if err != nil {
			return err
		}
		*field.dst = v
	}
	return nil
}
