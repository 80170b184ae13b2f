package types

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Compile-time interface assertions.
// These ensure the JSONB column types implement both sql.Scanner and
// driver.Valuer, catching any method signature drift at compile time.
var (
	_ sql.Scanner   = (*AddonFlags)(nil)
	_ driver.Valuer = AddonFlags(nil)
	_ sql.Scanner   = (*BenefitOverrides)(nil)
	_ driver.Valuer = BenefitOverrides(nil)
)

// scanJSONB scans a JSONB database value into a Go pointer. It handles nil
// values, []byte, and string representations from different drivers.
func scanJSONB(dest interface{}, value interface{}) error {
	if value == nil {
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("jsonb: unsupported scan type %T", value)
	}
	return json.Unmarshal(data, dest)
}

// Scan implements the sql.Scanner interface for reading JSONB from the database.
func (f *AddonFlags) Scan(value interface{}) error {
	if value == nil {
		*f = nil
		return nil
	}
	return scanJSONB(f, value)
}

// Value implements the driver.Valuer interface for writing JSONB to the database.
func (f AddonFlags) Value() (driver.Value, error) {
	if f == nil {
		return nil, nil
	}
	return json.Marshal(f)
}

// Scan implements the sql.Scanner interface for reading JSONB from the database.
func (o *BenefitOverrides) Scan(value interface{}) error {
	if value == nil {
		*o = nil
		return nil
	}
	return scanJSONB(o, value)
}

// Value implements the driver.Valuer interface for writing JSONB to the database.
func (o BenefitOverrides) Value() (driver.Value, error) {
	if o == nil {
		return nil, nil
	}
	return json.Marshal(o)
}
