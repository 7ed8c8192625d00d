package enums

import "fmt"

// RecordType discriminates which pending record a checkout session belongs to.
type RecordType string

const (
	RecordTypeMembership RecordType = "membership"
	RecordTypeDonation   RecordType = "donation"
	RecordTypeOrder      RecordType = "order"
)

var validRecordTypes = []RecordType{
	RecordTypeMembership,
	RecordTypeDonation,
	RecordTypeOrder,
}

// String implements fmt.Stringer.
func (r RecordType) String() string {
	return string(r)
}

// IsValid reports whether the value is a known RecordType.
func (r RecordType) IsValid() bool {
	for _, candidate := range validRecordTypes {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseRecordType converts raw input into a RecordType.
func ParseRecordType(value string) (RecordType, error) {
	for _, candidate := range validRecordTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid record type %q", value)
}
