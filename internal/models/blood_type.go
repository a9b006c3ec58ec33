package models

import "strings"

// BloodType is one of the eight ABO/Rh groups.
type BloodType string

const (
	APositive  BloodType = "A+"
	ANegative  BloodType = "A-"
	BPositive  BloodType = "B+"
	BNegative  BloodType = "B-"
	ABPositive BloodType = "AB+"
	ABNegative BloodType = "AB-"
	OPositive  BloodType = "O+"
	ONegative  BloodType = "O-"
)

// BloodTypes lists every accepted value in display order.
var BloodTypes = []BloodType{APositive, ANegative, BPositive, BNegative, ABPositive, ABNegative, OPositive, ONegative}

// Valid reports whether t is one of the accepted groups.
func (t BloodType) Valid() bool {
	for _, bt := range BloodTypes {
		if t == bt {
			return true
		}
	}
	return false
}

// ParseBloodType normalises user input. A '+' that arrived unescaped in a
// query string decodes to a space, so trailing spaces are read as '+'.
func ParseBloodType(s string) (BloodType, bool) {
	s = strings.ToUpper(strings.TrimLeft(s, " "))
	s = strings.TrimSpace(strings.ReplaceAll(s, " ", "+"))
	t := BloodType(s)
	return t, t.Valid()
}

// red-cell donor groups a recipient can receive from
var compatibleDonors = map[BloodType][]BloodType{
	ONegative:  {ONegative},
	OPositive:  {OPositive, ONegative},
	ANegative:  {ANegative, ONegative},
	APositive:  {APositive, ANegative, OPositive, ONegative},
	BNegative:  {BNegative, ONegative},
	BPositive:  {BPositive, BNegative, OPositive, ONegative},
	ABNegative: {ABNegative, ANegative, BNegative, ONegative},
	ABPositive: BloodTypes,
}

// CompatibleDonorTypes returns the donor groups whose red cells a patient
// of the given group can receive. The recipient's own group comes first.
func CompatibleDonorTypes(recipient BloodType) []BloodType {
	if !recipient.Valid() {
		return nil
	}
	types := compatibleDonors[recipient]
	out := make([]BloodType, 0, len(types))
	out = append(out, recipient)
	for _, t := range types {
		if t != recipient {
			out = append(out, t)
		}
	}
	return out
}
