package utils

import gonanoid "github.com/matoous/go-nanoid/v2"

// no 0/O or 1/I so codes survive being read over the phone
const referenceAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"

// ReferenceSize is the length of public request reference codes.
const ReferenceSize = 10

// NewReference returns a short public code for a blood request.
func NewReference() (string, error) {
	return gonanoid.Generate(referenceAlphabet, ReferenceSize)
}
