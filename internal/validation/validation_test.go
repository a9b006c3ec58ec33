package validation

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signup struct {
	Name      string `json:"name" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Phone     string `json:"phone" validate:"required,phone10"`
	Password  string `json:"password" validate:"required,min=6"`
	BloodType string `json:"bloodType" validate:"required,bloodtype"`
	Urgency   string `json:"urgency" validate:"omitempty,oneof=normal urgent critical"`
}

func TestCheckValid(t *testing.T) {
	errs := Check(signup{
		Name:      "Ravi",
		Email:     "ravi@example.com",
		Phone:     "9876543210",
		Password:  "secret1",
		BloodType: "o+",
	})
	assert.NoError(t, errs.Err())
}

func TestCheckFieldKeyedMessages(t *testing.T) {
	errs := Check(signup{
		Email:     "nope",
		Phone:     "12345",
		Password:  "abc",
		BloodType: "Z+",
		Urgency:   "soon",
	})
	require.Error(t, errs.Err())

	assert.Equal(t, "Please add a name", errs.Fields["name"])
	assert.Equal(t, "Please add a valid email", errs.Fields["email"])
	assert.Equal(t, "Please add a valid 10-digit phone number", errs.Fields["phone"])
	assert.Equal(t, "Password must be at least 6 characters", errs.Fields["password"])
	assert.Contains(t, errs.Fields["bloodType"], "A+, A-")
	assert.Equal(t, "Urgency must be one of normal, urgent, critical", errs.Fields["urgency"])
	assert.Len(t, errs.Messages(), 6)
}

func TestErrorsAddAndUnwrap(t *testing.T) {
	errs := New()
	assert.NoError(t, errs.Err())

	errs.Add("location.address", "Please add an address")
	errs.Add("location.address", "ignored")
	assert.Equal(t, []string{"Please add an address"}, errs.Messages())

	wrapped := fmt.Errorf("register: %w", errs.Err())
	got, ok := AsErrors(wrapped)
	require.True(t, ok)
	assert.Same(t, errs, got)
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "Needs O- urgently", Sanitize("  <b>Needs</b> O- urgently<script>alert(1)</script> "))
}

func TestSanitizeDecodedMarkupIsStripped(t *testing.T) {
	assert.NotContains(t, Sanitize("&lt;script&gt;alert(1)&lt;/script&gt;"), "<script")
	assert.Equal(t, "bold", Sanitize("&lt;b&gt;bold&lt;/b&gt;"))
	assert.NotContains(t, Sanitize("&amp;lt;img src=x onerror=alert(1)&amp;gt;"), "<img")
}

func TestValidPhone(t *testing.T) {
	assert.True(t, ValidPhone("0123456789"))
	assert.False(t, ValidPhone("+919876543210"))
	assert.False(t, ValidPhone("98765 4321"))
}

func TestSanitizeKeepsPlainText(t *testing.T) {
	assert.Equal(t, "St. John's & Mary", Sanitize("St. John's & Mary"))
}
