package visitor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_ReportsJSONNames(t *testing.T) {
	err := Validate(OTPRequest{VisitorName: "Ravi", Purpose: "Family visit"})
	require.Error(t, err)
	var fe *FieldError
	require.ErrorAs(t, err, &fe)
	assert.ElementsMatch(t, []string{"studentId", "visitorPhone", "guardId"}, fe.Missing)
	assert.Empty(t, fe.Invalid)
}

func TestValidate_InvalidUrgency(t *testing.T) {
	err := Validate(OverrideRequest{
		GuardID: "g1", VisitorName: "Ravi", VisitorPhone: "9876543210",
		StudentID: "s1", Reason: "late train", Purpose: "drop off", Urgency: "critical",
	})
	var fe *FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, []string{"urgency"}, fe.Invalid)
}

func TestValidate_GroupVisitorsDive(t *testing.T) {
	err := Validate(OTPVerifyRequest{
		VisitorPhone: "9876543210", ProvidedOTP: "123456", GuardID: "g1",
		GroupVisitors: []GroupVisitor{{Name: ""}},
	})
	var fe *FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, []string{"name"}, fe.Missing)

	assert.NoError(t, Validate(OTPRequest{
		StudentID: "s1", VisitorName: "Ravi", VisitorPhone: "9876543210", GuardID: "g1", Purpose: "x",
	}))
}
