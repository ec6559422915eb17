package middleware

import (
	"testing"

	"github.com/gin-gonic/gin/binding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type transitionBody struct {
	Status   string `json:"status" binding:"required,ipc_status"`
	Currency string `json:"currency" binding:"omitempty,len=3"`
}

func TestSetupValidator(t *testing.T) {
	SetupValidator()

	require.NoError(t, binding.Validator.ValidateStruct(&transitionBody{Status: "finance_review"}))

	err := binding.Validator.ValidateStruct(&transitionBody{Status: "DONE", Currency: "EURO"})
	require.Error(t, err)
	details := ValidationDetails(err)
	require.Len(t, details, 2)
	assert.Equal(t, FieldError{Field: "status", Message: "must be a known IPC status"}, details[0])
	assert.Equal(t, FieldError{Field: "currency", Message: "must be 3 characters long"}, details[1])

	assert.Nil(t, ValidationDetails(assert.AnError))
}
