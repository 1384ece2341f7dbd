package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Kind  string `json:"kind" validate:"required,kind"`
	Name  string `json:"name" validate:"min=3,max=10"`
	Phone string `json:"phoneNumber" validate:"min=3,max=14,numeric"`
	Email string `json:"email" validate:"email"`
	Count int    `json:"count" validate:"gt=0"`
}

func newValidator(t *testing.T) *Validator {
	t.Helper()
	v := New()
	require.NoError(t, v.RegisterEnum("kind", "kind should be valid", func(s string) bool {
		return s == "a" || s == "b"
	}))
	return v
}

func TestValidator_Valid(t *testing.T) {
	v := newValidator(t)
	errs := v.Struct(sample{Kind: "a", Name: "alice", Phone: "08012345678", Email: "a@b.co", Count: 1})
	assert.Nil(t, errs)
}

func TestValidator_CollectsEveryField(t *testing.T) {
	v := newValidator(t)
	errs := v.Struct(sample{Kind: "z", Name: "al", Phone: "08x", Email: "nope", Count: 0})
	require.Len(t, errs, 5)

	assert.Equal(t, "kind", errs[0].Property)
	assert.Equal(t, map[string]string{"isEnum": "kind should be valid"}, errs[0].Constraints)
	assert.Equal(t, "z", errs[0].Value)

	assert.Equal(t, "name", errs[1].Property)
	assert.Contains(t, errs[1].Constraints, "minLength")

	assert.Equal(t, "phoneNumber", errs[2].Property)
	assert.Contains(t, errs[2].Constraints, "isNumberString")

	assert.Equal(t, "email", errs[3].Property)
	assert.Contains(t, errs[3].Constraints, "isEmail")

	assert.Equal(t, "count", errs[4].Property)
	assert.Contains(t, errs[4].Constraints, "isPositive")
}

func TestValidator_RequiredBeforeEnum(t *testing.T) {
	v := newValidator(t)
	errs := v.Struct(sample{Name: "alice", Phone: "0801", Email: "a@b.co", Count: 2})
	require.Len(t, errs, 1)
	assert.Equal(t, map[string]string{"isNotEmpty": "kind should not be empty"}, errs[0].Constraints)
}

func TestErrors_Error(t *testing.T) {
	errs := Errors{{Property: "userToken", Constraints: map[string]string{"invalid": "userToken must be a valid token"}}}
	assert.Equal(t, "validation failed: userToken must be a valid token", errs.Error())
}
