package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Name  string `json:"name"`
	Phone string `json:"phoneNumber"`
	Count int    `json:"count"`
}

func TestDecodeJSON(t *testing.T) {
	t.Run("well typed", func(t *testing.T) {
		var p payload
		errs, err := DecodeJSON(strings.NewReader(`{"name":"ada","phoneNumber":"0801","count":2}`), &p)
		require.NoError(t, err)
		assert.Empty(t, errs)
		assert.Equal(t, payload{Name: "ada", Phone: "0801", Count: 2}, p)
	})

	t.Run("every type mismatch is collected", func(t *testing.T) {
		var p payload
		errs, err := DecodeJSON(strings.NewReader(`{"name":"ada","phoneNumber":8012345678,"count":"two"}`), &p)
		require.NoError(t, err)
		require.Len(t, errs, 2)

		assert.Equal(t, "count", errs[0].Property)
		assert.Contains(t, errs[0].Constraints, "isInt")
		assert.Equal(t, "phoneNumber", errs[1].Property)
		assert.Contains(t, errs[1].Constraints, "isString")
		assert.Equal(t, "ada", p.Name, "well typed fields are still decoded")
	})

	t.Run("syntax error", func(t *testing.T) {
		var p payload
		_, err := DecodeJSON(strings.NewReader(`{"name":`), &p)
		assert.ErrorIs(t, err, ErrMalformedBody)
	})

	t.Run("not an object", func(t *testing.T) {
		var p payload
		_, err := DecodeJSON(strings.NewReader(`[1,2]`), &p)
		assert.ErrorIs(t, err, ErrMalformedBody)
	})
}

func TestMerge(t *testing.T) {
	fields := Errors{
		{Property: "phoneNumber", Constraints: map[string]string{"isNotEmpty": "phoneNumber should not be empty"}},
		{Property: "productType", Constraints: map[string]string{"isEnum": "bad"}},
	}
	typeErrs := Errors{
		{Property: "phoneNumber", Constraints: map[string]string{"isString": "phoneNumber must be a string"}, Value: "number"},
		{Property: "userToken", Constraints: map[string]string{"isString": "userToken must be a string"}},
	}

	merged := Merge(fields, typeErrs)

	require.Len(t, merged, 3)
	assert.Equal(t, "phoneNumber", merged[0].Property)
	assert.Len(t, merged[0].Constraints, 2)
	assert.Equal(t, "number", merged[0].Value)
	assert.Equal(t, "productType", merged[1].Property)
	assert.Equal(t, "userToken", merged[2].Property)
	assert.Len(t, fields[0].Constraints, 1, "inputs are not modified")

	assert.Nil(t, Merge(nil, nil))
}
