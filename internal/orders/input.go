package orders

import (
	"slices"
	"strings"

	"github.com/chrischeks/order-management-API/internal/config"
	"github.com/chrischeks/order-management-API/internal/domain"
	"github.com/chrischeks/order-management-API/internal/validation"
)

// OrderInput is the body accepted by order creation.
type OrderInput struct {
	ProductName   string `json:"productName" validate:"required,productname"`
	ProductType   string `json:"productType" validate:"required,producttype"`
	FirstName     string `json:"firstName" validate:"required,min=3,max=100"`
	LastName      string `json:"lastName" validate:"required,min=3,max=100"`
	PhoneNumber   string `json:"phoneNumber" validate:"required,numeric,min=3,max=14"`
	Email         string `json:"email" validate:"required,email,max=100"`
	Address       string `json:"address" validate:"required,min=3,max=1000"`
	NumberOfItems int    `json:"numberOfItems" validate:"required,gt=0"`
	State         string `json:"state" validate:"required,min=3,max=50"`
	City          string `json:"city" validate:"required,min=3,max=50"`
	UserToken     string `json:"userToken,omitempty" validate:"-"`

	// decodeErrs are JSON type mismatches found while reading the body.
	decodeErrs validation.Errors
}

// UpdateInput is the body accepted by order updates.
type UpdateInput struct {
	OrderInput
	Status domain.OrderStatus `json:"status" validate:"required,orderstatus"`
}

// NewValidator returns a validator that knows the configured catalog.
func NewValidator(productNames []string, pricing config.Pricing) (*validation.Validator, error) {
	v := validation.New()

	productTypes := make([]string, 0, len(pricing))
	for t := range pricing {
		productTypes = append(productTypes, t)
	}
	slices.Sort(productTypes)

	statuses := make([]string, 0, len(domain.OrderStatuses))
	for _, s := range domain.OrderStatuses {
		statuses = append(statuses, string(s))
	}

	rules := []struct {
		tag     string
		allowed []string
	}{
		{"productname", productNames},
		{"producttype", productTypes},
		{"orderstatus", statuses},
	}
	for _, rule := range rules {
		allowed := rule.allowed
		message := enumMessage(rule.tag, allowed)
		if err := v.RegisterEnum(rule.tag, message, func(s string) bool {
			return slices.Contains(allowed, s)
		}); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func enumMessage(tag string, allowed []string) string {
	field := map[string]string{
		"productname": "productName",
		"producttype": "productType",
		"orderstatus": "status",
	}[tag]
	return field + " must be one of the following values: " + strings.Join(allowed, ", ")
}
