package client

import (
	"context"
	"fmt"

	"github.com/jmerrifield20/riskposture/internal/model"
)

const customersPath = "/customers/customers"

type customer struct {
	Key    string        `json:"key"`
	Name   string        `json:"name"`
	Assets []model.Asset `json:"assets"`
}

// CustomerAssets returns the raw asset list of customerID. The endpoint
// returns every tenant the key can see; ErrUnknownCustomer is returned when
// customerID is not among them.
func (c *Client) CustomerAssets(ctx context.Context, customerID string) ([]model.Asset, error) {
	var customers []customer
	if err := c.getJSON(ctx, customersPath, nil, &customers); err != nil {
		return nil, err
	}
	for _, cu := range customers {
		if cu.Key == customerID {
			return cu.Assets, nil
		}
	}
	return nil, fmt.Errorf("%s: %w", customerID, ErrUnknownCustomer)
}
