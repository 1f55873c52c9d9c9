package ledger

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
)

// centsFactor converts a dollar amount to the smallest currency unit.
var centsFactor = decimal.NewFromInt(100)

// StripeLedger implements Primary using Stripe invoicing: an invoice with a
// single rent line item, collected by send_invoice so Stripe emails the
// tenant a payment link itself.
type StripeLedger struct {
	api *client.API
}

// Compile-time check that StripeLedger implements Primary.
var _ Primary = (*StripeLedger)(nil)

// NewStripeLedger creates a primary-ledger client for one owner's API key.
func NewStripeLedger(apiKey string) *StripeLedger {
	api := &client.API{}
	api.Init(apiKey, nil)
	return &StripeLedger{api: api}
}

// stripePrimaryFactory satisfies PrimaryFactory.
func stripePrimaryFactory(apiKey string) Primary {
	return NewStripeLedger(apiKey)
}

// DefaultPrimaryFactory returns the production primary-ledger factory.
func DefaultPrimaryFactory() PrimaryFactory {
	return stripePrimaryFactory
}

// CreateCharge creates a draft invoice with one rent line item and returns
// the Stripe invoice ID.
func (s *StripeLedger) CreateCharge(ctx context.Context, params ChargeParams) (string, error) {
	if params.PayeeRef == "" {
		return "", &APIError{Provider: "stripe", Message: "missing payee reference"}
	}

	invParams := &stripe.InvoiceParams{
		Customer:         stripe.String(params.PayeeRef),
		CollectionMethod: stripe.String(string(stripe.InvoiceCollectionMethodSendInvoice)),
		DueDate:          stripe.Int64(params.DueDate.Unix()),
		AutoAdvance:      stripe.Bool(false),
		Description:      stripe.String(params.Description),
	}
	invParams.Context = ctx

	inv, err := s.api.Invoices.New(invParams)
	if err != nil {
		return "", wrapStripeErr(err, "failed to create invoice")
	}

	itemParams := &stripe.InvoiceItemParams{
		Customer:    stripe.String(params.PayeeRef),
		Invoice:     stripe.String(inv.ID),
		Currency:    stripe.String(string(stripe.CurrencyUSD)),
		Amount:      stripe.Int64(params.Amount.Mul(centsFactor).IntPart()),
		Description: stripe.String(params.Description),
	}
	itemParams.Context = ctx

	if _, err := s.api.InvoiceItems.New(itemParams); err != nil {
		return "", wrapStripeErr(err, "failed to add invoice line item")
	}

	return inv.ID, nil
}

// Send finalizes the invoice and has Stripe deliver it to the payee.
func (s *StripeLedger) Send(ctx context.Context, chargeRef string) error {
	finalizeParams := &stripe.InvoiceFinalizeInvoiceParams{}
	finalizeParams.Context = ctx
	if _, err := s.api.Invoices.FinalizeInvoice(chargeRef, finalizeParams); err != nil {
		return wrapStripeErr(err, "failed to finalize invoice")
	}

	sendParams := &stripe.InvoiceSendInvoiceParams{}
	sendParams.Context = ctx
	if _, err := s.api.Invoices.SendInvoice(chargeRef, sendParams); err != nil {
		return wrapStripeErr(err, "failed to send invoice")
	}

	return nil
}

func wrapStripeErr(err error, message string) error {
	var sErr *stripe.Error
	if errors.As(err, &sErr) {
		return &APIError{
			Provider:      "stripe",
			Message:       message,
			Code:          string(sErr.Code),
			StatusCode:    sErr.HTTPStatusCode,
			RequestID:     sErr.RequestID,
			OriginalError: err,
		}
	}
	return &APIError{Provider: "stripe", Message: message, OriginalError: err}
}
