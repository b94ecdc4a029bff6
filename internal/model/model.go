// Package model holds the calculator-validated return document handed to the
// EFILE core by the preparation front end. The core never computes tax; it
// receives line items and totals already resolved for the filing year and
// province.
package model

import (
	"fmt"
	"time"
)

// Cents is a monetary amount in cents. Wire fields require two-decimal
// formatting, so amounts are kept integral until serialization.
type Cents int64

// String renders the amount with exactly two decimal places.
func (c Cents) String() string {
	sign := ""
	v := int64(c)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// Taxpayer identifies the filer. SIN is sensitive: it may only appear in
// full inside encrypted payloads and the transmitted body records, never in
// logs or unencrypted index fields.
type Taxpayer struct {
	SIN             string
	FirstName       string
	LastName        string
	DateOfBirth     time.Time
	AddressLine1    string
	City            string
	Province        string
	PostalCode      string
	ResidencyStatus string
}

// Household carries marital and dependant information when present.
type Household struct {
	MaritalStatus string
	SpouseSIN     string
	Dependants    []string
}

// ConsentSignature records the electronic T183 authorization event.
type ConsentSignature struct {
	SignedAt      time.Time
	IPHash        string
	UserAgentHash string
	DocumentPath  string
}

// ReturnCalc is the calculator output for one return: resolved line items
// and totals keyed by the calculator's line identifiers.
type ReturnCalc struct {
	TaxYear   int
	Province  string
	LineItems map[string]Cents
	Totals    map[string]Cents
}

// ReturnDocument is one complete, calculator-validated filing ready for
// assembly. Consent is required before the document may be transmitted.
type ReturnDocument struct {
	Taxpayer  Taxpayer
	Household *Household
	Calc      ReturnCalc
	Consent   *ConsentSignature
}

// HasConsent reports whether a signed T183 authorization is attached.
func (d *ReturnDocument) HasConsent() bool {
	return d.Consent != nil && !d.Consent.SignedAt.IsZero()
}
