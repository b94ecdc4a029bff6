// Package rejectcode maps EFILE reject codes (RC4018 Chapter 2) to triage
// guidance: what category the reject falls in, what went wrong, and what to
// fix before retransmitting.
package rejectcode

import "strings"

// Info describes one reject code.
type Info struct {
	Code        string
	Category    string
	Summary     string
	Remediation string
}

var specific = map[string]Info{
	"10021": {
		Code:        "10021",
		Category:    "Identification",
		Summary:     "CRA cannot match the SIN, name, or birthdate to their records.",
		Remediation: "Confirm the client's SIN, legal name, and date of birth exactly match the CRA and update the return before retransmitting.",
	},
	"10200": {
		Code:        "10200",
		Category:    "Identification",
		Summary:     "Mailing address failed CRA validation.",
		Remediation: "Check civic number, street, municipality, province, and postal code formatting against Canada Post and refile.",
	},
	"30001": {
		Code:        "30001",
		Category:    "Business rule",
		Summary:     "Return totals do not balance with CRA business rules.",
		Remediation: "Recalculate income and deduction line totals; update slips or schedules causing the mismatch.",
	},
	"30022": {
		Code:        "30022",
		Category:    "Business rule",
		Summary:     "Province or territory of residence conflicts with reported information.",
		Remediation: "Verify the province of residence on page 1 matches schedules, tax credits, and postal code, then correct and resend.",
	},
	"40013": {
		Code:        "40013",
		Category:    "Balancing",
		Summary:     "Return totals do not balance with attached slips or schedules.",
		Remediation: "Ensure every slip and schedule referenced in the return is attached and totals agree before resubmitting.",
	},
	"50113": {
		Code:        "50113",
		Category:    "Authorization",
		Summary:     "Client signature missing on Form T183.",
		Remediation: "Obtain a signed T183 dated before transmission and update the authorization details prior to retransmitting.",
	},
	"80308": {
		Code:        "80308",
		Category:    "Transmission",
		Summary:     "Authentication failure during transmission.",
		Remediation: "Confirm the EFILE number, password, and CRA service availability before attempting again.",
	},
}

// Family fallbacks keyed by the leading digit of the reject code.
var families = map[byte]Info{
	'1': {
		Code:        "1xx",
		Category:    "Identification",
		Summary:     "Identification or formatting issue detected.",
		Remediation: "Review SIN, names, dates of birth, and address formatting to ensure they follow CRA standards.",
	},
	'3': {
		Code:        "3xx",
		Category:    "Business rule",
		Summary:     "Business-rule validation failed.",
		Remediation: "Recalculate line amounts, credits, and residency details to satisfy CRA consistency checks.",
	},
	'4': {
		Code:        "4xx",
		Category:    "Balancing",
		Summary:     "Return balancing issue encountered.",
		Remediation: "Reconcile line items with the supporting schedules and slips before resubmitting.",
	},
	'5': {
		Code:        "5xx",
		Category:    "Attachments",
		Summary:     "Slip or authorization attachment issue.",
		Remediation: "Confirm required slips, supporting documents, and authorizations (T183/T183CORP) are complete and attached.",
	},
	'8': {
		Code:        "8xx",
		Category:    "Transmission",
		Summary:     "Transmission layer issue occurred.",
		Remediation: "Verify CRA service availability, transmitter credentials, and retry the submission.",
	},
}

var unknown = Info{
	Code:        "unknown",
	Category:    "Unknown",
	Summary:     "Unknown EFILE reject code; review CRA RC4018 Chapter 2.",
	Remediation: "Check the latest CRA RC4018 Chapter 2 for details, then update the reject-code map if necessary.",
}

// Lookup returns triage guidance for a reject code, falling back to the
// code family and then to the unknown entry.
func Lookup(code string) Info {
	code = strings.TrimSpace(code)
	if code == "" {
		return unknown
	}
	if info, ok := specific[code]; ok {
		return info
	}
	if info, ok := families[code[0]]; ok {
		return info
	}
	return unknown
}

// Explain returns the one-line summary for a reject code.
func Explain(code string) string {
	return Lookup(code).Summary
}
