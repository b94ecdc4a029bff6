// Package schema validates assembled EFILE documents against versioned
// schema definitions. Validation is pure: the same document and schema
// identifier always produce the same result, and an unknown schema version
// is rejected outright rather than skipped.
package schema

import (
	"fmt"
	"regexp"

	"github.com/beevik/etree"
)

// DocType identifies a wire document kind.
type DocType string

const (
	DocT1Return DocType = "t1-return"
	DocT183Auth DocType = "t183-authorization"
	DocT619Env  DocType = "t619-envelope"
)

// ID keys a versioned schema definition.
type ID struct {
	Type    DocType
	Version string
}

func (id ID) String() string {
	return fmt.Sprintf("%s/%s", id.Type, id.Version)
}

// Violation describes one failed constraint with the offending element path.
type Violation struct {
	Path  string
	Cause string
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Cause)
}

// fieldRule constrains a single element located by a slash-separated path
// relative to the document root.
type fieldRule struct {
	path     string
	required bool
	pattern  *regexp.Regexp
	cause    string
}

// definition is one compiled schema version.
type definition struct {
	id        ID
	root      string
	namespace string
	fields    []fieldRule
}

var (
	reDecimal  = regexp.MustCompile(`^-?\d+\.\d{2}$`)
	reDate     = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	reRFC3339  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}`)
	reSIN      = regexp.MustCompile(`^\d{9}$`)
	reMaskedID = regexp.MustCompile(`^\*\*\*-\*\*\*-\d{4}$`)
	rePostal   = regexp.MustCompile(`^[A-Za-z]\d[A-Za-z] ?\d[A-Za-z]\d$`)
	reTaxYear  = regexp.MustCompile(`^20\d{2}$`)
	reRefID    = regexp.MustCompile(`^[A-Z0-9]{8}$`)
	reEnv      = regexp.MustCompile(`^(CERT|PROD)$`)
	reBase64   = regexp.MustCompile(`^[A-Za-z0-9+/]+={0,2}$`)
)

// registry holds every schema definition this build ships. Definitions are
// immutable after init.
var registry = map[ID]*definition{}

func register(def *definition) {
	registry[def.id] = def
}

func init() {
	register(&definition{
		id:        ID{DocT1Return, "1.0"},
		root:      "T1Return",
		namespace: "http://www.cra-arc.gc.ca/xmlns/efile/t1/1.0",
		fields: []fieldRule{
			{path: "TaxYear", required: true, pattern: reTaxYear, cause: "tax year must be a four digit year"},
			{path: "Taxpayer/SIN", required: true, pattern: reSIN, cause: "SIN must be nine digits"},
			{path: "Taxpayer/FirstName", required: true},
			{path: "Taxpayer/LastName", required: true},
			{path: "Taxpayer/DateOfBirth", required: true, pattern: reDate, cause: "date of birth must be YYYY-MM-DD"},
			{path: "Taxpayer/Address/Line1", required: true},
			{path: "Taxpayer/Address/City", required: true},
			{path: "Taxpayer/Address/Province", required: true},
			{path: "Taxpayer/Address/PostalCode", required: true, pattern: rePostal, cause: "postal code must match A9A 9A9"},
			{path: "Taxpayer/ResidencyStatus", required: true},
			{path: "LineItems/IncomeTotal", required: true, pattern: reDecimal, cause: "amount must carry two decimals"},
			{path: "LineItems/TaxableIncome", required: true, pattern: reDecimal, cause: "amount must carry two decimals"},
			{path: "LineItems/FederalTax", required: true, pattern: reDecimal, cause: "amount must carry two decimals"},
			{path: "LineItems/ProvincialTax", required: true, pattern: reDecimal, cause: "amount must carry two decimals"},
			{path: "Totals/NetTax", required: true, pattern: reDecimal, cause: "amount must carry two decimals"},
			{path: "Household/SpouseSIN", pattern: reSIN, cause: "spouse SIN must be nine digits"},
		},
	})
	register(&definition{
		id:        ID{DocT183Auth, "1.0"},
		root:      "T183Authorization",
		namespace: "http://www.cra-arc.gc.ca/xmlns/efile/t183/1.0",
		fields: []fieldRule{
			{path: "TaxpayerSINMasked", required: true, pattern: reMaskedID, cause: "SIN must be masked to the last four digits"},
			{path: "TaxpayerName/FirstName", required: true},
			{path: "TaxpayerName/LastName", required: true},
			{path: "TaxpayerDOB", required: true, pattern: reDate, cause: "date of birth must be YYYY-MM-DD"},
			{path: "Signature/SignedAt", required: true, pattern: reRFC3339, cause: "signature timestamp must be RFC 3339"},
			{path: "Signature/ExpiresAt", required: true, pattern: reRFC3339, cause: "expiry timestamp must be RFC 3339"},
		},
	})
	register(&definition{
		id:        ID{DocT619Env, "1.0"},
		root:      "T619Transmission",
		namespace: "http://www.cra-arc.gc.ca/xmlns/efile/t619/1.0",
		fields: []fieldRule{
			{path: "sbmt_ref_id", required: true, pattern: reRefID, cause: "submission reference must be eight uppercase alphanumerics"},
			{path: "Environment", required: true, pattern: reEnv, cause: "environment must be CERT or PROD"},
			{path: "SoftwareId", required: true},
			{path: "SoftwareVersion", required: true},
			{path: "TransmitterId", required: true},
			{path: "Payload", required: true, pattern: reBase64, cause: "payload must be base64"},
		},
	})
}

// Versions lists the registered schema identifiers, for the health surface.
func Versions() []ID {
	ids := make([]ID, 0, len(registry))
	for id := range registry {
		ids = append(ids, id)
	}
	return ids
}

// Validate checks doc against the identified schema. A nil return means the
// document conforms. An unregistered schema identifier yields a violation
// for the document root: validation never silently passes.
func Validate(doc *etree.Document, id ID) []Violation {
	def, ok := registry[id]
	if !ok {
		return []Violation{{Path: "/", Cause: fmt.Sprintf("unknown schema %s", id)}}
	}

	root := doc.Root()
	if root == nil {
		return []Violation{{Path: "/", Cause: "document has no root element"}}
	}

	var violations []Violation
	if root.Tag != def.root {
		violations = append(violations, Violation{
			Path:  "/" + root.Tag,
			Cause: fmt.Sprintf("root element must be %s", def.root),
		})
	}
	if ns := root.SelectAttrValue("xmlns", ""); ns != def.namespace {
		violations = append(violations, Violation{
			Path:  "/" + root.Tag,
			Cause: fmt.Sprintf("namespace must be %s", def.namespace),
		})
	}

	for _, rule := range def.fields {
		el := root.FindElement(rule.path)
		if el == nil {
			if rule.required {
				violations = append(violations, Violation{Path: rule.path, Cause: "required element missing"})
			}
			continue
		}
		text := el.Text()
		if rule.required && text == "" {
			violations = append(violations, Violation{Path: rule.path, Cause: "required element empty"})
			continue
		}
		if rule.pattern != nil && text != "" && !rule.pattern.MatchString(text) {
			cause := rule.cause
			if cause == "" {
				cause = "value does not match required format"
			}
			violations = append(violations, Violation{Path: rule.path, Cause: cause})
		}
	}
	return violations
}
