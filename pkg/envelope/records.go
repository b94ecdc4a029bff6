package envelope

import (
	"strconv"
	"time"

	"github.com/beevik/etree"

	"github.com/jude27mad/tax-prep-app/internal/model"
)

// consentValidity is how long a signed T183 authorization remains valid for
// transmission.
const consentValidity = 90 * 24 * time.Hour

// buildT1 maps the return document onto the T1Return wire record. Element
// order is fixed; optional sections are omitted entirely when absent.
func buildT1(doc *model.ReturnDocument) *etree.Document {
	d := etree.NewDocument()
	root := d.CreateElement("T1Return")
	root.CreateAttr("xmlns", NamespaceT1)

	root.CreateElement("TaxYear").SetText(strconv.Itoa(doc.Calc.TaxYear))

	tp := root.CreateElement("Taxpayer")
	tp.CreateElement("SIN").SetText(doc.Taxpayer.SIN)
	tp.CreateElement("FirstName").SetText(doc.Taxpayer.FirstName)
	tp.CreateElement("LastName").SetText(doc.Taxpayer.LastName)
	tp.CreateElement("DateOfBirth").SetText(doc.Taxpayer.DateOfBirth.Format("2006-01-02"))
	addr := tp.CreateElement("Address")
	addr.CreateElement("Line1").SetText(doc.Taxpayer.AddressLine1)
	addr.CreateElement("City").SetText(doc.Taxpayer.City)
	addr.CreateElement("Province").SetText(doc.Taxpayer.Province)
	addr.CreateElement("PostalCode").SetText(doc.Taxpayer.PostalCode)
	tp.CreateElement("ResidencyStatus").SetText(doc.Taxpayer.ResidencyStatus)

	if h := doc.Household; h != nil {
		hh := root.CreateElement("Household")
		hh.CreateElement("MaritalStatus").SetText(h.MaritalStatus)
		if h.SpouseSIN != "" {
			hh.CreateElement("SpouseSIN").SetText(h.SpouseSIN)
		}
		if len(h.Dependants) > 0 {
			dep := hh.CreateElement("Dependants")
			dep.CreateElement("DependantsCount").SetText(strconv.Itoa(len(h.Dependants)))
		}
	}

	items := root.CreateElement("LineItems")
	items.CreateElement("IncomeTotal").SetText(amount(doc.Calc.LineItems, "income_total"))
	items.CreateElement("TaxableIncome").SetText(amount(doc.Calc.LineItems, "taxable_income"))
	items.CreateElement("FederalTax").SetText(amount(doc.Calc.LineItems, "federal_tax"))
	items.CreateElement("ProvincialTax").SetText(amount(doc.Calc.LineItems, "prov_tax"))

	totals := root.CreateElement("Totals")
	totals.CreateElement("NetTax").SetText(amount(doc.Calc.Totals, "net_tax"))

	return d
}

// buildT183 maps the consent signature onto the T183Authorization record.
// The full SIN never appears here: only the masked form is carried.
func buildT183(doc *model.ReturnDocument) *etree.Document {
	d := etree.NewDocument()
	root := d.CreateElement("T183Authorization")
	root.CreateAttr("xmlns", NamespaceT183)

	root.CreateElement("TaxpayerSINMasked").SetText(MaskSIN(doc.Taxpayer.SIN))
	name := root.CreateElement("TaxpayerName")
	name.CreateElement("FirstName").SetText(doc.Taxpayer.FirstName)
	name.CreateElement("LastName").SetText(doc.Taxpayer.LastName)
	root.CreateElement("TaxpayerDOB").SetText(doc.Taxpayer.DateOfBirth.Format("2006-01-02"))

	signedAt := doc.Consent.SignedAt.UTC()
	sig := root.CreateElement("Signature")
	sig.CreateElement("SignedAt").SetText(signedAt.Format(time.RFC3339))
	sig.CreateElement("ExpiresAt").SetText(signedAt.Add(consentValidity).Format(time.RFC3339))
	if doc.Consent.IPHash != "" {
		sig.CreateElement("IPAddress").SetText(doc.Consent.IPHash)
	}
	if doc.Consent.UserAgentHash != "" {
		sig.CreateElement("UserAgentHash").SetText(doc.Consent.UserAgentHash)
	}

	if doc.Consent.DocumentPath != "" {
		consent := root.CreateElement("Consent")
		consent.CreateElement("DocumentPath").SetText(doc.Consent.DocumentPath)
	}

	return d
}

func amount(m map[string]model.Cents, key string) string {
	return m[key].String()
}
