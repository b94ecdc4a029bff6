package efile

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/jude27mad/tax-prep-app/internal/model"
	"github.com/jude27mad/tax-prep-app/pkg/envelope"
)

// The legacy JSON envelope predates the T619 XML flow. It survives behind
// the xmlTransmission feature flag until the last callers migrate.

// LegacyPayload is a serialized legacy envelope with its content digest.
type LegacyPayload struct {
	Data   []byte
	Digest string
}

// BuildLegacyRecords assembles the deprecated JSON envelope from the
// profile and return document.
func BuildLegacyRecords(profile envelope.Profile, doc *model.ReturnDocument) map[string]any {
	lineItems := map[string]string{}
	for k, v := range doc.Calc.LineItems {
		lineItems[k] = v.String()
	}
	totals := map[string]string{}
	for k, v := range doc.Calc.Totals {
		totals[k] = v.String()
	}
	return map[string]any{
		"env": map[string]any{
			"software_id":    profile.SoftwareID,
			"software_ver":   profile.SoftwareVersion,
			"transmitter_id": profile.TransmitterID,
			"environment":    profile.Environment,
		},
		"return": map[string]any{
			"year":       doc.Calc.TaxYear,
			"province":   doc.Calc.Province,
			"line_items": lineItems,
			"totals":     totals,
		},
	}
}

// LegacyEnvelope serializes doc as the deprecated JSON envelope under the
// service's transmitter profile. Callers that hit ErrXMLDisabled hand this
// payload to the legacy intake endpoint instead.
func (s *Service) LegacyEnvelope(doc *model.ReturnDocument) (*LegacyPayload, error) {
	return LegacySerialize(BuildLegacyRecords(s.assembler.Profile(), doc))
}

// LegacySerialize renders a payload as compact canonical JSON (map keys
// sorted by the encoder) and computes its digest.
func LegacySerialize(payload map[string]any) (*LegacyPayload, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("serialize legacy payload: %w", err)
	}
	sum := sha256.Sum256(data)
	return &LegacyPayload{Data: data, Digest: hex.EncodeToString(sum[:])}, nil
}

// buildSummary is the secondary artifact: a small audit summary of an
// accepted submission. The taxpayer identifier is masked even though the
// artifact is stored encrypted.
func buildSummary(refID string, doc *model.ReturnDocument, pkg *envelope.Package) map[string]any {
	docs := make([]string, 0, len(pkg.Documents))
	for name := range pkg.Documents {
		docs = append(docs, name)
	}
	sort.Strings(docs)
	return map[string]any{
		"ref_id":       refID,
		"tax_year":     doc.Calc.TaxYear,
		"province":     doc.Calc.Province,
		"subject":      envelope.MaskSIN(doc.Taxpayer.SIN),
		"documents":    docs,
		"generated_at": time.Now().UTC().Format(time.RFC3339),
	}
}
