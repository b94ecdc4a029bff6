// Package envelope assembles the T619 transmission envelope and its body
// records (T1 return, T183 authorization) from a calculator-validated
// return document.
//
// Assembly is deterministic: the same document and submission reference
// always serialize to the same bytes, which the duplicate-digest ledger
// relies on. Every assembled document is validated against its versioned
// schema before it is returned; a document that fails validation is never
// handed to the transmission client.
package envelope

import (
	"archive/zip"
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/beevik/etree"

	"github.com/jude27mad/tax-prep-app/internal/model"
	"github.com/jude27mad/tax-prep-app/pkg/schema"
)

// XML namespaces for the wire documents.
const (
	NamespaceT1   = "http://www.cra-arc.gc.ca/xmlns/efile/t1/1.0"
	NamespaceT183 = "http://www.cra-arc.gc.ca/xmlns/efile/t183/1.0"
	NamespaceT619 = "http://www.cra-arc.gc.ca/xmlns/efile/t619/1.0"
)

// Schema versions this assembler targets.
var (
	SchemaT1   = schema.ID{Type: schema.DocT1Return, Version: "1.0"}
	SchemaT183 = schema.ID{Type: schema.DocT183Auth, Version: "1.0"}
	SchemaT619 = schema.ID{Type: schema.DocT619Env, Version: "1.0"}
)

// Zip entries inside the envelope payload carry a fixed timestamp so the
// payload bytes depend only on document content.
var payloadEpoch = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

// Profile carries the per-environment transmitter identity placed in the
// envelope header.
type Profile struct {
	Environment     string // "CERT" or "PROD"
	SoftwareID      string
	SoftwareVersion string
	TransmitterID   string
}

// Package is one fully assembled, schema-valid submission.
type Package struct {
	RefID       string
	T1XML       []byte
	T183XML     []byte
	EnvelopeXML []byte
	// Documents maps body document names to their XML, in payload order.
	Documents map[string][]byte
}

// Digest returns the hex SHA-256 content digest the duplicate ledger keys
// on. The digest covers the body documents and the transmitter identity but
// not the reference id, so re-submissions of identical content collide even
// if a caller minted a fresh reference.
func (p *Package) Digest(profile Profile) string {
	h := sha256.New()
	h.Write(p.T1XML)
	h.Write(p.T183XML)
	h.Write([]byte(profile.Environment))
	h.Write([]byte(profile.SoftwareID))
	h.Write([]byte(profile.SoftwareVersion))
	h.Write([]byte(profile.TransmitterID))
	return hex.EncodeToString(h.Sum(nil))
}

// ValidationError reports schema violations found during assembly.
type ValidationError struct {
	Schema     schema.ID
	Violations []schema.Violation
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.String()
	}
	return fmt.Sprintf("schema %s: %s", e.Schema, strings.Join(parts, "; "))
}

// Assembler builds submission packages for a fixed transmitter profile.
type Assembler struct {
	profile Profile
}

// NewAssembler creates an assembler for the given transmitter profile.
func NewAssembler(profile Profile) *Assembler {
	return &Assembler{profile: profile}
}

// Profile returns the transmitter profile the assembler stamps into
// envelope headers.
func (a *Assembler) Profile() Profile { return a.profile }

// Assemble builds and validates the full submission package for doc under
// the given submission reference. The reference must already be allocated;
// Assemble never mints one, so re-assembly of the same submission reuses
// its identifier.
func (a *Assembler) Assemble(doc *model.ReturnDocument, refID string) (*Package, error) {
	if !doc.HasConsent() {
		return nil, fmt.Errorf("t183 signature timestamp is required for assembly")
	}

	t1 := buildT1(doc)
	t183 := buildT183(doc)

	if err := validate(t1, SchemaT1); err != nil {
		return nil, err
	}
	if err := validate(t183, SchemaT183); err != nil {
		return nil, err
	}

	t1XML, err := serialize(t1)
	if err != nil {
		return nil, fmt.Errorf("serialize t1: %w", err)
	}
	t183XML, err := serialize(t183)
	if err != nil {
		return nil, fmt.Errorf("serialize t183: %w", err)
	}

	documents := map[string][]byte{
		"T1Return":          t1XML,
		"T183Authorization": t183XML,
	}
	payload, err := packPayload(documents)
	if err != nil {
		return nil, fmt.Errorf("pack payload: %w", err)
	}

	env := a.buildT619(refID, payload)
	if err := validate(env, SchemaT619); err != nil {
		return nil, err
	}
	envXML, err := serialize(env)
	if err != nil {
		return nil, fmt.Errorf("serialize envelope: %w", err)
	}

	return &Package{
		RefID:       refID,
		T1XML:       t1XML,
		T183XML:     t183XML,
		EnvelopeXML: envXML,
		Documents:   documents,
	}, nil
}

// buildT619 wraps the base64 payload in the transmission envelope header.
func (a *Assembler) buildT619(refID, payload string) *etree.Document {
	doc := etree.NewDocument()
	root := doc.CreateElement("T619Transmission")
	root.CreateAttr("xmlns", NamespaceT619)
	root.CreateElement("sbmt_ref_id").SetText(refID)
	root.CreateElement("Environment").SetText(a.profile.Environment)
	root.CreateElement("SoftwareId").SetText(a.profile.SoftwareID)
	root.CreateElement("SoftwareVersion").SetText(a.profile.SoftwareVersion)
	root.CreateElement("TransmitterId").SetText(a.profile.TransmitterID)
	root.CreateElement("Payload").SetText(payload)
	return doc
}

func validate(doc *etree.Document, id schema.ID) error {
	if violations := schema.Validate(doc, id); len(violations) > 0 {
		return &ValidationError{Schema: id, Violations: violations}
	}
	return nil
}

// serialize renders a document with the XML declaration and two-space
// indentation. Element order is fixed by construction, so output bytes are
// a pure function of input content.
func serialize(doc *etree.Document) ([]byte, error) {
	doc.Indent(2)
	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	if _, err := doc.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// packPayload zips the body documents into the base64 payload blob. Entry
// order, timestamps, and modes are fixed so identical documents produce
// identical payload bytes.
func packPayload(documents map[string][]byte) (string, error) {
	names := make([]string, 0, len(documents))
	for name := range documents {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		hdr := &zip.FileHeader{
			Name:     name + ".xml",
			Method:   zip.Deflate,
			Modified: payloadEpoch,
		}
		hdr.SetMode(0o600)
		w, err := zw.CreateHeader(hdr)
		if err != nil {
			return "", err
		}
		if _, err := w.Write(documents[name]); err != nil {
			return "", err
		}
	}
	if err := zw.Close(); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
