/*
Package taxprep provides the EFILE transmission and artifact-retention core
for the tax preparation application.

# Overview

The core receives a completed, calculator-validated return document and is
responsible for everything between that document and the government intake
endpoint: assembling the T619 transmission envelope against versioned
schemas, allocating durable submission references, detecting duplicate
submissions by content digest, delivering the envelope under a resilience
policy (bounded timeouts, exponential backoff with jitter, a circuit
breaker), and retaining the signed T183 consent artifact under encryption
for the statutory six-year window.

# Package Structure

	github.com/jude27mad/tax-prep-app/pkg/envelope    - T619/T1/T183 XML assembly
	github.com/jude27mad/tax-prep-app/pkg/schema      - versioned schema validation
	github.com/jude27mad/tax-prep-app/pkg/reliability - circuit breaker and backoff
	github.com/jude27mad/tax-prep-app/pkg/transport   - EFILE endpoint client
	github.com/jude27mad/tax-prep-app/pkg/rejectcode  - RC4018 reject-code triage
	github.com/jude27mad/tax-prep-app/internal/efile  - orchestrating service
	github.com/jude27mad/tax-prep-app/internal/store  - durable SQLite state
	github.com/jude27mad/tax-prep-app/internal/retention - encrypted artifact retention
	github.com/jude27mad/tax-prep-app/internal/config - YAML configuration
	github.com/jude27mad/tax-prep-app/cmd/efilectl    - operational tooling

# Guarantees

Each logical submission is transmitted at most meaningfully once: submission
references are committed to durable storage before they are handed out,
identical content is detected by digest and resolved to the prior outcome,
and the transmission client never retries a protocol-level rejection.
Consent artifacts are encrypted with AES-256-GCM before any byte reaches
disk; national identifiers are masked to their last four digits in every
unencrypted field and log line.
*/
package taxprep
