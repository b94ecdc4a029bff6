package efile

import "fmt"

// Tax years this deployment can prepare at all.
var supportedYears = map[int]bool{2024: true, 2025: true}

// CRA transmission windows: initial filings and refiles.
const (
	initialWindowStart = 2017
	initialWindowEnd   = 2024
	refileWindowStart  = 2021
	refileWindowEnd    = 2024
)

// TransmitRestriction returns a human-readable reason transmission is not
// available for the given tax year, or "" when transmission is allowed.
func TransmitRestriction(year int, allow2025 bool) string {
	if !supportedYears[year] {
		return fmt.Sprintf("Tax year %d is not supported for this deployment.", year)
	}
	if year == 2025 && !allow2025 {
		return fmt.Sprintf("EFILE transmission for tax year %d is not yet available. Prepare estimates only.", year)
	}
	if year == 2025 {
		return ""
	}
	inInitial := year >= initialWindowStart && year <= initialWindowEnd
	inRefile := year >= refileWindowStart && year <= refileWindowEnd
	if !inInitial && !inRefile {
		return fmt.Sprintf("EFILE transmission for tax year %d is outside the CRA window. Prepare estimates only.", year)
	}
	return ""
}

// CanTransmit reports whether the tax year is open for transmission.
func CanTransmit(year int, allow2025 bool) bool {
	return TransmitRestriction(year, allow2025) == ""
}

// GateEntry is the transmit gate for one tax year, consumed by the status
// surface.
type GateEntry struct {
	Year    int
	Allowed bool
	Message string
}

// TransmitGate reports the gate for every supported year.
func TransmitGate(allow2025 bool) []GateEntry {
	years := []int{2024, 2025}
	out := make([]GateEntry, 0, len(years))
	for _, y := range years {
		msg := TransmitRestriction(y, allow2025)
		out = append(out, GateEntry{Year: y, Allowed: msg == "", Message: msg})
	}
	return out
}
