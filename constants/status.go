package constants

// ExtractionStatus is the canonical status for rows in extractions.
type ExtractionStatus string

// Stable values (store these exact strings in DB).
const (
	StatusToRecognize ExtractionStatus = "TO_RECOGNIZE" // uploaded, text not yet recognized
	StatusToExtract   ExtractionStatus = "TO_EXTRACT"   // text present, fields not yet extracted
	StatusToVerify    ExtractionStatus = "TO_VERIFY"    // fields extracted, awaiting user confirmation
	StatusVerified    ExtractionStatus = "VERIFIED"     // terminal: confirmed and projected
)

// Next returns the status an extraction moves to when the transition out of s
// succeeds. Verified is terminal.
func (s ExtractionStatus) Next() (ExtractionStatus, bool) {
	switch s {
	case StatusToRecognize:
		return StatusToExtract, true
	case StatusToExtract:
		return StatusToVerify, true
	case StatusToVerify:
		return StatusVerified, true
	default:
		return s, false
	}
}

func (s ExtractionStatus) Terminal() bool { return s == StatusVerified }
