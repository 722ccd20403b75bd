package model

// Fingerprint identifies revision content. Two revisions with matching
// fingerprints are treated as having identical content.
//
// The zero value is the indeterminate fingerprint: content whose identity is
// unknown (for example a NULL sha1 column). It never matches anything,
// including another indeterminate fingerprint.
type Fingerprint struct {
	digest string
	known  bool
}

// IndeterminateFingerprint returns the fingerprint used for unavailable content.
func IndeterminateFingerprint() Fingerprint {
	return Fingerprint{}
}

// NewFingerprint wraps a content digest. An empty digest is indeterminate.
func NewFingerprint(digest string) Fingerprint {
	if digest == "" {
		return Fingerprint{}
	}
	return Fingerprint{digest: digest, known: true}
}

// FingerprintFromNullable maps a nullable column value onto a fingerprint.
func FingerprintFromNullable(digest *string) Fingerprint {
	if digest == nil {
		return Fingerprint{}
	}
	return NewFingerprint(*digest)
}

func (f Fingerprint) IsIndeterminate() bool {
	return !f.known
}

// Matches reports whether both fingerprints are determinate and equal.
func (f Fingerprint) Matches(other Fingerprint) bool {
	if !f.known || !other.known {
		return false
	}
	return f.digest == other.digest
}

// Digest returns the raw digest and whether it is known.
func (f Fingerprint) Digest() (string, bool) {
	return f.digest, f.known
}

func (f Fingerprint) String() string {
	if !f.known {
		return "<indeterminate>"
	}
	return f.digest
}
