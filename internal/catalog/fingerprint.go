package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const (
	episodeFingerprintVersion = "epfp:v1"
	seriesFingerprintVersion  = "srfp:v1"
)

// EpisodeFingerprint hashes the cleaned episode content. Any change to the
// clean title or description yields a new fingerprint and invalidates cached
// enrichment for the episode.
func EpisodeFingerprint(cleanTitle, cleanDescription string) string {
	sum := sha256.Sum256([]byte(episodeFingerprintVersion + "\n" + cleanTitle + "\n" + cleanDescription))
	return hex.EncodeToString(sum[:])
}

// SeriesFingerprint hashes the series identity plus its members' fingerprints
// in membership order. Adding, removing, reordering, or editing any member
// changes the series fingerprint.
func SeriesFingerprint(seriesID string, memberFingerprints []string) string {
	sum := sha256.Sum256([]byte(seriesFingerprintVersion + "\n" + seriesID + "\n" + strings.Join(memberFingerprints, "\n")))
	return hex.EncodeToString(sum[:])
}
