package screening

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	domainContent = "marquee/screening/v1"
	domainUID     = "marquee/uid/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data). The null separator prevents
// domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint computes the content hash of a record: a 64-character hex
// digest over the canonicalized comparison fields. Two logically identical
// records hash identically regardless of field-insertion order, incidental
// whitespace, or timezone representation of the same instant.
//
// Bookkeeping fields (run id, active flag, loaded/created/updated
// timestamps) and the match key's source/source_uid are excluded: the hash
// answers "did this screening change", not "which screening is this".
//
// Pure and side-effect free; no I/O.
func Fingerprint(r Record) string {
	c := Canonicalize(r)

	obj := map[string]any{
		"film_id":      c.FilmID,
		"cinema_id":    c.CinemaID,
		"start_at_utc": c.StartAtUTC.Format(time.RFC3339),
		"end_at_utc":   c.EndAtUTC.Format(time.RFC3339),
		"tz":           c.TZ,
		"source_url":   c.SourceURL,
	}
	// Absent optional fields are omitted rather than encoded as null, so
	// nil and empty string remain distinct inputs.
	if c.RuntimeMin != nil {
		obj["runtime_min"] = *c.RuntimeMin
	}
	if c.Notes != nil {
		obj["notes"] = *c.Notes
	}
	if c.RawDate != nil {
		obj["raw_date"] = *c.RawDate
	}
	if c.RawTime != nil {
		obj["raw_time"] = *c.RawTime
	}

	canonical, err := marshalCanonical(obj)
	if err != nil {
		// The object above only ever holds strings and ints.
		panic(fmt.Sprintf("fingerprint: %v", err))
	}
	return hashWithDomain(domainContent, canonical)
}

// StableUID derives a synthetic source_uid for sources whose pages carry no
// native screening identifier. The key is the business identity of the slot,
// so the uid is stable across scrapes.
//
// Returns a 32-character hex digest.
func StableUID(cinemaID, filmID int64, startAtUTC time.Time) string {
	key := fmt.Sprintf("%d|%d|%s", cinemaID, filmID, startAtUTC.UTC().Format("2006-01-02 15:04:05"))
	return hashWithDomain(domainUID, []byte(key))[:32]
}
