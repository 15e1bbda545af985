package model

import (
	"bytes"
	"encoding/base32"
	"fmt"

	"github.com/pborman/uuid"
	"github.com/sirupsen/logrus"
)

var encoding = base32.NewEncoding("ybndrfg8ejkmcpqxot1uwisza345h769")

// NewID is a globally unique identifier. It is a [a-z0-9] string 26
// characters long. It is a UUID version 4 Guid that is zbase32 encoded
// with the padding stripped off.
func NewID() string {
	var b bytes.Buffer
	encoder := base32.NewEncoder(encoding, &b)

	if _, err := encoder.Write(uuid.NewRandom()); err != nil {
		logrus.WithError(err).Error("failed to write to encoder")
		return err.Error()
	}
	if err := encoder.Close(); err != nil {
		logrus.WithError(err).Error("failed to close encoder")
		return err.Error()
	}
	if b.Len() < 26 {
		logrus.Errorf("unexpected buffer length: got %d, want at least 26", b.Len())
		return b.String()
	}

	b.Truncate(26)
	return b.String()
}

// NewEventID derives an event identifier from the mutation's own resume
// token and timestamp, with no random component, so the same mutation
// always yields the same event id: the basis for delivery deduplication
//.
func NewEventID(resumeToken string, sourceTimestampMillis int64) string {
	return fmt.Sprintf("evt_%x_%s", sourceTimestampMillis, longHash(resumeToken))
}

// longHash keeps event ids bounded in length regardless of the native
// resume token's size or encoding, while remaining a pure function of its
// input (FNV-1a, 64-bit).
func longHash(s string) string {
	const offset = 0xcbf29ce484222325
	const prime = 0x100000001b3
	var h uint64 = offset
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= prime
	}
	return fmt.Sprintf("%016x", h)
}
