// Package identifiers mints externally-visible account numbers and
// transaction ids using a cryptographic random source.
package identifiers

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

func randomHex(nBytes int) string {
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand.Read only fails if the OS source is broken; there is
		// no sane fallback for minting an identifier at that point.
		panic(fmt.Sprintf("identifiers: crypto/rand unavailable: %v", err))
	}
	return strings.ToUpper(hex.EncodeToString(b))
}

// MintAccountNumber produces an externally-facing account number of the
// form ACCT-XXXX-XXXX-XXXX, each group 4 upper-case hex characters drawn
// from a cryptographic RNG.
func MintAccountNumber() string {
	return fmt.Sprintf("ACCT-%s-%s-%s", randomHex(2), randomHex(2), randomHex(2))
}

// MintTransactionID produces a transaction id of the form PREFIX-T-R, where
// T is the current wall-clock time in milliseconds rendered base-36
// upper-case, and R is 8 upper-case hex characters from a cryptographic RNG.
func MintTransactionID(prefix string) string {
	millis := time.Now().UnixMilli()
	t := strings.ToUpper(strconv.FormatInt(millis, 36))
	return fmt.Sprintf("%s-%s-%s", prefix, t, randomHex(4))
}
