// Package dochash derives the tamper-evidence token embedded in signed
// documents. The token is a display/audit convenience, not a signature
// scheme: re-deriving it with altered inputs yields a different value, which
// is all it promises.
package dochash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// TokenLength is the number of hex characters retained from the digest.
const TokenLength = 16

// Token maps (agreement id, signer name, signed-at) to a 16-character
// uppercase hex token. Equal inputs always produce equal tokens.
func Token(agreementID, signerName string, signedAt time.Time) string {
	input := fmt.Sprintf("%s:%s:%s", agreementID, signerName, signedAt.UTC().Format(time.RFC3339))
	sum := sha256.Sum256([]byte(input))
	return strings.ToUpper(hex.EncodeToString(sum[:]))[:TokenLength]
}
