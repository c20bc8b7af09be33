package lexer

import (
	"github.com/ethereum/go-ethereum/common"

	"solang/token"
)

// handleAddress validates an 0x-prefixed 40-hex-digit literal against
// its EIP-55 checksum: the case of each letter digit must match the
// capitalization derived from the keccak hash of the lowercased
// digits. On a mismatch the diagnostic carries the correctly-cased
// spelling so the user can paste it in.
func (lexer *Lexer) handleAddress(digits string, span token.Span) {
	address := common.HexToAddress(digits)
	checksummed := address.Hex()
	if "0x"+digits != checksummed {
		lexer.diagnostics.Errorf(span, "address literal has an invalid checksum; did you mean %s?", checksummed)
		return
	}
	raw := make([]byte, common.AddressLength)
	copy(raw, address.Bytes())
	lexer.tokens = append(lexer.tokens, token.CreateLiteral(token.ADDRESS_LITERAL, raw, "0x"+digits, span))
}
