package commitment

import (
	"github.com/alanyoungcy/ppmclient/internal/domain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Hash computes keccak256(abi.encode(uint8 vote, bytes32 secret)): the vote
// left-padded to a 32-byte word followed by the 32-byte secret. It must stay
// byte-identical to the contract's own derivation or reveals will fail.
func Hash(vote domain.Vote, secret Secret) common.Hash {
	var buf [64]byte
	buf[31] = byte(vote)
	copy(buf[32:], secret[:])
	return crypto.Keccak256Hash(buf[:])
}

// Verify reports whether vote and secret open commitment.
func Verify(vote domain.Vote, secret Secret, commitment common.Hash) bool {
	return Hash(vote, secret) == commitment
}
