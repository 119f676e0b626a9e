package commitment

import (
	"testing"

	"github.com/alanyoungcy/ppmclient/internal/domain"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seqSecret() Secret {
	var s Secret
	for i := range s {
		s[i] = byte(i)
	}
	return s
}

func TestHashKnownVectors(t *testing.T) {
	cases := []struct {
		vote   domain.Vote
		secret Secret
		want   string
	}{
		{domain.VoteYes, Secret{}, "0xada5013122d395ba3c54772283fb069b10426056ef8ca54750cb9bb552a59e7d"},
		{domain.VoteNo, Secret{}, "0xabbb5caa7dda850e60932de0934eb1f9d0f59695050f761dc64e443e5030a569"},
		{domain.VoteYes, seqSecret(), "0x54750176dd192b1b835eae28f02572410723590166471848a6443278d29240c0"},
		{domain.VoteNo, seqSecret(), "0x348b82f86662b4ce6bd0983c043b643e38e3c6b6e60f6a90749d40158bc7bfd4"},
	}
	for _, tc := range cases {
		assert.Equal(t, common.HexToHash(tc.want), Hash(tc.vote, tc.secret), "%s %s", tc.vote, tc.secret)
	}
}

func TestHashMatchesABIEncoding(t *testing.T) {
	uint8Ty, err := abi.NewType("uint8", "", nil)
	require.NoError(t, err)
	bytes32Ty, err := abi.NewType("bytes32", "", nil)
	require.NoError(t, err)
	args := abi.Arguments{{Type: uint8Ty}, {Type: bytes32Ty}}

	for i := 0; i < 16; i++ {
		secret, err := GenerateSecret()
		require.NoError(t, err)
		for _, vote := range []domain.Vote{domain.VoteYes, domain.VoteNo} {
			packed, err := args.Pack(uint8(vote), [32]byte(secret))
			require.NoError(t, err)
			require.Len(t, packed, 64)
			assert.Equal(t, crypto.Keccak256Hash(packed), Hash(vote, secret))
		}
	}
}

func TestHashDistinguishesVotes(t *testing.T) {
	secret := seqSecret()
	assert.NotEqual(t, Hash(domain.VoteYes, secret), Hash(domain.VoteNo, secret))
	assert.Equal(t, Hash(domain.VoteYes, secret), Hash(domain.VoteYes, secret))

	c := Hash(domain.VoteNo, secret)
	assert.True(t, Verify(domain.VoteNo, secret, c))
	assert.False(t, Verify(domain.VoteYes, secret, c))
	assert.False(t, Verify(domain.VoteNo, Secret{}, c))
}
