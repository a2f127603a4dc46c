package easybus

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChannel(t *testing.T) {
	require.Equal(t, byte(254), Channel(1))
	require.Equal(t, byte(253), Channel(2))
	for a := 1; a <= 254; a++ {
		address := uint8(a)
		ch := Channel(address)
		require.Equal(t, byte(^a&0xFF), ch)
		require.Equal(t, address, Channel(ch))
		require.Equal(t, address, AddressFromChannel(ch))
	}
}

func TestEasybusPackager_PackValueRequest(t *testing.T) {
	p := NewEasybusPackager()
	frame := p.PackValueRequest(1)
	require.Equal(t, []byte{254, 0, Checksum(254, 0)}, frame)
	require.Equal(t, []byte{254, 0, 61}, frame)
	require.NoError(t, p.VerifyChecksums(frame))
}

func TestEasybusPackager_PackUnitRequest(t *testing.T) {
	p := NewEasybusPackager()
	frame := p.PackUnitRequest(1)
	require.Equal(t, []byte{254, 242, Checksum(254, 242), 53, 0, Checksum(53, 0)}, frame)
	require.Equal(t, []byte{254, 242, 237, 53, 0, 71}, frame)
	require.NoError(t, p.VerifyChecksums(frame))
}

func TestEasybusPackager_VerifyChecksums(t *testing.T) {
	p := NewEasybusPackager()
	testCases := []struct {
		name    string
		frame   []byte
		wantErr bool
	}{
		{"empty", []byte{}, true},
		{"short", []byte{254, 0}, true},
		{"bad checksum", []byte{254, 0, 60}, true},
		{"bad second triple", []byte{254, 242, 237, 53, 0, 70}, true},
		{"channel 2", []byte{253, 0, 2}, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := p.VerifyChecksums(tc.frame)
			if tc.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}
