package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinderchain/cinder/crypto"
	cbytes "github.com/cinderchain/cinder/libs/bytes"
)

func TestHeaderHash(t *testing.T) {
	h := &Header{
		Number:     7,
		ParentHash: crypto.Keccak256([]byte("parent")),
		BodyHash:   crypto.Keccak256([]byte("body")),
		Time:       time.Unix(1648000007, 0).UTC(),
	}

	hash := h.Hash()
	require.Len(t, []byte(hash), crypto.HashSize)
	require.Equal(t, hash, h.Hash())

	testCases := []struct {
		testName string
		malleate func(*Header)
	}{
		{"Number", func(h *Header) { h.Number++ }},
		{"ParentHash", func(h *Header) { h.ParentHash = crypto.Keccak256([]byte("other")) }},
		{"BodyHash", func(h *Header) { h.BodyHash = crypto.Keccak256([]byte("other")) }},
		{"Time", func(h *Header) { h.Time = h.Time.Add(time.Second) }},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.testName, func(t *testing.T) {
			other := *h
			tc.malleate(&other)
			assert.NotEqual(t, hash, other.Hash())
		})
	}
}

func TestHeaderValidateBasic(t *testing.T) {
	testCases := []struct {
		testName  string
		malleate  func(*Header)
		expectErr bool
	}{
		{"Make Header", func(h *Header) {}, false},
		{"Genesis Header", func(h *Header) { h.Number = 0; h.ParentHash = nil }, false},
		{"Negative Number", func(h *Header) { h.Number = -1 }, true},
		{"Invalid ParentHash", func(h *Header) { h.ParentHash = []byte{1, 2, 3} }, true},
		{"Missing BodyHash", func(h *Header) { h.BodyHash = nil }, true},
		{"Invalid BodyHash", func(h *Header) { h.BodyHash = []byte{1} }, true},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.testName, func(t *testing.T) {
			header := MakeBlock(3, crypto.Keccak256([]byte("parent")), []byte("payload")).Header
			tc.malleate(header)
			assert.Equal(t, tc.expectErr, header.ValidateBasic() != nil)
		})
	}

	var nilHeader *Header
	require.Error(t, nilHeader.ValidateBasic())
}

func TestNewBlockFromBody(t *testing.T) {
	want := MakeBlock(5, crypto.Keccak256([]byte("parent")), []byte("payload"))

	block, err := NewBlockFromBody(want.Header, want.Body)
	require.NoError(t, err)
	require.Equal(t, want.Header, block.Header)
	require.Equal(t, want.Body, block.Body)
	require.Equal(t, want.Header.Hash(), block.Hash())
	require.EqualValues(t, 5, block.Number())

	_, err = NewBlockFromBody(want.Header, Body("tampered"))
	require.ErrorIs(t, err, ErrBodyMismatch)

	_, err = NewBlockFromBody(nil, want.Body)
	require.Error(t, err)
}

func TestMakeChainLinkage(t *testing.T) {
	blocks := MakeChain(0, 4)
	require.Len(t, blocks, 4)

	for i, b := range blocks {
		require.EqualValues(t, i, b.Number())
		require.NoError(t, b.Header.ValidateBasic())
		if i > 0 {
			require.Equal(t, blocks[i-1].Hash(), b.Header.ParentHash)
		}
	}

	tail := MakeChainFrom(blocks[3].Hash(), 4, 2)
	require.Equal(t, blocks[3].Hash(), tail[0].Header.ParentHash)
	require.EqualValues(t, 4, tail[0].Number())
	require.Equal(t, tail[0].Hash(), tail[1].Header.ParentHash)
}

func TestBlockIdentifierValidateBasic(t *testing.T) {
	testCases := []struct {
		testName  string
		id        BlockIdentifier
		expectErr bool
	}{
		{"Number only", BlockIdentifier{Number: 12}, false},
		{"Hash and number", BlockIdentifier{Hash: crypto.Keccak256([]byte("b")), Number: 12}, false},
		{"Genesis number", BlockIdentifier{Number: 0}, false},
		{"Negative number", BlockIdentifier{Number: -1}, true},
		{"Short hash", BlockIdentifier{Hash: cbytes.HexBytes{1, 2, 3}}, true},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.testName, func(t *testing.T) {
			assert.Equal(t, tc.expectErr, tc.id.ValidateBasic() != nil)
		})
	}
}

func TestValidateHash(t *testing.T) {
	require.NoError(t, ValidateHash(nil))
	require.NoError(t, ValidateHash(crypto.Keccak256([]byte("x"))))
	require.Error(t, ValidateHash([]byte("too short")))
}
