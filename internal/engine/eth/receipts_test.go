package eth

import (
	"encoding/hex"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// encodeErrorString builds the hex payload a node returns for a Solidity
// revert with a reason: the Error(string) selector plus ABI-encoded string.
func encodeErrorString(reason string) string {
	data := []byte{0x08, 0xc3, 0x79, 0xa0}

	word := func(n int) []byte {
		w := make([]byte, 32)
		w[31] = byte(n)
		return w
	}
	data = append(data, word(0x20)...)        // offset to string
	data = append(data, word(len(reason))...) // string length

	padded := make([]byte, (len(reason)+31)/32*32)
	copy(padded, reason)
	data = append(data, padded...)

	return "0x" + hex.EncodeToString(data)
}

func TestDecodeRevertReason(t *testing.T) {
	reason, ok := decodeRevertReason(encodeErrorString("Market already resolved"))
	require.True(t, ok)
	assert.Equal(t, "Market already resolved", reason)

	reason, ok = decodeRevertReason(encodeErrorString("x"))
	require.True(t, ok)
	assert.Equal(t, "x", reason)
}

func TestDecodeRevertReason_Rejects(t *testing.T) {
	cases := []struct {
		name string
		in   string
	}{
		{"not hex", "0xzz"},
		{"empty", "0x"},
		{"wrong selector", "0xdeadbeef" + "00"},
		{"truncated payload", "0x08c379a0" + "0000"},
		{"length past payload", func() string {
			s := encodeErrorString("hi")
			// Overwrite the length word's low byte to claim 255 bytes.
			return s[:len(s)-64-2] + "ff" + s[len(s)-64:]
		}()},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, ok := decodeRevertReason(tc.in)
			assert.False(t, ok)
		})
	}
}

// dataError mimics the rpc error type that carries ABI revert data.
type dataError struct {
	msg  string
	data interface{}
}

func (e *dataError) Error() string          { return e.msg }
func (e *dataError) ErrorData() interface{} { return e.data }

func TestRevertText(t *testing.T) {
	withData := &dataError{
		msg:  "execution reverted",
		data: encodeErrorString("Only oracle can report"),
	}
	assert.Equal(t, "Only oracle can report", revertText(withData))

	// Wrapped errors still surface the reason.
	assert.Equal(t, "Only oracle can report", revertText(errors.Join(withData)))

	// Without decodable data the node's message passes through verbatim.
	plain := errors.New("execution reverted: something opaque")
	assert.Equal(t, "execution reverted: something opaque", revertText(plain))

	noString := &dataError{msg: "execution reverted", data: 42}
	assert.Equal(t, "execution reverted", revertText(noString))
}
