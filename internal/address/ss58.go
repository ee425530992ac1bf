// Package address parses and validates Substrate SS58 addresses and pulls
// them out of free-text chat commands.
package address

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"
)

// Largest network prefix that fits the two-byte SS58 encoding.
const maxNetwork = 16383

var ss58Prefix = []byte("SS58PRE")

var (
	ErrEncoding = errors.New("address: invalid base58")
	ErrLength   = errors.New("address: invalid length")
	ErrPrefix   = errors.New("address: reserved prefix")
	ErrChecksum = errors.New("address: checksum mismatch")
	ErrNetwork  = errors.New("address: network mismatch")
)

// Address is a validated SS58 string together with the account id it
// encodes and the network prefix it was encoded for.
type Address struct {
	text      string
	accountID []byte
	network   uint16
}

func (a Address) String() string { return a.text }

// AccountID returns a copy of the raw account id bytes.
func (a Address) AccountID() []byte { return bytes.Clone(a.accountID) }

// Network returns the SS58 address type the address was encoded with.
func (a Address) Network() uint16 { return a.network }

// Decode parses an SS58 string without checking the network prefix.
func Decode(s string) (Address, error) {
	data, err := base58.Decode(s)
	if err != nil || len(data) < 2 {
		return Address{}, ErrEncoding
	}
	if data[0]&0b1000_0000 != 0 || data[0] == 46 || data[0] == 47 {
		return Address{}, ErrPrefix
	}

	prefixLen := 1
	network := uint16(data[0])
	if data[0]&0b0100_0000 != 0 {
		prefixLen = 2
		lower := (data[0]&0b0011_1111)<<2 | data[1]>>6
		upper := data[1] & 0b0011_1111
		network = uint16(lower) | uint16(upper)<<8
	}

	// 32 and 33 byte account ids carry a two-byte checksum, shorter ones one.
	checksumLen := 1
	if n := len(data) - prefixLen; n == 34 || n == 35 {
		checksumLen = 2
	}
	accountLen := len(data) - prefixLen - checksumLen
	if !validAccountLength(accountLen) {
		return Address{}, ErrLength
	}

	body := data[:len(data)-checksumLen]
	sum := checksum(body)
	if !bytes.Equal(sum[:checksumLen], data[len(data)-checksumLen:]) {
		return Address{}, ErrChecksum
	}
	return Address{
		text:      s,
		accountID: bytes.Clone(data[prefixLen : prefixLen+accountLen]),
		network:   network,
	}, nil
}

// Parse decodes s and requires it to be encoded for network.
func Parse(s string, network uint16) (Address, error) {
	a, err := Decode(s)
	if err != nil {
		return Address{}, err
	}
	if a.network != network {
		return Address{}, fmt.Errorf("%w: got %d, want %d", ErrNetwork, a.network, network)
	}
	return a, nil
}

// Encode renders accountID as an SS58 string for network.
func Encode(accountID []byte, network uint16) (string, error) {
	if !validAccountLength(len(accountID)) {
		return "", ErrLength
	}
	if network > maxNetwork || network == 46 || network == 47 {
		return "", ErrPrefix
	}

	var buf []byte
	if network < 64 {
		buf = append(buf, byte(network))
	} else {
		buf = append(buf,
			byte((network&0b0000_0000_1111_1100)>>2)|0b0100_0000,
			byte(network>>8)|byte((network&0b0000_0000_0000_0011)<<6),
		)
	}
	buf = append(buf, accountID...)

	checksumLen := 1
	if len(accountID) == 32 || len(accountID) == 33 {
		checksumLen = 2
	}
	sum := checksum(buf)
	buf = append(buf, sum[:checksumLen]...)
	return base58.Encode(buf), nil
}

// Valid reports whether candidate is an SS58 address for network. It has
// the Checker signature and is the checker used in production.
func Valid(candidate string, network uint16) bool {
	_, err := Parse(candidate, network)
	return err == nil
}

func validAccountLength(n int) bool {
	switch n {
	case 1, 2, 4, 8, 32, 33:
		return true
	}
	return false
}

func checksum(body []byte) [blake2b.Size]byte {
	input := make([]byte, 0, len(ss58Prefix)+len(body))
	input = append(input, ss58Prefix...)
	input = append(input, body...)
	return blake2b.Sum512(input)
}
