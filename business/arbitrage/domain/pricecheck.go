package domain

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/flashloan-arb/internal/apperror"
)

// Price-check wire format. The response is two little-endian uint64 prices
// scaled by fixedpoint.PricePrecision. The request is a discriminator byte,
// the LE amount and the input and output token addresses.
const (
	PriceCheckSize        = 16
	PriceCheckRequestSize = 1 + 8 + common.AddressLength*2

	PriceCheckDiscriminator byte = 0x00
)

// PriceCheckRequest asks for both venue prices of a pair at Amount.
type PriceCheckRequest struct {
	Amount uint64
	Input  common.Address
	Output common.Address
}

// EncodePriceCheck writes venue A and venue B prices.
func EncodePriceCheck(priceA, priceB uint64) []byte {
	buf := make([]byte, PriceCheckSize)
	binary.LittleEndian.PutUint64(buf[0:8], priceA)
	binary.LittleEndian.PutUint64(buf[8:16], priceB)
	return buf
}

// DecodePriceCheck reads venue A and venue B prices. Trailing bytes are
// ignored.
func DecodePriceCheck(buf []byte) (priceA, priceB uint64, err error) {
	if len(buf) < PriceCheckSize {
		return 0, 0, apperror.New(apperror.CodeInvalidFormat,
			apperror.WithContext(fmt.Sprintf("price check buffer has %d bytes, need %d", len(buf), PriceCheckSize)))
	}
	return binary.LittleEndian.Uint64(buf[0:8]), binary.LittleEndian.Uint64(buf[8:16]), nil
}

// Encode serializes the request as call data.
func (r PriceCheckRequest) Encode() []byte {
	buf := make([]byte, 0, PriceCheckRequestSize)
	buf = append(buf, PriceCheckDiscriminator)
	buf = binary.LittleEndian.AppendUint64(buf, r.Amount)
	buf = append(buf, r.Input.Bytes()...)
	buf = append(buf, r.Output.Bytes()...)
	return buf
}

// DecodePriceCheckRequest parses call data written by Encode.
func DecodePriceCheckRequest(data []byte) (PriceCheckRequest, error) {
	if len(data) < PriceCheckRequestSize {
		return PriceCheckRequest{}, apperror.New(apperror.CodeInvalidFormat,
			apperror.WithContext(fmt.Sprintf("price check request has %d bytes, need %d", len(data), PriceCheckRequestSize)))
	}
	if data[0] != PriceCheckDiscriminator {
		return PriceCheckRequest{}, apperror.New(apperror.CodeInvalidFormat,
			apperror.WithContext(fmt.Sprintf("unknown instruction 0x%02x", data[0])))
	}
	return PriceCheckRequest{
		Amount: binary.LittleEndian.Uint64(data[1:9]),
		Input:  common.BytesToAddress(data[9:29]),
		Output: common.BytesToAddress(data[29:49]),
	}, nil
}
