/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */
// Package chain validates the base58 identifiers the ledger accepts from the
// chain listener and from users: transaction signatures and wallet addresses.
package chain

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/base58"
)

const (
	SignatureLength = 64
	AddressLength   = 32
)

var ErrInvalidEncoding = errors.New("invalid base58 value")

func decode(value string, want int, kind string) error {
	if value == "" {
		return fmt.Errorf("%w: %s is empty", ErrInvalidEncoding, kind)
	}
	// base58.Decode returns an empty slice for characters outside the alphabet
	raw := base58.Decode(value)
	if len(raw) != want {
		return fmt.Errorf("%w: %s decodes to %d bytes, want %d", ErrInvalidEncoding, kind, len(raw), want)
	}
	return nil
}

func ValidateSignature(signature string) error {
	return decode(signature, SignatureLength, "signature")
}

func ValidateAddress(address string) error {
	return decode(address, AddressLength, "address")
}
