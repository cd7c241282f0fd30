// Copyright (c) 2024 Polimec Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

// Package byteutil provides byte-level encoding helpers for state keys.
package byteutil

import "encoding/binary"

// Uint32ToBytesBigEndian converts a uint32 to 4 bytes in big-endian
func Uint32ToBytesBigEndian(value uint32) []byte {
	bytes := make([]byte, 4)
	binary.BigEndian.PutUint32(bytes, value)
	return bytes
}

// Uint64ToBytesBigEndian converts a uint64 to 8 bytes in big-endian
func Uint64ToBytesBigEndian(value uint64) []byte {
	bytes := make([]byte, 8)
	binary.BigEndian.PutUint64(bytes, value)
	return bytes
}

// BytesToUint64BigEndian converts 8 bytes in big-endian to uint64
func BytesToUint64BigEndian(value []byte) uint64 {
	return binary.BigEndian.Uint64(value)
}

// Must wraps a call returning ([]byte, error) and panics on error
func Must(d []byte, err error) []byte {
	if err != nil {
		panic(err)
	}
	return d
}
