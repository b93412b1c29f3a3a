package common

import (
	"crypto/md5"
	"encoding/binary"
	"fmt"
	"hash"
	"io"
	"os"
)

// MD5 is a 128-bit content fingerprint stored as two words to stay comparable and map-friendly.
// The build engine relies only on equality of digests, not on cryptographic strength.
// A zero value means "absent" (an unreadable or nonexistent file).
//
//goland:noinspection GoSnakeCaseUsage
type MD5 struct {
	B0_7, B8_15 uint64
}

func (h *MD5) IsEmpty() bool {
	return h.B0_7 == 0 && h.B8_15 == 0
}

func (h *MD5) ToHexString() string {
	return fmt.Sprintf("%016x%016x", h.B0_7, h.B8_15)
}

func (h *MD5) FromHexString(hex string) {
	if n, _ := fmt.Sscanf(hex, "%16x%16x", &h.B0_7, &h.B8_15); n != 2 {
		*h = MD5{}
		// if it couldn't be parsed, it would be IsEmpty()
	}
}

func MakeMD5Struct(hasher hash.Hash) MD5 {
	b := hasher.Sum(nil) // len is 16
	return MD5{
		B0_7:  binary.BigEndian.Uint64(b[0:8]),
		B8_15: binary.BigEndian.Uint64(b[8:16]),
	}
}

func GetFileMD5(filePath string) (MD5, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return MD5{}, err
	}
	defer f.Close()

	hasher := md5.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return MD5{}, err
	}
	return MakeMD5Struct(hasher), nil
}

func CalcBufferMD5(buffer []byte) MD5 {
	hasher := md5.New()
	_, _ = hasher.Write(buffer)
	return MakeMD5Struct(hasher)
}
