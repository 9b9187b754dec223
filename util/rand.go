package util

import (
	"crypto/rand"
	"encoding/base64"
)

func RandomString(n int) string {
	b := make([]byte, n)
	rand.Read(b)
	return base64.URLEncoding.EncodeToString(b)[:n]
}
