package auth_test

import "strconv"

func uintToString(n uint) string {
	return strconv.FormatUint(uint64(n), 10)
}
