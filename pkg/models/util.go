package models

import (
	"errors"
	"strconv"
)

var errInvalidCSVRow = errors.New("models: pool CSV row must have 8 columns")

func itoa64(v int64) string {
	return strconv.FormatInt(v, 10)
}

func parseInt64(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}
