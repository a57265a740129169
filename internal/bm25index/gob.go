package bm25index

import (
	"encoding/gob"
	"io"
)

func gobEncode(w io.Writer, v any) error {
	return gob.NewEncoder(w).Encode(v)
}

func gobDecode(r io.Reader, v any) error {
	return gob.NewDecoder(r).Decode(v)
}
