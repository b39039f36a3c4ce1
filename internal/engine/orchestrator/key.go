package orchestrator

import (
	"fmt"
	"io"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/wasmblock/internal/core/domain"
)

// Key computes the cache key of a block built by backendID with the effective toolchain args
// and the post-processing applied to its modules.
// Every field is length-prefixed, so no combination of field contents can produce another's encoding.
// The block name and line never take part.
func Key(backendID string, block domain.SourceBlock, args []string, post ...string) domain.CacheKey {
	h := xxhash.New()

	writeField(h, backendID)
	writeField(h, domain.NormalizeSource(block.Source))
	writeField(h, strconv.FormatBool(block.Comptime))
	writeList(h, block.Exports)
	writeList(h, args)
	writeList(h, post)

	return domain.CacheKey{
		Backend: backendID,
		Digest:  fmt.Sprintf("%016x", h.Sum64()),
	}
}

func writeField(w io.Writer, s string) {
	_, _ = io.WriteString(w, strconv.Itoa(len(s)))
	_, _ = io.WriteString(w, ":")
	_, _ = io.WriteString(w, s)
}

func writeList(w io.Writer, items []string) {
	_, _ = io.WriteString(w, "#"+strconv.Itoa(len(items))+":")
	for _, s := range items {
		writeField(w, s)
	}
}
