// Package cache stores completed analysis results keyed by a deterministic
// content hash of the request, so identical re-submissions within the TTL
// skip the full analysis.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/scopeworks/intake/internal/model"
)

// notesPrefixLen bounds how much of the notes participates in the key.
// Matches the downstream idempotence contract: same images, same leading
// notes text, same ZIP.
const notesPrefixLen = 200

// Store is the cache backend interface. Implementations must be safe for
// concurrent use across pipeline runs.
type Store interface {
	Get(ctx context.Context, key string) (*model.StructuredResult, bool, error)
	Set(ctx context.Context, key string, result *model.StructuredResult, ttl time.Duration) error
	DeleteExpired(ctx context.Context) (int, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

// Key computes the deterministic cache key for a request: a hash over the
// image identities, the notes prefix, and the location ZIP. Inline image
// bytes contribute a content digest, so two uploads sharing a filename
// never share a key.
func Key(req model.AnalysisRequest) string {
	h := sha256.New()
	for _, img := range req.Images {
		fmt.Fprintf(h, "img|%s|%s|%s|", img.ID, img.Path, img.URL)
		if len(img.Data) > 0 {
			sum := sha256.Sum256(img.Data)
			h.Write(sum[:])
		}
		fmt.Fprint(h, "\n")
	}
	notes := req.Notes
	if len(notes) > notesPrefixLen {
		notes = notes[:notesPrefixLen]
	}
	fmt.Fprintf(h, "notes|%s\n", notes)
	fmt.Fprintf(h, "zip|%s\n", req.Location.ZIP)
	return hex.EncodeToString(h.Sum(nil))
}
