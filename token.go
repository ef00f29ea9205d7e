package featureql

import (
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/hugr-lab/featureql/internal/msgpack"
	"github.com/hugr-lab/featureql/internal/serialize"
)

// PageToken is an opaque continuation marker for paginated record queries.
// It pins the layer and the next result window; the client replays the rest
// of the original parameters, and BuildQuery re-validates them, so a token
// grants no access the plain parameters would not.
type PageToken struct {
	// Layer is the layer name the token was issued for.
	Layer string `msgpack:"l"`

	// Offset is where the next page starts.
	Offset int64 `msgpack:"o"`

	// Limit is the page size, zero when the original query had none.
	Limit int64 `msgpack:"n,omitempty"`

	// Issued records when the token was minted, for expiry policies in the
	// protocol layer.
	Issued time.Time `msgpack:"t"`
}

var (
	tokenOnce  sync.Once
	tokenComp  *serialize.Compressor
	tokenDecom *serialize.Decompressor
	tokenErr   error
)

func tokenCodecs() (*serialize.Compressor, *serialize.Decompressor, error) {
	tokenOnce.Do(func() {
		tokenComp, tokenErr = serialize.NewCompressor()
		if tokenErr != nil {
			return
		}
		tokenDecom, tokenErr = serialize.NewDecompressor()
	})
	return tokenComp, tokenDecom, tokenErr
}

// Encode serializes the token to a URL-safe string: msgpack, then zstd,
// then unpadded base64.
func (t PageToken) Encode() (string, error) {
	comp, _, err := tokenCodecs()
	if err != nil {
		return "", err
	}
	packed, err := msgpack.Encode(t)
	if err != nil {
		return "", fmt.Errorf("encode token: %w", err)
	}
	compressed, err := comp.Compress(packed)
	if err != nil {
		return "", fmt.Errorf("encode token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(compressed), nil
}

// DecodeToken reverses Encode. Any malformed input fails with a ParseError;
// the detail never echoes the payload, which is opaque by contract.
func DecodeToken(s string) (PageToken, error) {
	if s == "" {
		return PageToken{}, &ParseError{Parameter: "token", Detail: "empty token"}
	}
	_, decom, err := tokenCodecs()
	if err != nil {
		return PageToken{}, err
	}
	compressed, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return PageToken{}, &ParseError{Parameter: "token", Detail: "not valid base64"}
	}
	packed, err := decom.Decompress(compressed)
	if err != nil {
		return PageToken{}, &ParseError{Parameter: "token", Detail: "corrupt token payload"}
	}
	var t PageToken
	if err := msgpack.Decode(packed, &t); err != nil {
		return PageToken{}, &ParseError{Parameter: "token", Detail: "corrupt token payload"}
	}
	if t.Layer == "" {
		return PageToken{}, &ParseError{Parameter: "token", Detail: "token names no layer"}
	}
	return t, nil
}

// NextPageToken mints the continuation token for the page a truncated
// stream just produced. Returns the zero token and false when the stream
// completed, since there is nothing to continue.
func NextPageToken(q *FeatureQuery, s *ResultStream) (PageToken, bool) {
	if !s.Truncated() {
		return PageToken{}, false
	}
	t := PageToken{
		Layer:  q.Layer.Name,
		Offset: q.Pagination.Offset + s.Matched(),
		Issued: time.Now().UTC(),
	}
	if q.Pagination.LimitSet {
		t.Limit = q.Pagination.Limit
	}
	return t, true
}

// Apply folds the token's window into a query built from the replayed
// parameters. The token must target the query's layer.
func (t PageToken) Apply(q *FeatureQuery) (*FeatureQuery, error) {
	if t.Layer != q.Layer.Name {
		return nil, &ValidationError{
			Field:  "token",
			Detail: fmt.Sprintf("token targets layer %q, query targets %q", t.Layer, q.Layer.Name),
		}
	}
	out := q.WithOffset(t.Offset)
	if t.Limit > 0 {
		out = out.WithLimit(t.Limit)
	}
	return out, nil
}
