package r2client

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
)

func TestCompressDecompress(t *testing.T) {
	t.Parallel()

	var ledger strings.Builder
	for i := range 5000 {
		fmt.Fprintf(&ledger, "abc%04d\n", i)
	}

	compressed, err := Compress(strings.NewReader(ledger.String()))
	if err != nil {
		t.Fatalf("Compress() error = %v", err)
	}
	if len(compressed) >= ledger.Len() {
		t.Errorf("compressed size %d >= original %d", len(compressed), ledger.Len())
	}

	var out bytes.Buffer
	n, err := Decompress(&out, bytes.NewReader(compressed))
	if err != nil {
		t.Fatalf("Decompress() error = %v", err)
	}
	if n != int64(ledger.Len()) || out.String() != ledger.String() {
		t.Errorf("round trip mismatch: got %d bytes, want %d", n, ledger.Len())
	}
}

func TestCompress_Empty(t *testing.T) {
	t.Parallel()

	compressed, err := Compress(strings.NewReader(""))
	if err != nil {
		t.Fatalf("Compress() error = %v", err)
	}
	var out bytes.Buffer
	if _, err := Decompress(&out, bytes.NewReader(compressed)); err != nil {
		t.Fatalf("Decompress() error = %v", err)
	}
	if out.Len() != 0 {
		t.Errorf("expected empty output, got %q", out.String())
	}
}

func TestDecompress_Garbage(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	if _, err := Decompress(&out, strings.NewReader("definitely not zstd")); err == nil {
		t.Error("expected error decoding garbage")
	}
}

func TestErrorClassification(t *testing.T) {
	t.Parallel()

	respErr := func(status int) error {
		return &smithyhttp.ResponseError{
			Response: &smithyhttp.Response{Response: &http.Response{StatusCode: status}},
			Err:      errors.New("boom"),
		}
	}

	tests := []struct {
		name         string
		err          error
		notFound     bool
		precondition bool
	}{
		{"api NoSuchKey", &smithy.GenericAPIError{Code: "NoSuchKey"}, true, false},
		{"api PreconditionFailed", &smithy.GenericAPIError{Code: "PreconditionFailed"}, false, true},
		{"http 404", respErr(http.StatusNotFound), true, false},
		{"http 412", respErr(http.StatusPreconditionFailed), false, true},
		{"http 500", respErr(http.StatusInternalServerError), false, false},
		{"plain", errors.New("connection reset"), false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isNotFound(tt.err); got != tt.notFound {
				t.Errorf("isNotFound() = %v, want %v", got, tt.notFound)
			}
			if got := isPreconditionFailed(tt.err); got != tt.precondition {
				t.Errorf("isPreconditionFailed() = %v, want %v", got, tt.precondition)
			}
		})
	}
}
