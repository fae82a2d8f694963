package model

import "fmt"

// FailureKind classifies why a URL could not be crawled.
type FailureKind int

const (
	// FailureDownload means the page could not be fetched, including HTTP
	// error statuses.
	FailureDownload FailureKind = iota

	// FailureMalformedURL means no host could be derived from the URL.
	FailureMalformedURL
)

// String returns the stable name used in reports and the archive.
func (k FailureKind) String() string {
	switch k {
	case FailureDownload:
		return "download_error"
	case FailureMalformedURL:
		return "malformed_url"
	default:
		return "unknown"
	}
}

// MarshalText encodes the kind by name.
func (k FailureKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name written by MarshalText.
func (k *FailureKind) UnmarshalText(text []byte) error {
	kind, err := ParseFailureKind(string(text))
	if err != nil {
		return err
	}
	*k = kind
	return nil
}

// ParseFailureKind converts a name produced by String back into a kind.
func ParseFailureKind(name string) (FailureKind, error) {
	switch name {
	case "download_error":
		return FailureDownload, nil
	case "malformed_url":
		return FailureMalformedURL, nil
	default:
		return 0, fmt.Errorf("unknown failure kind %q", name)
	}
}
