package geoip

import serrors "github.com/opd-ai/go-tor/pkg/errors"

// ErrInvalidAddress is returned when an address cannot be parsed as a
// socket address or bare IP literal, or contains a literal '?'.
var ErrInvalidAddress = serrors.New(serrors.KindLookup, "invalid address")

// ErrNotFound is returned when a parsed address has no matching range
// in the active table.
var ErrNotFound = serrors.New(serrors.KindLookup, "country code not found")
