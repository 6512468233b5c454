package policy

import "testing"

func TestUnrestrictedAlwaysMatches(t *testing.T) {
	p := CountryPrefs{}
	if !p.Matches(nil) {
		t.Fatal("expected unrestricted policy to match an empty relay list")
	}
}

func TestEmptyRelaysNeverMatchRestricted(t *testing.T) {
	p := CountryPrefs{Exit: "US"}
	if p.Matches(nil) {
		t.Fatal("expected restricted policy to reject an empty relay list")
	}
}

func TestEntryExitCaseInsensitive(t *testing.T) {
	p := CountryPrefs{Entry: "de", Exit: "us"}
	relays := []RelayInfo{
		{Country: "DE"},
		{Country: "FR"},
		{Country: "US"},
	}
	if !p.Matches(relays) {
		t.Fatal("expected case-insensitive entry/exit match to succeed")
	}
}

func TestMiddleRequiresPathLengthThree(t *testing.T) {
	p := CountryPrefs{Middle: "NL"}
	twoHop := []RelayInfo{{Country: "US"}, {Country: "US"}}
	if p.Matches(twoHop) {
		t.Fatal("expected middle constraint to reject a path shorter than 3")
	}

	threeHop := []RelayInfo{{Country: "US"}, {Country: "NL"}, {Country: "US"}}
	if !p.Matches(threeHop) {
		t.Fatal("expected middle constraint to accept a matching 3-hop path")
	}

	fourHop := []RelayInfo{{Country: "US"}, {Country: "NL"}, {Country: "FR"}, {Country: "US"}}
	if p.Matches(fourHop) {
		t.Fatal("expected middle constraint to require every interior hop to match")
	}
}

func TestMiddleAllInteriorHopsMustMatch(t *testing.T) {
	p := CountryPrefs{Middle: "NL"}
	relays := []RelayInfo{{Country: "US"}, {Country: "NL"}, {Country: "NL"}, {Country: "US"}}
	if !p.Matches(relays) {
		t.Fatal("expected all-interior-hops-match case to succeed")
	}
}

func TestExitMismatch(t *testing.T) {
	p := CountryPrefs{Exit: "US"}
	relays := []RelayInfo{{Country: "US"}, {Country: "CA"}}
	if p.Matches(relays) {
		t.Fatal("expected exit-country mismatch to fail")
	}
}
