// Package ipfilter implements source-address allow-list matching for the
// gateway's admission gate. Ranges are IPv4 CIDR expressions; an expression
// without a prefix length is treated as an exact /32 match.
package ipfilter

import (
	"fmt"
	"strconv"
	"strings"
)

// Range is a parsed IPv4 network range.
type Range struct {
	network uint32
	mask    uint32
	// Expr is the original configured expression, kept for logging.
	Expr string
}

// ParseRange parses an expression of the form "address[/prefix]". A missing
// prefix means /32.
func ParseRange(expr string) (Range, error) {
	expr = strings.TrimSpace(expr)
	addr := expr
	prefix := 32
	if i := strings.Index(expr, "/"); i >= 0 {
		addr = expr[:i]
		p, err := strconv.Atoi(expr[i+1:])
		if err != nil || p < 0 || p > 32 {
			return Range{}, fmt.Errorf("invalid prefix length in %q", expr)
		}
		prefix = p
	}

	network, err := parseIPv4(addr)
	if err != nil {
		return Range{}, err
	}

	var mask uint32
	if prefix > 0 {
		mask = ^uint32(0) << (32 - prefix)
	}

	return Range{network: network, mask: mask, Expr: expr}, nil
}

// Contains reports whether addr falls inside the range. A malformed address
// never matches.
func (r Range) Contains(addr string) bool {
	ip, err := parseIPv4(NormalizeAddr(addr))
	if err != nil {
		return false
	}
	return ip&r.mask == r.network&r.mask
}

// List is an ordered set of ranges. Matching is a disjunction, so order does
// not affect the outcome.
type List []Range

// ParseList parses each expression, dropping malformed entries. The returned
// slice of errors reports the dropped entries so the caller can log them; a
// malformed entry must degrade to a non-match, never block startup or grant
// access.
func ParseList(exprs []string) (List, []error) {
	var list List
	var errs []error
	for _, expr := range exprs {
		if strings.TrimSpace(expr) == "" {
			continue
		}
		r, err := ParseRange(expr)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		list = append(list, r)
	}
	return list, errs
}

// Match reports whether addr is contained in at least one range. An empty
// list matches nothing; the caller decides whether an empty list means "no
// restriction".
func (l List) Match(addr string) bool {
	for _, r := range l {
		if r.Contains(addr) {
			return true
		}
	}
	return false
}

// NormalizeAddr folds the IPv6 loopback onto its IPv4 equivalent and strips
// surrounding whitespace. The records platform fronts this gateway with an
// IPv4-only proxy, so loopback is the only IPv6 form seen in practice.
func NormalizeAddr(addr string) string {
	addr = strings.TrimSpace(addr)
	if addr == "::1" {
		return "127.0.0.1"
	}
	return addr
}

func parseIPv4(s string) (uint32, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 4 {
		return 0, fmt.Errorf("invalid IPv4 address %q", s)
	}
	var ip uint32
	for _, part := range parts {
		octet, err := strconv.Atoi(part)
		if err != nil || octet < 0 || octet > 255 || (len(part) > 1 && part[0] == '0') {
			return 0, fmt.Errorf("invalid IPv4 address %q", s)
		}
		ip = ip<<8 | uint32(octet)
	}
	return ip, nil
}
