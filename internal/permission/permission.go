// Package permission implements the capability model that gates who may create, approve or
// mutate orders and users.
//
// Capabilities are handled as a named set in memory and only collapse to the integer access
// mask at the storage boundary (Encode / Decode).
package permission

import (
	"fmt"
	"sort"
	"strings"
)

// Capability is a single named permission.
type Capability string

const (
	ReadAll               Capability = "read_all"
	ApproveApplications   Capability = "approve_applications"
	ManipulatePurchases   Capability = "manipulate_purchases"
	ManipulateWithdrawals Capability = "manipulate_withdrawals"
	ManipulateJobOrders   Capability = "manipulate_job_orders"
	ManipulateMaintenance Capability = "manipulate_maintenance"
	ManipulateMissions    Capability = "manipulate_missions"
	ManipulateUsers       Capability = "manipulate_users"
	ApproveAsSupervisor   Capability = "approve_as_supervisor"
	ApproveAsManager      Capability = "approve_as_manager"

	// All grants every capability, present and future.
	All Capability = "all"
)

// AllMask is the stored value of the All capability: the bitwise complement of zero.
const AllMask int64 = ^int64(0)

// bits assigns each named capability one distinct bit of the stored mask.
var bits = map[Capability]int64{
	ReadAll:               1 << 0,
	ApproveApplications:   1 << 1,
	ManipulatePurchases:   1 << 2,
	ManipulateWithdrawals: 1 << 3,
	ManipulateJobOrders:   1 << 4,
	ManipulateMaintenance: 1 << 5,
	ManipulateMissions:    1 << 6,
	ManipulateUsers:       1 << 7,
	ApproveAsSupervisor:   1 << 8,
	ApproveAsManager:      1 << 9,
}

// Set is an immutable set of capabilities. The zero value is None.
type Set struct {
	all  bool
	caps map[Capability]struct{}
}

// None is the empty capability set.
var None = Set{}

// NewSet builds a set from capabilities. Passing All yields the super-user set.
func NewSet(caps ...Capability) Set {
	s := Set{caps: make(map[Capability]struct{}, len(caps))}
	for _, c := range caps {
		if c == All {
			return Set{all: true}
		}
		s.caps[c] = struct{}{}
	}
	return s
}

// IsAll reports whether the set is the super-user set.
func (s Set) IsAll() bool { return s.all }

// Has reports whether a single capability is granted.
func (s Set) Has(c Capability) bool {
	if s.all {
		return true
	}
	if c == All {
		return false
	}
	_, ok := s.caps[c]
	return ok
}

// With returns a copy of s with the given capabilities added.
func (s Set) With(caps ...Capability) Set {
	if s.all {
		return s
	}
	return NewSet(append(s.Capabilities(), caps...)...)
}

// Capabilities lists the granted capabilities in stable order.
func (s Set) Capabilities() []Capability {
	if s.all {
		return []Capability{All}
	}
	out := make([]Capability, 0, len(s.caps))
	for c := range s.caps {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s Set) String() string {
	caps := s.Capabilities()
	names := make([]string, len(caps))
	for i, c := range caps {
		names[i] = string(c)
	}
	return "[" + strings.Join(names, ",") + "]"
}

// Equal compares two sets by content.
func (s Set) Equal(other Set) bool {
	return Encode(s) == Encode(other)
}

// HasAll reports whether every requested capability is granted. It is an AND check: one
// missing capability fails the whole request. An empty request is always satisfied.
func HasAll(s Set, caps ...Capability) bool {
	for _, c := range caps {
		if !s.Has(c) {
			return false
		}
	}
	return true
}

// Missing returns the requested capabilities that s does not grant.
func Missing(s Set, caps ...Capability) []Capability {
	var out []Capability
	for _, c := range caps {
		if !s.Has(c) {
			out = append(out, c)
		}
	}
	return out
}

// Encode converts a set to the integer access mask stored with the user.
func Encode(s Set) int64 {
	if s.all {
		return AllMask
	}
	var mask int64
	for c := range s.caps {
		mask |= bits[c]
	}
	return mask
}

// Decode converts a stored access mask into a set. Unknown bits are ignored.
func Decode(mask int64) Set {
	if mask == AllMask {
		return Set{all: true}
	}
	s := Set{caps: make(map[Capability]struct{})}
	for c, bit := range bits {
		if mask&bit == bit {
			s.caps[c] = struct{}{}
		}
	}
	return s
}

// HasAllMask applies the HasAll check directly to a stored mask: (mask & cap) == cap for
// every requested capability.
func HasAllMask(mask int64, caps ...Capability) bool {
	for _, c := range caps {
		if c == All {
			if mask != AllMask {
				return false
			}
			continue
		}
		bit, ok := bits[c]
		if !ok || mask&bit != bit {
			return false
		}
	}
	return true
}

// ParseCapability resolves a capability name.
func ParseCapability(name string) (Capability, error) {
	c := Capability(strings.ToLower(strings.TrimSpace(name)))
	if c == All {
		return c, nil
	}
	if _, ok := bits[c]; !ok {
		return "", fmt.Errorf("unknown capability %q", name)
	}
	return c, nil
}
