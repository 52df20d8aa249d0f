// Package actors defines the builtin actor type discriminants carried in
// bundle manifests.
//
// The set is closed: values outside 1..11 are rejected rather than passed
// through, so a malformed manifest cannot smuggle an unknown type into a host.
package actors

import (
	"errors"
	"fmt"
)

// Type identifies which on-chain actor kind a code block implements.
type Type uint32

const (
	System Type = iota + 1
	Init
	Cron
	Account
	Power
	Miner
	Market
	PaymentChannel
	Multisig
	Reward
	VerifiedRegistry
)

// ErrUnknownType is returned for discriminants outside the known set.
var ErrUnknownType = errors.New("actors: unknown actor type")

var names = [...]string{
	System:           "system",
	Init:             "init",
	Cron:             "cron",
	Account:          "account",
	Power:            "storagepower",
	Miner:            "storageminer",
	Market:           "storagemarket",
	PaymentChannel:   "paymentchannel",
	Multisig:         "multisig",
	Reward:           "reward",
	VerifiedRegistry: "verifiedregistry",
}

// All returns every known type in ascending order.
func All() []Type {
	out := make([]Type, 0, len(names)-1)
	for t := System; t <= VerifiedRegistry; t++ {
		out = append(out, t)
	}
	return out
}

// Known reports whether t is in the closed set.
func (t Type) Known() bool { return t >= System && t <= VerifiedRegistry }

// Name returns the canonical bundle name for t.
func (t Type) Name() string {
	if !t.Known() {
		return ""
	}
	return names[t]
}

func (t Type) String() string {
	if !t.Known() {
		return fmt.Sprintf("unknown(%d)", uint32(t))
	}
	return names[t]
}

// FromUint64 converts a wire integer to a Type.
func FromUint64(v uint64) (Type, error) {
	if v < uint64(System) || v > uint64(VerifiedRegistry) {
		return 0, fmt.Errorf("%w: %d", ErrUnknownType, v)
	}
	return Type(v), nil
}

// ParseName maps a canonical name back to its Type.
func ParseName(name string) (Type, error) {
	for t := System; t <= VerifiedRegistry; t++ {
		if names[t] == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownType, name)
}
