// Package pool stores the local cache of unused license keys, partitioned
// by license class. The export stays authoritative; this is only a cache.
package pool

import (
	"licensekeys-bot/internal/license"
)

type Pool struct {
	Monthly  []string `json:"monthly"`
	Lifetime []string `json:"lifetime"`
}

// Empty returns a pool whose buckets encode as [] rather than null.
func Empty() Pool {
	return Pool{Monthly: []string{}, Lifetime: []string{}}
}

func (p *Pool) bucket(c license.Class) *[]string {
	if c.Bucket() == license.ClassLifetime {
		return &p.Lifetime
	}
	return &p.Monthly
}

// Keys returns the bucket for c. Unknown maps to Monthly.
func (p Pool) Keys(c license.Class) []string {
	return *p.bucket(c)
}

func (p Pool) Len(c license.Class) int {
	return len(p.Keys(c))
}

func (p Pool) Contains(c license.Class, key string) bool {
	for _, k := range p.Keys(c) {
		if k == key {
			return true
		}
	}
	return false
}

func (p *Pool) Add(c license.Class, key string) {
	b := p.bucket(c)
	*b = append(*b, key)
}

// TakeAt removes and returns the key at index i of c's bucket by moving the
// last element into its place. Order of the remaining keys is not kept.
func (p *Pool) TakeAt(c license.Class, i int) string {
	b := p.bucket(c)
	keys := *b
	key := keys[i]
	last := len(keys) - 1
	keys[i] = keys[last]
	*b = keys[:last]
	return key
}

// Remove deletes the first exact match of key, searching Monthly before
// Lifetime, and reports which bucket held it.
func (p *Pool) Remove(key string) (license.Class, bool) {
	for _, c := range []license.Class{license.ClassMonthly, license.ClassLifetime} {
		b := p.bucket(c)
		for i, k := range *b {
			if k == key {
				*b = append((*b)[:i], (*b)[i+1:]...)
				return c, true
			}
		}
	}
	return "", false
}

func (p *Pool) normalize() {
	if p.Monthly == nil {
		p.Monthly = []string{}
	}
	if p.Lifetime == nil {
		p.Lifetime = []string{}
	}
}
