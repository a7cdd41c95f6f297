/*
 * MIT License
 *
 * Copyright (c) 2023 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package dnscache memoizes hostname resolutions for the lifetime of
// the process. It backs the SOCKS pinned-destination path, where one
// host is resolved once and reused for every connection. Cache writes
// are idempotent, so concurrent misses racing on the same host are
// benign.
package dnscache

import (
	"context"

	libatm "github.com/nabbar/golib/atomic"
)

// Cache resolves hostnames to IP literals with memoization.
type Cache interface {
	// Resolve returns the cached IP literal for host, looking it up
	// once on a miss: the first IPv4 address the resolver reports, or,
	// for a host without any IPv4 address, the first address of
	// another family. IP literals are returned unchanged.
	Resolve(ctx context.Context, host string) (string, error)

	// Len returns the number of cached entries.
	Len() int
}

// New returns an empty Cache.
func New() Cache {
	return &dnc{
		c: libatm.NewMapTyped[string, string](),
	}
}
