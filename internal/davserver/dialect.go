// Copyright 2024 Michael J. Fromberger. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package davserver

import "strings"

// DialectPolicy lets a client's User-Agent relax parts of the protocol
// that real clients are known to get wrong. ensure_depth_ok_for_dir_ops
// and ensure_lock_ok_for_proppatch may each override the RFC-strict
// default check; composing several policies with Compose lets them OR
// together; the RFC check wins only if every member defers to it.
type DialectPolicy interface {
	// DepthOKForDirOp reports whether a MOVE/COPY on a directory without
	// an explicit "Depth: infinity" header should be accepted. defaultOK is
	// the result of the RFC-strict check (true only when Depth was
	// "infinity"; an absent Depth header counts as not infinity).
	DepthOKForDirOp(userAgent string, defaultOK bool) bool

	// LockOKForProppatch reports whether a PROPPATCH missing a
	// Lock-Token header should be allowed through anyway.
	LockOKForProppatch(userAgent string, defaultOK bool) bool
}

// Strict never relaxes anything; it always defers to the caller-supplied
// default check.
type Strict struct{}

func (Strict) DepthOKForDirOp(_ string, defaultOK bool) bool    { return defaultOK }
func (Strict) LockOKForProppatch(_ string, defaultOK bool) bool { return defaultOK }

// uaDialect relaxes Depth for User-Agent substrings known to omit it on
// directory MOVE, and optionally absorbs missing Lock-Token for clients
// known to skip it on PROPPATCH.
type uaDialect struct {
	depthSubstrings []string
	lockSubstrings  []string
}

func (d uaDialect) DepthOKForDirOp(userAgent string, defaultOK bool) bool {
	if defaultOK {
		return true
	}
	return containsAny(userAgent, d.depthSubstrings)
}

func (d uaDialect) LockOKForProppatch(userAgent string, defaultOK bool) bool {
	if defaultOK {
		return true
	}
	return containsAny(userAgent, d.lockSubstrings)
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

// Finder recognizes macOS Finder / CFNetwork WebDAV clients, which
// routinely omit Depth on a directory rename.
func Finder() DialectPolicy {
	return uaDialect{depthSubstrings: []string{"WebDAVFS", "CFNetwork", "Darwin"}}
}

// MiniRedir recognizes the Windows WebDAV mini-redirector.
func MiniRedir() DialectPolicy {
	return uaDialect{depthSubstrings: []string{"Microsoft-WebDAV-MiniRedir", "DavClnt"}}
}

// GVFS recognizes Linux desktop WebDAV clients.
func GVFS() DialectPolicy {
	return uaDialect{depthSubstrings: []string{"gvfs", "gio", "cadaver", "davfs2"}}
}

// Office recognizes Microsoft Office's WebDAV client, which sometimes
// issues PROPPATCH without the Lock-Token it was just granted.
func Office() DialectPolicy {
	return uaDialect{lockSubstrings: []string{"Microsoft Office", "ms-office", "MSOffice"}}
}

// composite ORs several policies: any member accepting is enough.
type composite []DialectPolicy

// Compose combines several dialect policies; the result relaxes a check
// whenever any member policy does.
func Compose(policies ...DialectPolicy) DialectPolicy {
	return composite(policies)
}

func (c composite) DepthOKForDirOp(userAgent string, defaultOK bool) bool {
	for _, p := range c {
		if p.DepthOKForDirOp(userAgent, defaultOK) {
			return true
		}
	}
	return defaultOK
}

func (c composite) LockOKForProppatch(userAgent string, defaultOK bool) bool {
	for _, p := range c {
		if p.LockOKForProppatch(userAgent, defaultOK) {
			return true
		}
	}
	return defaultOK
}

// Default composes the standard built-in dialects recognized by this
// server: Finder, the Windows mini-redirector, Linux desktop clients,
// and Office's lock-token leniency.
func Default() DialectPolicy {
	return Compose(Finder(), MiniRedir(), GVFS(), Office())
}
