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

import (
	"encoding/xml"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/webdav"

	"github.com/llmdav/llmdav/internal/vpath"
)

// doLock grants or refreshes a lock token against State.Locks, the sole
// source of the "is this resource actually locked" fact PROPPATCH's
// Lock-Token enforcement consults (§4.3.5). An "If" header naming an
// existing token refreshes that lock; otherwise a fresh one is created.
func (s *Server) doLock(w http.ResponseWriter, r *http.Request, segs vpath.Segments) {
	if s.State == nil {
		http.Error(w, "LOCK requires dav-state", http.StatusNotImplemented)
		return
	}

	if token := lockTokenFromIf(r.Header.Get("If")); token != "" {
		details, err := s.State.Locks.Refresh(time.Now(), token, lockDuration(r))
		if err != nil {
			http.Error(w, "no such lock", http.StatusPreconditionFailed)
			return
		}
		writeLockDiscovery(w, token, details, http.StatusOK)
		return
	}

	if ok, _ := s.Adapter.Exists(r.Context(), segs); !ok {
		http.NotFound(w, r)
		return
	}
	details := webdav.LockDetails{
		Root:      segs.URLPath(),
		Duration:  lockDuration(r),
		ZeroDepth: r.Header.Get("Depth") == "0",
	}
	token, err := s.State.Locks.Create(time.Now(), details)
	if err != nil {
		http.Error(w, "already locked", http.StatusLocked)
		return
	}
	writeLockDiscovery(w, token, details, http.StatusCreated)
}

// doUnlock releases a token obtained from LOCK.
func (s *Server) doUnlock(w http.ResponseWriter, r *http.Request, segs vpath.Segments) {
	if s.State == nil {
		http.Error(w, "UNLOCK requires dav-state", http.StatusNotImplemented)
		return
	}
	token := strings.Trim(r.Header.Get("Lock-Token"), "<>")
	if token == "" {
		http.Error(w, "missing Lock-Token", http.StatusBadRequest)
		return
	}
	if err := s.State.Locks.Unlock(time.Now(), token); err != nil {
		http.Error(w, "no such lock", http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func lockDuration(r *http.Request) time.Duration {
	const def = 10 * time.Minute
	timeout := r.Header.Get("Timeout")
	if !strings.HasPrefix(timeout, "Second-") {
		return def
	}
	secs, err := strconv.Atoi(strings.TrimPrefix(timeout, "Second-"))
	if err != nil || secs <= 0 {
		return def
	}
	return time.Duration(secs) * time.Second
}

// lockTokenFromIf extracts a coded-URL lock token from an RFC 4918 "If"
// header of the form "(<urn:uuid:...>)". Only the single-token form a
// LOCK refresh uses is recognized.
func lockTokenFromIf(ifHeader string) string {
	start := strings.Index(ifHeader, "<")
	end := strings.Index(ifHeader, ">")
	if start < 0 || end < 0 || end < start {
		return ""
	}
	return ifHeader[start+1 : end]
}

type lockdiscoveryResponse struct {
	XMLName xml.Name `xml:"D:prop"`
	NS      string   `xml:"xmlns:D,attr"`
	Active  struct {
		Token   string `xml:"D:locktoken>D:href"`
		Depth   string `xml:"D:depth"`
		Timeout string `xml:"D:timeout"`
	} `xml:"D:lockdiscovery>D:activelock"`
}

func writeLockDiscovery(w http.ResponseWriter, token string, details webdav.LockDetails, status int) {
	depth := "infinity"
	if details.ZeroDepth {
		depth = "0"
	}
	var resp lockdiscoveryResponse
	resp.NS = "DAV:"
	resp.Active.Token = token
	resp.Active.Depth = depth
	resp.Active.Timeout = "Second-" + strconv.Itoa(int(details.Duration/time.Second))

	body, err := xml.Marshal(resp)
	if err != nil {
		http.Error(w, "encode lockdiscovery", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", `application/xml; charset="utf-8"`)
	w.Header().Set("Lock-Token", "<"+token+">")
	w.WriteHeader(status)
	w.Write(append([]byte(xml.Header), body...))
}
