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
	"net/http"
	"net/url"
)

// destinationPath extracts the path component of a Destination header,
// which clients send either as an absolute URL or, less strictly, as a
// bare path.
func destinationPath(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	return u.Path, nil
}

// writeStatErr translates a persistence error to its HTTP status and
// writes it as the response.
func (s *Server) writeStatErr(w http.ResponseWriter, err error) {
	status := statusForErr(err)
	http.Error(w, err.Error(), status)
}

// writeHookResponse renders a HookResponse onto w. A zero Status defaults
// to 200 OK since a hook that only mutates the persistence layer (and
// expects the caller to re-stat) still needs some response written.
func writeHookResponse(w http.ResponseWriter, resp *HookResponse) {
	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}
	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if len(resp.Body) > 0 {
		w.Write(resp.Body)
	}
}
