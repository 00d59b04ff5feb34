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

	"github.com/llmdav/llmdav/internal/vpath"
)

// doMoveOrCopy implements §4.3.3 for both verbs; isMove selects Move vs
// Copy on the Adapter. A directory source requires an explicit
// "Depth: infinity" by default; any other value, including a missing
// header, is rejected unless the request's dialect policy relaxes it —
// several real clients omit Depth, or send "0" out of habit, for a
// recursive move they still expect to succeed.
func (s *Server) doMoveOrCopy(w http.ResponseWriter, r *http.Request, src vpath.Segments, isMove bool) {
	if ok, _ := s.Adapter.Exists(r.Context(), src); !ok {
		http.NotFound(w, r)
		return
	}

	destHeader := r.Header.Get("Destination")
	if destHeader == "" {
		http.Error(w, "missing Destination header", http.StatusBadRequest)
		return
	}
	destURL, err := destinationPath(destHeader)
	if err != nil {
		http.Error(w, "bad Destination header", http.StatusBadRequest)
		return
	}
	dst, err := vpath.Parse(destURL)
	if err != nil {
		http.Error(w, "bad Destination path", http.StatusBadRequest)
		return
	}

	if st, _ := s.Adapter.Stat(r.Context(), src); st.Kind.String() == "directory" {
		depth := r.Header.Get("Depth")
		defaultOK := depth == "infinity"
		if !defaultOK && !s.Dialect.DepthOKForDirOp(r.Header.Get("User-Agent"), defaultOK) {
			http.Error(w, "Depth: infinity required for a directory "+r.Method, http.StatusBadRequest)
			return
		}
	}

	overwrite := r.Header.Get("Overwrite") != "F"
	existedBefore, _ := s.Adapter.Exists(r.Context(), dst)
	if existedBefore && !overwrite {
		http.Error(w, "destination exists", http.StatusPreconditionFailed)
		return
	}

	release, err := s.Locks.Acquire(r.Context(), src, dst)
	if err != nil {
		http.Error(w, "locked", http.StatusInternalServerError)
		return
	}
	defer release()

	if isMove {
		err = s.Adapter.Move(r.Context(), src, dst)
	} else {
		err = s.Adapter.Copy(r.Context(), src, dst)
	}
	if err != nil {
		s.writeStatErr(w, err)
		return
	}

	if s.State != nil {
		if isMove {
			s.State.Rekey(src, dst)
		} else {
			s.State.Forget(dst) // a fresh copy starts with no dead properties of its own
		}
	}

	if existedBefore {
		w.WriteHeader(http.StatusNoContent)
	} else {
		w.WriteHeader(http.StatusCreated)
	}
}
