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

	"github.com/llmdav/llmdav/internal/store"
)

// statusForErr translates a persistence error into the HTTP status table
// in §7. A nil error or an unrecognized Kind falls through to 500.
func statusForErr(err error) int {
	switch store.KindOf(err) {
	case store.KindNotFound:
		return http.StatusNotFound
	case store.KindNotADirectory, store.KindIsADirectory, store.KindNotEmpty:
		return http.StatusConflict
	case store.KindPermissionDenied:
		return http.StatusForbidden
	case store.KindAlreadyExists:
		return http.StatusPreconditionFailed
	default:
		return http.StatusInternalServerError
	}
}
