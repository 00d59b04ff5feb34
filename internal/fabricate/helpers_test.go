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

package fabricate_test

import (
	"encoding/json"
	"testing"

	"github.com/llmdav/llmdav/internal/vpath"
)

func vpathParse(t *testing.T, s string) (vpath.Segments, error) {
	t.Helper()
	return vpath.Parse(s)
}

func marshalArgs(v any) (string, error) {
	data, err := json.Marshal(v)
	return string(data), err
}
