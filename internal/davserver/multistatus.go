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
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/llmdav/llmdav/internal/tree"
	"github.com/llmdav/llmdav/internal/vpath"
)

// multistatusEntry is one <D:response> in a PROPFIND body.
type multistatusEntry struct {
	path vpath.Segments
	st   tree.Stat
}

// buildMultistatus renders the <D:multistatus> document for entries. This
// is hand-built the way the lock XML in the example WebDAV engine is: a
// template of literal markup rather than a generic XML encoder, because
// the exact "D:" namespace prefixes are what several older desktop
// clients expect.
func buildMultistatus(entries []multistatusEntry) []byte {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="utf-8"?>` + "\n")
	b.WriteString(`<D:multistatus xmlns:D="DAV:">` + "\n")
	for _, e := range entries {
		writeResponse(&b, e)
	}
	b.WriteString(`</D:multistatus>`)
	return []byte(b.String())
}

func writeResponse(b *strings.Builder, e multistatusEntry) {
	href := e.path.URLPath()
	displayName := e.path.Name()
	if e.path.IsRoot() {
		displayName = "/"
	}
	isDir := e.st.Kind == tree.Directory
	if isDir && !strings.HasSuffix(href, "/") {
		href += "/"
	}

	fmt.Fprintf(b, "  <D:response>\n")
	fmt.Fprintf(b, "    <D:href>%s</D:href>\n", html.EscapeString(href))
	fmt.Fprintf(b, "    <D:propstat>\n      <D:prop>\n")
	fmt.Fprintf(b, "        <D:displayname>%s</D:displayname>\n", html.EscapeString(displayName))
	if isDir {
		fmt.Fprintf(b, "        <D:resourcetype><D:collection/></D:resourcetype>\n")
	} else {
		size := int64(0)
		if e.st.Size != nil {
			size = *e.st.Size
		}
		fmt.Fprintf(b, "        <D:resourcetype/>\n")
		fmt.Fprintf(b, "        <D:getcontentlength>%s</D:getcontentlength>\n", strconv.FormatInt(size, 10))
	}
	fmt.Fprintf(b, "      </D:prop>\n      <D:status>HTTP/1.1 200 OK</D:status>\n    </D:propstat>\n")
	fmt.Fprintf(b, "  </D:response>\n")
}
