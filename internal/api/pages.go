package api

import (
	"io"
	"io/fs"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// CallPage is one page of the web UI that hosts a call.
type CallPage struct {
	Path        string `json:"path"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Mode        string `json:"mode,omitempty"`
	Order       int    `json:"order"`
}

var metaRe = regexp.MustCompile(`<meta\s+name="(call-[a-z]+)"\s+content="([^"]*)"`)

// headBytes is how much of each page is searched for meta tags.
const headBytes = 2048

// PagesHandler lists the top-level HTML pages that declare a call-title
// meta tag, ordered by call-order. The FS is rescanned on every request so
// WEB_DIR edits show up without a restart.
func PagesHandler(webFS fs.FS) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := fs.ReadDir(webFS, ".")
		if err != nil {
			WriteError(w, http.StatusInternalServerError, msgInternal)
			return
		}

		pages := []CallPage{}
		for _, entry := range entries {
			name := entry.Name()
			if entry.IsDir() || !strings.HasSuffix(name, ".html") {
				continue
			}
			if p, ok := readCallPage(webFS, name); ok {
				pages = append(pages, p)
			}
		}
		sort.SliceStable(pages, func(i, j int) bool { return pages[i].Order < pages[j].Order })
		WriteJSON(w, http.StatusOK, pages)
	}
}

func readCallPage(webFS fs.FS, name string) (CallPage, bool) {
	f, err := webFS.Open(name)
	if err != nil {
		return CallPage{}, false
	}
	defer f.Close()
	head, _ := io.ReadAll(io.LimitReader(f, headBytes))

	p := CallPage{Path: "/" + name}
	for _, m := range metaRe.FindAllStringSubmatch(string(head), -1) {
		switch m[1] {
		case "call-title":
			p.Title = m[2]
		case "call-description":
			p.Description = m[2]
		case "call-mode":
			p.Mode = m[2]
		case "call-order":
			p.Order, _ = strconv.Atoi(m[2])
		}
	}
	return p, p.Title != ""
}
