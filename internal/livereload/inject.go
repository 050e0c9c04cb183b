package livereload

import (
	"bytes"
	"net/http"
	"strings"
)

// maxBuffered bounds the page size the injector rewrites; larger responses
// pass through untouched.
const maxBuffered = 512 * 1024

// Script waits for the first event to learn the current build, then reports
// the page being viewed and reloads once a newer build completes.
const Script = `(() => {
  if (window.__sitebuilderLR) return;
  window.__sitebuilderLR = true;
  let current = null;
  function connect() {
    const es = new EventSource('` + EventsPath + `');
    es.onmessage = (e) => {
      let msg;
      try { msg = JSON.parse(e.data); } catch (_) { return; }
      if (current === null) {
        current = msg.build;
        fetch('%VIEWED%?page=' + encodeURIComponent(location.pathname)).catch(() => {});
        return;
      }
      if (msg.build !== current) location.reload();
    };
    es.onerror = () => { es.close(); setTimeout(connect, 2000); };
  }
  connect();
})();
`

// ScriptHandler serves Script with viewedPath as the endpoint the page reports to.
func ScriptHandler(viewedPath string) http.HandlerFunc {
	body := []byte(strings.Replace(Script, "%VIEWED%", viewedPath, 1))
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		_, _ = w.Write(body)
	}
}

// scriptTag replaces the first closing body tag of an HTML page.
const scriptTag = `<script async src="` + ScriptPath + `"></script></body>`

// Inject wraps next so HTML pages load the live reload script.
func Inject(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := r.URL.Path
		if p != "" && !strings.HasSuffix(p, "/") && !strings.HasSuffix(p, ".html") {
			next.ServeHTTP(w, r)
			return
		}
		in := &injector{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(in, r)
		in.finalize()
	})
}

// injector buffers an HTML response so the script tag can be added before
// the headers go out. Non-HTML and oversized responses pass through.
type injector struct {
	http.ResponseWriter
	status      int
	buf         *bytes.Buffer
	passthrough bool
	wroteHeader bool
}

func (in *injector) WriteHeader(code int) {
	in.status = code
	if in.passthrough {
		in.writeHeader()
	}
}

func (in *injector) writeHeader() {
	if !in.wroteHeader {
		in.ResponseWriter.WriteHeader(in.status)
		in.wroteHeader = true
	}
}

func (in *injector) Write(data []byte) (int, error) {
	if in.buf == nil && !in.passthrough {
		ct := in.Header().Get("Content-Type")
		if ct != "" && !strings.Contains(ct, "text/html") {
			in.passthrough = true
		} else {
			in.buf = &bytes.Buffer{}
		}
	}
	if !in.passthrough && in.buf.Len()+len(data) > maxBuffered {
		in.passthrough = true
		in.writeHeader()
		if _, err := in.ResponseWriter.Write(in.buf.Bytes()); err != nil {
			return 0, err
		}
		in.buf.Reset()
	}
	if in.passthrough {
		in.writeHeader()
		return in.ResponseWriter.Write(data)
	}
	return in.buf.Write(data)
}

func (in *injector) finalize() {
	if in.passthrough || in.buf == nil {
		in.writeHeader()
		return
	}
	body := bytes.Replace(in.buf.Bytes(), []byte("</body>"), []byte(scriptTag), 1)
	in.Header().Del("Content-Length")
	in.writeHeader()
	_, _ = in.ResponseWriter.Write(body)
}
