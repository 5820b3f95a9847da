package media

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

var (
	ErrBadRange      = errors.New("invalid range format")
	ErrUnsatisfiable = errors.New("range not satisfiable")
)

// byteRange is one satisfiable byte span of a file.
type byteRange struct {
	start int64
	end   int64
}

func (r byteRange) length() int64 {
	return r.end - r.start + 1
}

func (r byteRange) contentRange(total int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", r.start, r.end, total)
}

// parseByteRange interprets a Range request header against a file of the
// given size. ok is false for an absent header. Multi-range requests are
// served by their first range only.
func parseByteRange(header string, size int64) (r byteRange, ok bool, err error) {
	if header == "" {
		return byteRange{}, false, nil
	}

	spec, found := strings.CutPrefix(header, "bytes=")
	if !found {
		return byteRange{}, false, ErrBadRange
	}
	if idx := strings.Index(spec, ","); idx != -1 {
		spec = strings.TrimSpace(spec[:idx])
	}

	first, last, found := strings.Cut(spec, "-")
	if !found {
		return byteRange{}, false, ErrBadRange
	}

	var start, end int64
	if first == "" {
		// Suffix form: the final N bytes.
		suffixLen, err := strconv.ParseInt(last, 10, 64)
		if err != nil || suffixLen <= 0 {
			return byteRange{}, false, ErrBadRange
		}
		start = size - suffixLen
		if start < 0 {
			start = 0
		}
		end = size - 1
	} else {
		start, err = strconv.ParseInt(first, 10, 64)
		if err != nil || start < 0 {
			return byteRange{}, false, ErrBadRange
		}
		if last == "" {
			end = size - 1
		} else {
			end, err = strconv.ParseInt(last, 10, 64)
			if err != nil {
				return byteRange{}, false, ErrBadRange
			}
		}
	}

	if start > end || start >= size {
		return byteRange{}, false, ErrUnsatisfiable
	}
	if end >= size {
		end = size - 1
	}
	return byteRange{start: start, end: end}, true, nil
}

// Streamer serves source video files to the editor's preview player with
// byte-range support, so the browser can seek without downloading the whole
// file.
type Streamer struct {
	logger *slog.Logger
}

func NewStreamer(logger *slog.Logger) *Streamer {
	return &Streamer{logger: logger}
}

// ServeFile streams one file, honoring a Range header when present. An
// unsatisfiable range answers 416 with the file size; a malformed Range
// header is ignored and the whole file is served, matching what browsers
// expect from media servers.
func (s *Streamer) ServeFile(w http.ResponseWriter, r *http.Request, path string) error {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			http.Error(w, "file not found", http.StatusNotFound)
			return nil
		}
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}
	size := stat.Size()

	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Type", contentType)

	br, hasRange, err := parseByteRange(r.Header.Get("Range"), size)
	if errors.Is(err, ErrUnsatisfiable) {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		http.Error(w, "Range Not Satisfiable", http.StatusRequestedRangeNotSatisfiable)
		return nil
	}

	if !hasRange {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
		w.WriteHeader(http.StatusOK)
		if r.Method != http.MethodHead {
			io.Copy(w, file)
		}
		return nil
	}

	w.Header().Set("Content-Length", strconv.FormatInt(br.length(), 10))
	w.Header().Set("Content-Range", br.contentRange(size))
	w.WriteHeader(http.StatusPartialContent)

	if r.Method == http.MethodHead {
		return nil
	}
	if _, err := file.Seek(br.start, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek: %w", err)
	}
	io.CopyN(w, file, br.length())
	return nil
}
