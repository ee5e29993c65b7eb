package streaming

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

var ErrMalformedRange = errors.New("malformed range header")

// Plan is the response decided for one stream request. Start and End are
// inclusive byte offsets.
type Plan struct {
	StatusCode    int
	Start         int64
	End           int64
	ContentLength int64
	Partial       bool
	Size          int64
	ContentType   string
}

// PlanResponse decides what to send for a file of the given size. An empty
// rangeHeader yields the whole file with status 200. Otherwise the header must
// be a single "bytes=<start>-<end>?" range; end defaults to the last byte and
// is clamped to it.
func PlanResponse(size int64, rangeHeader, contentType string) (Plan, error) {
	if size < 0 {
		return Plan{}, fmt.Errorf("negative file size %d", size)
	}

	if strings.TrimSpace(rangeHeader) == "" {
		return Plan{
			StatusCode:    http.StatusOK,
			Start:         0,
			End:           size - 1,
			ContentLength: size,
			Size:          size,
			ContentType:   contentType,
		}, nil
	}

	start, end, err := parseRange(rangeHeader, size)
	if err != nil {
		return Plan{}, err
	}

	return Plan{
		StatusCode:    http.StatusPartialContent,
		Start:         start,
		End:           end,
		ContentLength: end - start + 1,
		Partial:       true,
		Size:          size,
		ContentType:   contentType,
	}, nil
}

func parseRange(header string, size int64) (int64, int64, error) {
	const prefix = "bytes="

	header = strings.TrimSpace(header)
	if !strings.HasPrefix(header, prefix) {
		return 0, 0, fmt.Errorf("%w: %q", ErrMalformedRange, header)
	}

	spec := strings.TrimPrefix(header, prefix)
	if strings.Contains(spec, ",") {
		return 0, 0, fmt.Errorf("%w: multiple ranges not supported", ErrMalformedRange)
	}

	startStr, endStr, ok := strings.Cut(spec, "-")
	if !ok {
		return 0, 0, fmt.Errorf("%w: %q", ErrMalformedRange, header)
	}

	start, err := parseOffset(startStr)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: start %q", ErrMalformedRange, startStr)
	}
	if start >= size {
		return 0, 0, fmt.Errorf("%w: start %d beyond size %d", ErrMalformedRange, start, size)
	}

	end := size - 1
	if strings.TrimSpace(endStr) != "" {
		end, err = parseOffset(endStr)
		if err != nil {
			return 0, 0, fmt.Errorf("%w: end %q", ErrMalformedRange, endStr)
		}
		if end < start {
			return 0, 0, fmt.Errorf("%w: end %d before start %d", ErrMalformedRange, end, start)
		}
		if end > size-1 {
			end = size - 1
		}
	}

	return start, end, nil
}

// parseOffset accepts digits only; signs and blanks are rejected.
func parseOffset(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty offset")
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("invalid digit %q", c)
		}
	}
	return strconv.ParseInt(s, 10, 64)
}

// ContentRange formats the Content-Range header value for a partial plan.
func (p Plan) ContentRange() string {
	return fmt.Sprintf("bytes %d-%d/%d", p.Start, p.End, p.Size)
}

// SetHeaders writes the plan's headers to h. Content-Range and Accept-Ranges
// are only present on partial responses.
func (p Plan) SetHeaders(h http.Header) {
	h.Set("Content-Type", p.ContentType)
	h.Set("Content-Length", strconv.FormatInt(p.ContentLength, 10))
	if p.Partial {
		h.Set("Content-Range", p.ContentRange())
		h.Set("Accept-Ranges", "bytes")
	}
}
