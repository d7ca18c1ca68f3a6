package camera

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"time"

	"github.com/banshee-data/tagpose/internal/detect"
	"github.com/banshee-data/tagpose/internal/fsutil"
	"github.com/banshee-data/tagpose/internal/timeutil"
)

// maxReplayLine bounds a single JSON line in a replay log.
const maxReplayLine = 4 * 1024 * 1024

// ReplayRecord is one line of a replay log: the detections of one frame.
type ReplayRecord struct {
	Seq        uint64             `json:"seq"`
	Timestamp  time.Time          `json:"ts"`
	Detections []detect.Detection `json:"detections"`
}

// ReplaySource streams frames from a JSON-lines detection log. Blank lines
// and lines starting with '#' are skipped.
type ReplaySource struct {
	Path string
	FS   fsutil.FileSystem
	// Clock paces playback and stamps records without a timestamp.
	Clock timeutil.Clock
	// Rate scales recorded inter-frame gaps: 1 plays at recorded speed,
	// 2 twice as fast, 0 as fast as possible.
	Rate float64
}

// NewReplaySource returns an unpaced replay of the log at path.
func NewReplaySource(path string) *ReplaySource {
	return &ReplaySource{
		Path:  path,
		FS:    fsutil.OSFileSystem{},
		Clock: timeutil.RealClock{},
	}
}

// Open starts reading the log from the beginning.
func (s *ReplaySource) Open(ctx context.Context) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fsys := s.FS
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}
	clock := s.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}

	f, err := fsys.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open replay log: %w", err)
	}
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), maxReplayLine)

	return &replayStream{f: f, sc: sc, clock: clock, rate: s.Rate}, nil
}

type replayStream struct {
	f      fs.File
	sc     *bufio.Scanner
	clock  timeutil.Clock
	rate   float64
	line   int
	seq    uint64
	lastTS time.Time
}

func (r *replayStream) Next(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}

	for r.sc.Scan() {
		r.line++
		line := bytes.TrimSpace(r.sc.Bytes())
		if len(line) == 0 || line[0] == '#' {
			continue
		}

		var rec ReplayRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return Frame{}, fmt.Errorf("replay line %d: %w", r.line, err)
		}

		r.seq++
		if rec.Seq == 0 {
			rec.Seq = r.seq
		}

		if rec.Timestamp.IsZero() {
			rec.Timestamp = r.clock.Now()
		} else if r.rate > 0 && !r.lastTS.IsZero() {
			gap := time.Duration(float64(rec.Timestamp.Sub(r.lastTS)) / r.rate)
			if err := timeutil.Wait(ctx, r.clock, gap); err != nil {
				return Frame{}, err
			}
		}
		r.lastTS = rec.Timestamp

		return Frame{
			Seq:        rec.Seq,
			Timestamp:  rec.Timestamp,
			Detections: rec.Detections,
			Detected:   true,
		}, nil
	}

	if err := r.sc.Err(); err != nil {
		return Frame{}, fmt.Errorf("replay line %d: %w", r.line+1, err)
	}
	return Frame{}, io.EOF
}

func (r *replayStream) Close() error {
	return r.f.Close()
}

// ReplayWriter appends frames to a replay log.
type ReplayWriter struct {
	w   io.Writer
	enc *json.Encoder
}

// NewReplayWriter writes JSON lines to w.
func NewReplayWriter(w io.Writer) *ReplayWriter {
	return &ReplayWriter{w: w, enc: json.NewEncoder(w)}
}

// WriteHeader writes a comment line, skipped on replay.
func (rw *ReplayWriter) WriteHeader(comment string) error {
	_, err := fmt.Fprintf(rw.w, "# %s\n", comment)
	return err
}

// Write appends one frame's detections. Non-finite homographies are written
// as zeros so replay re-estimates them from the corners; detections with
// non-finite corners are left out.
func (rw *ReplayWriter) Write(seq uint64, ts time.Time, dets []detect.Detection) error {
	return rw.enc.Encode(ReplayRecord{Seq: seq, Timestamp: ts, Detections: detect.SanitizeDetections(dets)})
}
