// Command gen-detections generates synthetic detection logs for testing
// replay. A reference tag sits still in front of the camera while the other
// tags orbit it.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"time"

	"github.com/banshee-data/tagpose/internal/camera"
	"github.com/banshee-data/tagpose/internal/detect"
	"github.com/banshee-data/tagpose/internal/tagpose"
)

type genOptions struct {
	frames   int
	tags     int
	refID    int
	radius   float64
	depth    float64
	interval time.Duration
	// dropEvery removes the reference from every Nth frame. Zero never
	// drops it.
	dropEvery int
	start     time.Time
}

func main() {
	output := flag.String("o", "sample.jsonl", "output path")
	o := genOptions{start: time.Now().UTC()}
	flag.IntVar(&o.frames, "n", 100, "number of frames")
	flag.IntVar(&o.tags, "tags", 3, "number of orbiting tags")
	flag.IntVar(&o.refID, "ref", tagpose.DefaultReferenceID, "reference tag id")
	flag.Float64Var(&o.radius, "radius", 6, "orbit radius in half tag edges")
	flag.Float64Var(&o.depth, "depth", 30, "distance from the camera in half tag edges")
	flag.DurationVar(&o.interval, "interval", 100*time.Millisecond, "time between frames")
	flag.IntVar(&o.dropEvery, "drop-ref-every", 0, "omit the reference tag from every Nth frame")
	flag.Parse()

	f, err := os.Create(*output)
	if err != nil {
		log.Fatalf("failed to create %s: %v", *output, err)
	}
	defer f.Close()

	if err := generate(f, o); err != nil {
		log.Fatalf("failed to generate: %v", err)
	}
	log.Printf("✓ Created: %s (%d frames)", *output, o.frames)
}

// orbitID numbers orbiting tags from 1, skipping the reference id.
func orbitID(i, refID int) int {
	id := i + 1
	if refID > 0 && id >= refID {
		id++
	}
	return id
}

func generate(w io.Writer, o genOptions) error {
	if o.frames < 0 || o.tags < 0 {
		return fmt.Errorf("frames and tags must be non-negative")
	}
	in := detect.DefaultIntrinsics()
	rw := camera.NewReplayWriter(w)
	if err := rw.WriteHeader(fmt.Sprintf("gen-detections ref=%d tags=%d radius=%g depth=%g", o.refID, o.tags, o.radius, o.depth)); err != nil {
		return err
	}

	refPose := tagpose.Translation(0, 0, -o.depth)
	for n := 0; n < o.frames; n++ {
		seq := uint64(n + 1)
		var dets []detect.Detection
		if o.dropEvery <= 0 || seq%uint64(o.dropEvery) != 0 {
			d, err := detect.Synthesize(o.refID, refPose, in)
			if err != nil {
				return err
			}
			dets = append(dets, d)
		}
		for i := 0; i < o.tags; i++ {
			phase := 2*math.Pi*float64(i)/float64(o.tags) + 0.05*float64(n)
			pose := refPose.Mul(tagpose.Translation(o.radius*math.Cos(phase), o.radius*math.Sin(phase), 0))
			d, err := detect.Synthesize(orbitID(i, o.refID), pose, in)
			if err != nil {
				return err
			}
			dets = append(dets, d)
		}
		if err := rw.Write(seq, o.start.Add(time.Duration(n)*o.interval), dets); err != nil {
			return err
		}
	}
	return nil
}
