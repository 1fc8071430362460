package main

import (
	"flag"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"runtime"
	"runtime/pprof"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/rawbytedev/flatframe"
	"github.com/rawbytedev/flatframe/pkg/compactwire"
	"github.com/rawbytedev/flatframe/subengine"
	"github.com/rawbytedev/flatframe/zc"
)

type Sample struct {
	ID       uint64
	Name     string
	Val      []string
	Mod      []int8
	Integers []int16
	Float3   []float32
	Float6   []float64
	Inner    *Inner
}

type Inner struct {
	Hits  uint32
	Ratio float64
	Tags  []string
}

func sample(i int) Sample {
	return Sample{
		ID:       uint64(i),
		Name:     fmt.Sprintf("record-%04d", i),
		Val:      []string{"azerty", "hello", "world", "random"},
		Mod:      []int8{12, 10, 13, 0},
		Integers: []int16{100, 250, 300},
		Float3:   []float32{12.13, 16.23, 75.1},
		Float6:   []float64{100.5, 165.63, 153.5},
		Inner:    &Inner{Hits: uint32(i * 3), Ratio: 0.5, Tags: []string{"a", "b"}},
	}
}

func main() {
	path := flag.String("config", "", "YAML config file")
	flag.Parse()

	log := logrus.New()
	cfg, err := loadConfig(*path)
	if err != nil {
		log.WithError(err).Fatal("config")
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithError(err).Fatal("config")
	}
	log.SetLevel(level)
	cfg.Builder.Logger = log

	if cfg.PprofAddr != "" {
		go func() {
			log.WithError(http.ListenAndServe(cfg.PprofAddr, nil)).Warn("pprof server stopped")
		}()
	}
	if cfg.Profile != "" {
		runtime.MemProfileRate = 1
	}

	if err := run(cfg, log); err != nil {
		log.WithError(err).Fatal("run failed")
	}

	if cfg.Profile != "" {
		if err := writeHeapProfile(cfg.Profile); err != nil {
			log.WithError(err).Error("heap profile")
		}
	}
	if cfg.Hold > 0 {
		log.WithField("hold", cfg.Hold).Info("holding for pprof")
		time.Sleep(cfg.Hold)
	}
}

func run(cfg Config, log logrus.FieldLogger) error {
	codec, err := subengine.ParseCodec(cfg.Codec)
	if err != nil {
		return err
	}
	enc := flatframe.NewEncoder(cfg.Builder)
	view := zc.NewView(cfg.View)
	var frame compactwire.DataFrame

	records := make([]Sample, cfg.Records)
	for i := range records {
		records[i] = sample(i)
	}

	var encoded, framed uint64
	start := time.Now()
	for it := 0; it < cfg.Iterations; it++ {
		rec := &records[it%len(records)]
		buf, err := enc.Encode(rec)
		if err != nil {
			return errors.Wrapf(err, "encode record %d", rec.ID)
		}
		wire, err := frame.EncodeDataFrame(buf, codec)
		if err != nil {
			return err
		}
		encoded += uint64(len(buf))
		framed += uint64(len(wire))

		payload, _, err := frame.DecodeDataFrame(wire)
		if err != nil {
			return errors.Wrapf(err, "frame of record %d", rec.ID)
		}
		t, err := flatframe.GetRoot(payload)
		if err != nil {
			return err
		}
		name, err := view.String(t, 1)
		if err != nil {
			return err
		}
		if name != rec.Name {
			return errors.Errorf("record %d: read back name %q", rec.ID, name)
		}
		var out Sample
		if err := enc.DecodeTable(t, &out); err != nil {
			return errors.Wrapf(err, "decode record %d", rec.ID)
		}
	}
	elapsed := time.Since(start)

	log.WithFields(logrus.Fields{
		"iterations": cfg.Iterations,
		"codec":      codec,
		"encoded":    humanize.Bytes(encoded),
		"framed":     humanize.Bytes(framed),
		"per_op":     elapsed / time.Duration(cfg.Iterations),
		"elapsed":    elapsed,
	}).Info("done")
	return nil
}

func writeHeapProfile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	runtime.GC()
	return pprof.WriteHeapProfile(f)
}
