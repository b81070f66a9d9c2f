package tools

import (
	"crypto/rand"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Workload names.
const (
	WorkloadHash             = "hash"
	WorkloadSign             = "sign"
	WorkloadSignReusedSigner = "sign_reused_signer"
	WorkloadSignPrehashed    = "sign_prehashed"
	WorkloadVerify           = "verify"
	WorkloadVerifyReusedKey  = "verify_reused_key"
	WorkloadBaseline         = "baseline"
)

var baselineSink int

// Workloads lists every workload in the order they run by default.
var Workloads = []string{
	WorkloadHash,
	WorkloadSign,
	WorkloadSignReusedSigner,
	WorkloadSignPrehashed,
	WorkloadVerify,
	WorkloadVerifyReusedKey,
	WorkloadBaseline,
}

// WorkloadResult is the outcome of one workload.
type WorkloadResult struct {
	Name        string  `yaml:"name"`
	Iterations  int     `yaml:"iterations"`
	NsPerOp     int64   `yaml:"ns_per_op"`
	OpsPerSec   float64 `yaml:"ops_per_sec"`
	AllocsPerOp int64   `yaml:"allocs_per_op"`
	Error       string  `yaml:"error,omitempty"`
}

// Report contains the results of a benchmark run.
type Report struct {
	ID           string           `yaml:"id"`
	Provider     string           `yaml:"provider"`
	Curve        string           `yaml:"curve"`
	KeyCurve     string           `yaml:"key_curve"`
	Algorithms   AlgorithmSet     `yaml:"algorithms"`
	MessageBytes int              `yaml:"message_bytes"`
	Started      time.Time        `yaml:"started"`
	Results      []WorkloadResult `yaml:"results"`
}

// WriteYAML writes the report to w.
func (r *Report) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return err
	}
	return enc.Close()
}

// Failed returns true if any workload failed.
func (r *Report) Failed() bool {
	for _, result := range r.Results {
		if len(result.Error) > 0 {
			return true
		}
	}
	return false
}

// RunWorkloads runs the named workloads (all of them if names is empty) on message.
// A failing workload is reported in its result and does not stop the others.
func RunWorkloads(engine *Engine, message []byte, names []string) (*Report, error) {
	if len(names) == 0 {
		names = Workloads
	}
	workloads := make([]func(b *testing.B, fail func(error)), 0, len(names))
	for _, name := range names {
		w, err := engine.workload(name, message)
		if err != nil {
			return nil, err
		}
		workloads = append(workloads, w)
	}
	report := &Report{
		ID:           uuid.NewString(),
		Provider:     engine.Provider().String(),
		Curve:        engine.Curve().String(),
		KeyCurve:     engine.PublicKey().Curve().String(),
		Algorithms:   engine.Algorithms(),
		MessageBytes: len(message),
		Started:      time.Now().UTC(),
	}
	for i, name := range names {
		var failure error
		fail := func(err error) {
			if failure == nil {
				failure = err
			}
		}
		workload := workloads[i]
		result := testing.Benchmark(func(b *testing.B) {
			if failure != nil {
				return
			}
			b.ReportAllocs()
			workload(b, fail)
		})
		wr := WorkloadResult{Name: name}
		if failure != nil {
			wr.Error = failure.Error()
			engine.Log.Printf("[%s] workload %s failed: %s", report.ID, name, failure)
		} else {
			wr.Iterations = result.N
			wr.NsPerOp = result.NsPerOp()
			wr.AllocsPerOp = result.AllocsPerOp()
			if wr.NsPerOp > 0 {
				wr.OpsPerSec = float64(time.Second) / float64(wr.NsPerOp)
			}
			engine.Log.Printf("[%s] %s: %d ops, %d ns/op", report.ID, name, wr.Iterations, wr.NsPerOp)
		}
		report.Results = append(report.Results, wr)
	}
	return report, nil
}

// workload returns the loop of a named workload. Inputs that the loop reuses are
// computed once, before the timer starts.
func (e *Engine) workload(name string, message []byte) (func(b *testing.B, fail func(error)), error) {
	switch name {
	case WorkloadHash:
		return func(b *testing.B, _ func(error)) {
			for i := 0; i < b.N; i++ {
				e.Hash(message)
			}
		}, nil
	case WorkloadSign:
		return func(b *testing.B, fail func(error)) {
			for i := 0; i < b.N; i++ {
				if _, err := e.Sign(message); err != nil {
					fail(err)
					return
				}
			}
		}, nil
	case WorkloadSignReusedSigner:
		return func(b *testing.B, fail func(error)) {
			signer := e.Signer()
			if signer == nil {
				fail(fmt.Errorf("engine has no signer"))
				return
			}
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := signer.Sign(rand.Reader, e.Hash(message), e.resolution.Hash); err != nil {
					fail(err)
					return
				}
			}
		}, nil
	case WorkloadSignPrehashed:
		return func(b *testing.B, fail func(error)) {
			digest := e.Hash(message)
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := e.SignPrehashed(digest); err != nil {
					fail(err)
					return
				}
			}
		}, nil
	case WorkloadVerify:
		return func(b *testing.B, fail func(error)) {
			sig, err := e.Sign(message)
			if err != nil {
				fail(err)
				return
			}
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if ok, err := e.Verify(message, sig); err != nil || !ok {
					fail(fmt.Errorf("signature not verified (err=%v)", err))
					return
				}
			}
		}, nil
	case WorkloadVerifyReusedKey:
		return func(b *testing.B, fail func(error)) {
			sig, err := e.Sign(message)
			if err != nil {
				fail(err)
				return
			}
			public := e.PublicKey()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if !public.VerifyDigest(e.Hash(message), sig) {
					fail(fmt.Errorf("signature not verified"))
					return
				}
			}
		}, nil
	case WorkloadBaseline:
		return func(b *testing.B, _ func(error)) {
			for i := 0; i < b.N; i++ {
				baselineSink = i
			}
		}, nil
	}
	return nil, &ConfigurationError{Kind: "workload", Value: name}
}
